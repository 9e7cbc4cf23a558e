package client

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/transport"
)

type Order struct {
	rest *transport.Rest
}

func NewOrder(rest *transport.Rest) *Order {
	return &Order{rest: rest}
}

type CreateOrderRequest struct {
	PaymentID  string                 `json:"paymentId"`
	ScheduleID int64                  `json:"eventScheduleId"`
	Seats      []domain.SeatSelection `json:"selectSeatInfoList"`
}

type createOrderResponse struct {
	OrderID int64 `json:"orderId"`
}

type orderStatusResponse struct {
	Status domain.OrderStatus `json:"orderStatus"`
}

// Create posts the order as multipart: the captured face image plus a
// JSON part named createOrderRequest carrying the correlation paymentId
// and the seat list. Returns the server-assigned order id.
func (c *Order) Create(ctx context.Context, req CreateOrderRequest, face *domain.FaceArtifact) (int64, error) {
	var out createOrderResponse
	err := c.rest.DoMultipart(ctx, "/ticketing/order", func(w *multipart.Writer) error {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="createOrderRequest"`)
		h.Set("Content-Type", "application/json")
		part, err := w.CreatePart(h)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(part).Encode(req); err != nil {
			return err
		}

		filename := face.Filename
		if filename == "" {
			filename = "face.jpg"
		}
		img, err := w.CreateFormFile("userImg", filename)
		if err != nil {
			return err
		}
		if _, err := img.Write(face.Image); err != nil {
			return err
		}
		return nil
	}, &out)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}

	return out.OrderID, nil
}

func (c *Order) Status(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	var out orderStatusResponse
	path := fmt.Sprintf("/ticketing/order/%d", orderID)
	if err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("failed to get order status: %w", err)
	}
	return out.Status, nil
}

// Cancel requests a refund/cancellation for an order.
func (c *Order) Cancel(ctx context.Context, orderID int64) error {
	path := fmt.Sprintf("/ticketing/order/%d", orderID)
	if err := c.rest.DoJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	return nil
}

// PaymentSubscribeURL derives the SSE endpoint for one payment attempt.
func (c *Order) PaymentSubscribeURL(paymentID string) string {
	return strings.TrimSuffix(c.rest.BaseURL(), "/") + "/ticketing/order/subscribe/" + paymentID
}
