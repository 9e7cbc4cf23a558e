package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusInProgress OrderStatus = "INPROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// PaymentStatus is the terminal outcome pushed over the payment channel.
type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusFailed PaymentStatus = "FAILED"
)

type Order struct {
	OrderID    int64           `json:"orderId"`
	PaymentID  string          `json:"paymentId"`
	ScheduleID int64           `json:"eventScheduleId"`
	Seats      []SeatSelection `json:"selectSeatInfoList"`
	Status     OrderStatus     `json:"orderStatus"`
}

// NewPaymentID generates the random 128-bit hex correlation id tying an
// order-create call to its payment-result push channel. A fresh id is
// required per attempt.
func NewPaymentID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate payment id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Amount is the exact sum of the selected seat prices, passed verbatim
// to the payment widget.
func (o *Order) Amount() int64 {
	var total int64
	for _, s := range o.Seats {
		total += s.Price
	}
	return total
}

// Description builds the human-readable order line shown by the payment
// widget, e.g. "VIP A-12, VIP A-13".
func (o *Order) Description() string {
	parts := make([]string, 0, len(o.Seats))
	for _, s := range o.Seats {
		parts = append(parts, fmt.Sprintf("%s %s-%s", s.Grade, s.Row, s.Col))
	}
	return strings.Join(parts, ", ")
}

// FaceArtifact is the captured image attached to the order-create
// multipart payload. Transient; bound to one schedule.
type FaceArtifact struct {
	Image      []byte
	Filename   string
	ScheduleID int64
}
