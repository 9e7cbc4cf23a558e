package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fickets/ticketflow/config"
	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/transport"
	"github.com/Fickets/ticketflow/pkg/logger"
)

type fixedTokens struct{}

func (fixedTokens) Token(actor domain.Actor) (string, error) { return "test-token", nil }
func (fixedTokens) Refresh(ctx context.Context, actor domain.Actor) (string, error) {
	return "test-token", nil
}

func testRest(t *testing.T, baseURL string) *transport.Rest {
	t.Helper()
	return transport.NewRest(config.APIConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		BreakerMaxFail: 10,
		BreakerTimeout: time.Second,
	}, domain.ActorUser, fixedTokens{}, logger.InitializeTestZapLogger())
}

func TestOrderCreateMultipartShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ticketing/order", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		// JSON part carries the order payload under its fixed part name.
		var req CreateOrderRequest
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("createOrderRequest")), &req))
		assert.Equal(t, "0123456789abcdef0123456789abcdef", req.PaymentID)
		assert.Equal(t, int64(42), req.ScheduleID)
		require.Len(t, req.Seats, 1)
		assert.Equal(t, int64(101), req.Seats[0].SeatMappingID)

		// Image part rides alongside as userImg.
		file, header, err := r.FormFile("userImg")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "face.jpg", header.Filename)
		img, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, img)

		_ = json.NewEncoder(w).Encode(map[string]int64{"orderId": 9001})
	}))
	defer srv.Close()

	orders := NewOrder(testRest(t, srv.URL))
	orderID, err := orders.Create(context.Background(), CreateOrderRequest{
		PaymentID:  "0123456789abcdef0123456789abcdef",
		ScheduleID: 42,
		Seats:      []domain.SeatSelection{{SeatMappingID: 101, Price: 50000, Grade: "VIP"}},
	}, &domain.FaceArtifact{Image: []byte{0xff, 0xd8, 0xff}})
	require.NoError(t, err)
	assert.Equal(t, int64(9001), orderID)
}

func TestOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ticketing/order/9001", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"orderStatus": "INPROGRESS"})
	}))
	defer srv.Close()

	status, err := NewOrder(testRest(t, srv.URL)).Status(context.Background(), 9001)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInProgress, status)
}

func TestOrderCancel(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewOrder(testRest(t, srv.URL)).Cancel(context.Background(), 9001))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/ticketing/order/9001", path)
}

func TestOrderPaymentSubscribeURL(t *testing.T) {
	orders := NewOrder(testRest(t, "http://api.example.com/api/v1/"))
	assert.Equal(t,
		"http://api.example.com/api/v1/ticketing/order/subscribe/deadbeef",
		orders.PaymentSubscribeURL("deadbeef"))
}
