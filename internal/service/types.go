package service

import (
	"context"

	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/transport"
)

// FrameSource is the read side of a push channel. Satisfied by
// transport.WSStream; tests feed frames from plain channels.
type FrameSource interface {
	Frames() <-chan []byte
	Err() error
	Close()
}

// QueueUpdate pairs a queue ticket frame with the derived progress
// percentage, computed against the latched initial waiting number.
type QueueUpdate struct {
	Ticket   domain.QueueTicket
	Progress float64
}

type PaymentState string

const (
	PaymentStateIdle         PaymentState = "IDLE"
	PaymentStateCreating     PaymentState = "CREATING"
	PaymentStateAwaitingPush PaymentState = "AWAITING_PUSH"
	PaymentStatePaid         PaymentState = "PAID"
	PaymentStateFailed       PaymentState = "FAILED"
	PaymentStateError        PaymentState = "ERROR"
)

func (s PaymentState) Terminal() bool {
	return s == PaymentStatePaid || s == PaymentStateFailed || s == PaymentStateError
}

// Revocation is a server-initiated abort pushed over the watchdog
// channel. Authoritative: the client must release its hold and stop.
type Revocation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	RevocationOrderRightLost          = "ORDER_RIGHT_LOST"
	RevocationSeatReservationReleased = "SEAT_RESERVATION_RELEASED"
)

// PaymentEvents is the push channel a payment attempt resolves over.
// Satisfied by transport.SSESubscription.
type PaymentEvents interface {
	Ready() <-chan struct{}
	Events() <-chan transport.SSEEvent
	Err() error
	Close()
}

// PaymentSubscriber opens the push channel for one paymentId. The
// subscription must be confirmed open before the order-create call fires.
type PaymentSubscriber interface {
	Subscribe(ctx context.Context, paymentID string) (PaymentEvents, error)
}

// WidgetInvoker hands control to the external payment widget with the
// correlation id, the exact seat-price sum, and a display description.
type WidgetInvoker func(ctx context.Context, paymentID string, amount int64, description string) error

type PaymentResult struct {
	State     PaymentState
	OrderID   int64
	PaymentID string
	Amount    int64
}
