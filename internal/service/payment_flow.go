package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Fickets/ticketflow/internal/client"
	"github.com/Fickets/ticketflow/internal/domain"
	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

// OrderAPI is the slice of the order client the payment flow needs.
type OrderAPI interface {
	Create(ctx context.Context, req client.CreateOrderRequest, face *domain.FaceArtifact) (int64, error)
	Status(ctx context.Context, orderID int64) (domain.OrderStatus, error)
}

// PaymentFlow drives one purchase attempt through
// IDLE -> CREATING -> AWAITING_PUSH -> (PAID | FAILED | ERROR).
//
// The push subscription is opened and confirmed before the order-create
// call fires, so the terminal event cannot be missed; the external
// payment widget is only invoked once the order reports INPROGRESS.
type PaymentFlow struct {
	orders     OrderAPI
	subscriber PaymentSubscriber
	widget     WidgetInvoker
	l          logger.Logger

	mu    sync.Mutex
	state PaymentState
}

func NewPaymentFlow(orders OrderAPI, subscriber PaymentSubscriber, widget WidgetInvoker, l logger.Logger) *PaymentFlow {
	return &PaymentFlow{
		orders:     orders,
		subscriber: subscriber,
		widget:     widget,
		l:          l,
		state:      PaymentStateIdle,
	}
}

type SubmitInput struct {
	ScheduleID int64
	Seats      []domain.SeatSelection
	Face       *domain.FaceArtifact
	Limit      int
}

func (f *PaymentFlow) State() PaymentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *PaymentFlow) setState(s PaymentState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// begin flips IDLE (or a terminal state, for retries) to CREATING.
// Duplicate submissions while an attempt is live are rejected.
func (f *PaymentFlow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == PaymentStateCreating || f.state == PaymentStateAwaitingPush {
		return ErrSubmissionInFlight
	}
	f.state = PaymentStateCreating
	return nil
}

func (f *PaymentFlow) validate(in SubmitInput) error {
	if in.Face == nil || len(in.Face.Image) == 0 {
		return pkgErrors.Wrap(pkgErrors.KindValidation, "face image missing", ErrNoFaceArtifact)
	}
	if len(in.Seats) == 0 {
		return pkgErrors.Wrap(pkgErrors.KindValidation, "empty selection", ErrEmptySelection)
	}
	if in.Limit > 0 && len(in.Seats) > in.Limit {
		return pkgErrors.Wrap(pkgErrors.KindValidation,
			fmt.Sprintf("selected %d seats, limit is %d", len(in.Seats), in.Limit), ErrSelectionLimit)
	}
	return nil
}

// Submit runs one attempt to completion. The returned result carries the
// terminal state; an error return means the attempt never reached the
// push-wait phase (validation, subscribe, or create failure).
func (f *PaymentFlow) Submit(ctx context.Context, in SubmitInput) (*PaymentResult, error) {
	if err := f.validate(in); err != nil {
		return nil, err
	}

	if err := f.begin(); err != nil {
		return nil, err
	}

	paymentID, err := domain.NewPaymentID()
	if err != nil {
		f.setState(PaymentStateError)
		return nil, err
	}

	order := domain.Order{
		PaymentID:  paymentID,
		ScheduleID: in.ScheduleID,
		Seats:      in.Seats,
	}
	amount := order.Amount()

	// Subscribe first; the create call may race its own terminal event
	// otherwise.
	events, err := f.subscriber.Subscribe(ctx, paymentID)
	if err != nil {
		f.setState(PaymentStateError)
		return nil, err
	}

	select {
	case <-events.Ready():
	case <-ctx.Done():
		events.Close()
		f.setState(PaymentStateError)
		return nil, ctx.Err()
	}

	orderID, err := f.orders.Create(ctx, client.CreateOrderRequest{
		PaymentID:  paymentID,
		ScheduleID: in.ScheduleID,
		Seats:      in.Seats,
	}, in.Face)
	if err != nil {
		events.Close()
		f.setState(PaymentStateError)
		return nil, fmt.Errorf("order create aborted: %w", err)
	}

	status, err := f.orders.Status(ctx, orderID)
	if err != nil {
		events.Close()
		f.setState(PaymentStateError)
		return nil, err
	}
	if status != domain.OrderStatusInProgress {
		events.Close()
		f.setState(PaymentStateError)
		return nil, pkgErrors.ServerRejection("ORDER_NOT_INPROGRESS",
			fmt.Sprintf("order %d in unexpected status %s", orderID, status))
	}

	f.setState(PaymentStateAwaitingPush)

	if err := f.widget(ctx, paymentID, amount, order.Description()); err != nil {
		events.Close()
		f.setState(PaymentStateError)
		return nil, fmt.Errorf("payment widget failed: %w", err)
	}

	result := &PaymentResult{
		OrderID:   orderID,
		PaymentID: paymentID,
		Amount:    amount,
	}
	result.State = f.awaitPush(ctx, events, paymentID)
	return result, nil
}

// awaitPush resolves the attempt from the push channel. The first
// terminal frame wins; the subscription is closed on any terminal state
// so a late duplicate frame is a no-op.
func (f *PaymentFlow) awaitPush(ctx context.Context, events PaymentEvents, paymentID string) PaymentState {
	defer events.Close()

	for {
		select {
		case <-ctx.Done():
			f.l.Warnf(ctx, "service.PaymentFlow.awaitPush: aborted while awaiting push: %v", ctx.Err())
			f.setState(PaymentStateError)
			return PaymentStateError

		case ev, ok := <-events.Events():
			if !ok {
				// Stream dropped before a business outcome arrived.
				// Logged distinctly from FAILED; presented the same way.
				f.l.Errorf(context.Background(), "service.PaymentFlow.awaitPush: push stream lost for payment %s: %v", paymentID, events.Err())
				f.setState(PaymentStateError)
				return PaymentStateError
			}

			var frame struct {
				Status domain.PaymentStatus `json:"status"`
			}
			if err := json.Unmarshal(ev.Data, &frame); err != nil {
				f.l.Warnf(ctx, "service.PaymentFlow.awaitPush: dropping malformed frame: %v", err)
				continue
			}

			switch frame.Status {
			case domain.PaymentStatusPaid:
				f.setState(PaymentStatePaid)
				f.l.Infof(ctx, "payment confirmed: payment_id=%s", paymentID)
				return PaymentStatePaid
			case domain.PaymentStatusFailed:
				f.setState(PaymentStateFailed)
				f.l.Warnf(ctx, "payment failed: payment_id=%s", paymentID)
				return PaymentStateFailed
			default:
				// Non-terminal keep-alive frames are ignored.
			}
		}
	}
}
