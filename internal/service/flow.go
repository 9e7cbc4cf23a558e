package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Fickets/ticketflow/config"
	"github.com/Fickets/ticketflow/internal/client"
	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/session"
	"github.com/Fickets/ticketflow/internal/transport"
	"github.com/Fickets/ticketflow/pkg/logger"
)

// tokenRefreshWindow is how close to its exp claim a token may get
// before the flow refreshes it preemptively after a queue wait.
const tokenRefreshWindow = 2 * time.Minute

// Flow runs one buyer through the whole purchase: queue admission, seat
// selection and lock, face artifact attachment, order creation, and
// payment resolution, with the revocation watchdog live from admission
// onward. Whichever terminal signal arrives first, payment outcome or
// revocation, is authoritative for the flow instance.
type Flow struct {
	cfg    *config.Config
	store  *session.Store
	actor  domain.Actor
	queue  *client.Queue
	events *client.Event
	orders *client.Order
	seats  *SeatSession
	widget WidgetInvoker
	l      logger.Logger
}

func NewFlow(
	cfg *config.Config,
	store *session.Store,
	actor domain.Actor,
	rest *transport.Rest,
	widget WidgetInvoker,
	l logger.Logger,
) *Flow {
	return &Flow{
		cfg:    cfg,
		store:  store,
		actor:  actor,
		queue:  client.NewQueue(rest),
		events: client.NewEvent(rest),
		orders: client.NewOrder(rest),
		seats:  NewSeatSession(client.NewSeat(rest), cfg.Lock, l),
		widget: widget,
		l:      l,
	}
}

type FlowInput struct {
	EventID    string
	ScheduleID int64
	// SeatIDs picks specific seats; when empty, the first SeatCount
	// available seats are taken.
	SeatIDs   []int64
	SeatCount int
	Face      *domain.FaceArtifact
}

type FlowResult struct {
	Payment *PaymentResult
	Revoked bool
	Reason  string
}

// streamURL builds the push endpoint for one (event, schedule, token)
// triple. Both the queue stream and the watchdog share this shape.
func (f *Flow) streamURL(eventID string, scheduleID int64, token string) string {
	return fmt.Sprintf("%s/%s/%d?Authorization=%s",
		f.cfg.Stream.WebSocketURL, eventID, scheduleID, url.QueryEscape(token))
}

func (f *Flow) openStream(ctx context.Context, in FlowInput, opts ...transport.WSOption) (*transport.WSStream, error) {
	token, err := f.store.Token(f.actor)
	if err != nil {
		return nil, err
	}
	return transport.OpenWS(ctx, f.streamURL(in.EventID, in.ScheduleID, token), nil, f.cfg.Stream, f.l, opts...)
}

// Run executes the flow to a terminal state. Errors from any stage have
// already released held resources (lock, queue slot, streams).
func (f *Flow) Run(ctx context.Context, in FlowInput) (*FlowResult, error) {
	flowCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := f.awaitAdmission(flowCtx, in); err != nil {
		return nil, err
	}

	// A long queue wait can outlive the access token; refresh ahead of
	// the purchase stage instead of tripping a 401 mid-lock.
	if f.store.ExpiresSoon(f.actor, tokenRefreshWindow) {
		if _, err := f.store.Refresh(flowCtx, f.actor); err != nil {
			return nil, err
		}
	}

	// Watchdog lives from admission through payment.
	wd := NewWatchdog(f.l)
	wdStream, err := f.openStream(flowCtx, in)
	if err != nil {
		return nil, err
	}
	wdDone := make(chan error, 1)
	go func() { wdDone <- wd.Run(flowCtx, wdStream) }()
	defer wdStream.Close()

	result := make(chan *FlowResult, 1)
	failure := make(chan error, 1)
	go func() {
		res, err := f.purchase(flowCtx, in)
		if err != nil {
			failure <- err
			return
		}
		result <- res
	}()

	select {
	case err := <-failure:
		f.seats.Unlock(context.Background())
		return nil, err

	case res := <-result:
		if res.Payment.State != PaymentStatePaid {
			f.seats.Unlock(context.Background())
		}
		return res, nil

	case err := <-wdDone:
		if err == ErrFlowRevoked {
			// Revocation wins: cancel the purchase, release the hold,
			// and make sure no order-create fires afterwards.
			cancel()
			f.seats.Unlock(context.Background())
			reason := ""
			if rev, ok := <-wd.Revoked(); ok {
				reason = rev.Message
			}
			f.l.Warnf(ctx, "flow terminated by revocation: %s", reason)
			return &FlowResult{Revoked: true, Reason: reason}, ErrFlowRevoked
		}
		if err != nil && flowCtx.Err() == nil {
			// Watchdog channel broke mid-flow. Keep going: the server
			// TTLs still protect fairness, but note the blind spot.
			f.l.Warnf(ctx, "service.Flow.Run: watchdog stream lost: %v", err)
		}
		select {
		case res := <-result:
			if res.Payment.State != PaymentStatePaid {
				f.seats.Unlock(context.Background())
			}
			return res, nil
		case err := <-failure:
			f.seats.Unlock(context.Background())
			return nil, err
		case <-flowCtx.Done():
			return nil, flowCtx.Err()
		}
	}
}

// awaitAdmission gets the buyer through the fairness gate: a readiness
// probe first, then enter-queue plus the status stream until COMPLETED.
// Reconnects re-enter the queue and re-latch the progress baseline.
func (f *Flow) awaitAdmission(ctx context.Context, in FlowInput) error {
	ready, err := f.queue.Check(ctx, in.EventID)
	if err != nil {
		return err
	}
	if ready {
		f.l.Infof(ctx, "queue bypassed, transaction window open: event=%s", in.EventID)
		return nil
	}

	if err := f.queue.Enter(ctx, in.EventID); err != nil {
		return err
	}

	watcher := NewQueueWatcher(f.l)
	stream, err := f.openStream(ctx, in, transport.WithReconnectHook(func(ctx context.Context) error {
		if err := f.queue.Enter(ctx, in.EventID); err != nil {
			return err
		}
		watcher.Rebaseline()
		return nil
	}))
	if err != nil {
		// Queue slot without a stream is useless; give it back.
		if leaveErr := f.queue.Leave(context.Background(), in.EventID); leaveErr != nil {
			f.l.Warnf(ctx, "service.Flow.awaitAdmission: leave after dial failure: %v", leaveErr)
		}
		return err
	}

	go f.reportProgress(ctx, watcher)

	if err := watcher.Run(ctx, stream); err != nil {
		if leaveErr := f.queue.Leave(context.Background(), in.EventID); leaveErr != nil {
			f.l.Warnf(ctx, "service.Flow.awaitAdmission: leave after stream failure: %v", leaveErr)
		}
		return err
	}

	f.l.Infof(ctx, "admitted to transaction window: event=%s", in.EventID)
	return nil
}

func (f *Flow) reportProgress(ctx context.Context, watcher *QueueWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-watcher.Updates():
			if !ok {
				return
			}
			f.l.Infof(ctx, "queue position: %d of %d waiting, %.1f%% done",
				upd.Ticket.MyWaitingNumber, upd.Ticket.TotalWaitingNumber, upd.Progress)
		}
	}
}

// purchase covers everything after admission: seat stage then payment.
func (f *Flow) purchase(ctx context.Context, in FlowInput) (*FlowResult, error) {
	summary, err := f.events.Summary(ctx, in.ScheduleID)
	if err != nil {
		return nil, err
	}

	schedule := &domain.EventSchedule{
		EventID:    in.EventID,
		ScheduleID: in.ScheduleID,
	}
	if err := f.seats.SelectSchedule(schedule, summary.ReservationLimit); err != nil {
		return nil, err
	}

	seatMap, err := f.seats.LoadSeatMap(ctx)
	if err != nil {
		return nil, err
	}

	selection, err := chooseSeats(in, seatMap, summary)
	if err != nil {
		return nil, err
	}
	if err := f.seats.Select(selection); err != nil {
		return nil, err
	}

	f.seats.SetExpireHandler(func() {
		f.l.Warn(context.Background(), "seat lock ttl elapsed, aborting flow")
	})

	if err := f.seats.Lock(ctx); err != nil {
		return nil, err
	}

	pf := NewPaymentFlow(f.orders, &ssePaymentSubscriber{
		orders: f.orders,
		store:  f.store,
		actor:  f.actor,
		l:      f.l,
	}, f.widget, f.l)

	payment, err := pf.Submit(ctx, SubmitInput{
		ScheduleID: in.ScheduleID,
		Seats:      selection,
		Face:       in.Face,
		Limit:      summary.ReservationLimit,
	})
	if err != nil {
		return nil, err
	}

	return &FlowResult{Payment: payment}, nil
}

// chooseSeats resolves the concrete selection: explicit ids when given,
// otherwise the first available seats up to the requested count. Prices
// come from the per-grade price list.
func chooseSeats(in FlowInput, seats []domain.Seat, summary *domain.EventSummary) ([]domain.SeatSelection, error) {
	prices := make(map[string]int64, len(summary.GradePriceList))
	for _, gp := range summary.GradePriceList {
		prices[gp.Grade] = gp.Price
	}

	toSelection := func(s domain.Seat) domain.SeatSelection {
		return domain.SeatSelection{
			SeatMappingID: s.SeatMappingID,
			Price:         prices[s.Grade],
			Grade:         s.Grade,
			Row:           s.Row,
			Col:           s.Col,
		}
	}

	if len(in.SeatIDs) > 0 {
		byID := make(map[int64]domain.Seat, len(seats))
		for _, s := range seats {
			byID[s.SeatMappingID] = s
		}
		out := make([]domain.SeatSelection, 0, len(in.SeatIDs))
		for _, id := range in.SeatIDs {
			s, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("seat %d not found in seat map", id)
			}
			out = append(out, toSelection(s))
		}
		return out, nil
	}

	count := in.SeatCount
	if count <= 0 {
		count = 1
	}
	out := make([]domain.SeatSelection, 0, count)
	for _, s := range seats {
		if !s.Selectable() {
			continue
		}
		out = append(out, toSelection(s))
		if len(out) == count {
			break
		}
	}
	if len(out) < count {
		return nil, fmt.Errorf("only %d of %d requested seats available", len(out), count)
	}
	return out, nil
}

// ssePaymentSubscriber opens the payment push channel for one attempt.
type ssePaymentSubscriber struct {
	orders *client.Order
	store  *session.Store
	actor  domain.Actor
	l      logger.Logger
}

func (s *ssePaymentSubscriber) Subscribe(ctx context.Context, paymentID string) (PaymentEvents, error) {
	token, err := s.store.Token(s.actor)
	if err != nil {
		return nil, err
	}
	return transport.OpenSSE(ctx, s.orders.PaymentSubscribeURL(paymentID), token, s.l)
}
