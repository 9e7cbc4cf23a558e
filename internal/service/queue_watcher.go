package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Fickets/ticketflow/internal/domain"
	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

// QueueWatcher consumes the queue-status push channel for one (event,
// schedule) pair. The first waiting number it observes becomes the
// progress baseline; COMPLETED admits the buyer exactly once and closes
// the channel, CANCELLED aborts.
type QueueWatcher struct {
	l logger.Logger

	mu           sync.Mutex
	baseline     int64
	baselineSet  bool
	lastProgress float64

	updates   chan QueueUpdate
	admitted  chan struct{}
	admitOnce sync.Once
}

func NewQueueWatcher(l logger.Logger) *QueueWatcher {
	return &QueueWatcher{
		l:        l,
		updates:  make(chan QueueUpdate, 8),
		admitted: make(chan struct{}),
	}
}

// Updates streams progress ticks. Best-effort: slow consumers drop
// intermediate ticks rather than stalling the read loop.
func (w *QueueWatcher) Updates() <-chan QueueUpdate {
	return w.updates
}

// Admitted is closed exactly once, when a COMPLETED frame arrives.
func (w *QueueWatcher) Admitted() <-chan struct{} {
	return w.admitted
}

// Rebaseline forgets the latched waiting number. Must be called after
// any fresh enter-queue so a reset server position starts a new
// baseline instead of inflating progress.
func (w *QueueWatcher) Rebaseline() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.baselineSet = false
	w.lastProgress = 0
}

// progress computes the clamped percentage for the current waiting
// number, monotonically non-decreasing against earlier observations.
func (w *QueueWatcher) progress(current int64) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.baselineSet {
		w.baseline = current
		w.baselineSet = true
	}

	var p float64
	switch {
	case w.baseline <= 0:
		p = 100
	default:
		p = float64(w.baseline-current) / float64(w.baseline) * 100
	}

	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p < w.lastProgress {
		p = w.lastProgress
	}
	w.lastProgress = p
	return p
}

// Run blocks consuming frames until admission, cancellation, stream
// failure, or ctx expiry. On COMPLETED it closes the source and returns
// nil; on CANCELLED it returns ErrQueueCancelled.
func (w *QueueWatcher) Run(ctx context.Context, src FrameSource) error {
	defer src.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case payload, ok := <-src.Frames():
			if !ok {
				if err := src.Err(); err != nil {
					return err
				}
				return pkgErrors.Stream("queue stream closed unexpectedly", nil)
			}

			var ticket domain.QueueTicket
			if err := json.Unmarshal(payload, &ticket); err != nil {
				w.l.Warnf(ctx, "service.QueueWatcher.Run: dropping malformed frame: %v", err)
				continue
			}

			upd := QueueUpdate{
				Ticket:   ticket,
				Progress: w.progress(ticket.MyWaitingNumber),
			}

			select {
			case w.updates <- upd:
			default:
			}

			switch ticket.Status {
			case domain.QueueStatusCompleted:
				w.admitOnce.Do(func() { close(w.admitted) })
				return nil
			case domain.QueueStatusCancelled:
				return ErrQueueCancelled
			}
		}
	}
}
