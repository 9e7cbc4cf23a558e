package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Fickets/ticketflow/pkg/logger"
)

// Watchdog listens on the long-lived session channel for server-initiated
// revocations, from queue admission through payment. A revocation is
// authoritative: whatever the rest of the flow believes, the slot is gone.
type Watchdog struct {
	l logger.Logger

	once    sync.Once
	revoked chan Revocation
}

func NewWatchdog(l logger.Logger) *Watchdog {
	return &Watchdog{
		l:       l,
		revoked: make(chan Revocation, 1),
	}
}

// Revoked delivers at most one revocation for the flow instance.
func (w *Watchdog) Revoked() <-chan Revocation {
	return w.revoked
}

func (w *Watchdog) emit(rev Revocation) {
	w.once.Do(func() {
		w.revoked <- rev
		close(w.revoked)
	})
}

// Run consumes the watchdog channel until a revocation, stream end, or
// ctx expiry. Returns ErrFlowRevoked when a revocation was seen; unknown
// frame types are ignored, the channel carries other session traffic too.
func (w *Watchdog) Run(ctx context.Context, src FrameSource) error {
	defer src.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case payload, ok := <-src.Frames():
			if !ok {
				return src.Err()
			}

			var rev Revocation
			if err := json.Unmarshal(payload, &rev); err != nil {
				w.l.Warnf(ctx, "service.Watchdog.Run: dropping malformed frame: %v", err)
				continue
			}

			switch rev.Type {
			case RevocationOrderRightLost, RevocationSeatReservationReleased:
				w.l.Warnf(ctx, "session revoked by server: type=%s message=%q", rev.Type, rev.Message)
				w.emit(rev)
				return ErrFlowRevoked
			}
		}
	}
}
