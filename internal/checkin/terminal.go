package checkin

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Fickets/ticketflow/pkg/logger"
)

// Terminal runs both gate roles on one device: the capture loop feeding
// the match pipeline and the manager display consuming its results.
type Terminal struct {
	capture *CaptureClient
	manager *ManagerDisplay
	l       logger.Logger
}

func NewTerminal(capture *CaptureClient, manager *ManagerDisplay, l logger.Logger) *Terminal {
	return &Terminal{
		capture: capture,
		manager: manager,
		l:       l,
	}
}

// Run connects the display, then drives both loops until either fails
// or ctx expires.
func (t *Terminal) Run(ctx context.Context) error {
	if err := t.manager.Connect(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.manager.Run(gctx) })
	g.Go(func() error { return t.capture.Run(gctx) })
	return g.Wait()
}
