package checkin

import (
	"context"
	"fmt"
	"mime/multipart"
	"sync/atomic"
	"time"

	"github.com/Fickets/ticketflow/internal/transport"
	"github.com/Fickets/ticketflow/pkg/logger"
)

// Camera supplies frames from whatever capture hardware backs the
// terminal. Detected reports whether a face sits inside the capture
// zone for this frame.
type Camera interface {
	Frame(ctx context.Context) (img []byte, detected bool, err error)
}

// CaptureClient polls the camera at a fixed interval and posts one
// detected frame at a time to the match endpoint. The in-flight guard
// keeps a slow match from stacking duplicate uploads.
type CaptureClient struct {
	camera    Camera
	rest      *transport.Rest
	eventID   string
	connectID string
	interval  time.Duration
	l         logger.Logger

	inFlight atomic.Bool
}

func NewCaptureClient(camera Camera, rest *transport.Rest, eventID, connectID string, interval time.Duration, l logger.Logger) *CaptureClient {
	return &CaptureClient{
		camera:    camera,
		rest:      rest,
		eventID:   eventID,
		connectID: connectID,
		interval:  interval,
		l:         l,
	}
}

// Run polls until ctx expires. Detection ticks while an upload is
// pending are skipped, not queued.
func (c *CaptureClient) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if c.inFlight.Load() {
				continue
			}

			img, detected, err := c.camera.Frame(ctx)
			if err != nil {
				c.l.Warnf(ctx, "checkin.CaptureClient.Run: frame grab failed: %v", err)
				continue
			}
			if !detected {
				continue
			}

			c.inFlight.Store(true)
			go func(img []byte) {
				defer c.inFlight.Store(false)
				if err := c.postMatch(ctx, img); err != nil {
					c.l.Warnf(ctx, "checkin.CaptureClient.Run: match upload failed: %v", err)
				}
			}(img)
		}
	}
}

// postMatch uploads the captured frame; the result comes back over the
// check topic, not this response.
func (c *CaptureClient) postMatch(ctx context.Context, img []byte) error {
	err := c.rest.DoMultipart(ctx, "/ticketing/match", func(w *multipart.Writer) error {
		if err := w.WriteField("eventId", c.eventID); err != nil {
			return err
		}
		if err := w.WriteField("connectId", c.connectID); err != nil {
			return err
		}
		part, err := w.CreateFormFile("faceImg", "capture.jpg")
		if err != nil {
			return err
		}
		_, err = part.Write(img)
		return err
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to post capture: %w", err)
	}
	return nil
}
