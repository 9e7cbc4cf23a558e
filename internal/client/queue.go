package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/transport"
)

// Queue talks to the admission-queue service. Entering is idempotent-ish:
// re-entry after a dropped connection is allowed and resets the caller's
// waiting number baseline.
type Queue struct {
	rest *transport.Rest
}

func NewQueue(rest *transport.Rest) *Queue {
	return &Queue{rest: rest}
}

func (c *Queue) Enter(ctx context.Context, eventID string) error {
	path := fmt.Sprintf("/queues/%s/enter-queue", eventID)
	if err := c.rest.DoJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to enter queue: %w", err)
	}
	return nil
}

func (c *Queue) Leave(ctx context.Context, eventID string) error {
	path := fmt.Sprintf("/queues/%s/leave-queue", eventID)
	if err := c.rest.DoJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to leave queue: %w", err)
	}
	return nil
}

func (c *Queue) MyStatus(ctx context.Context, eventID string) (*domain.QueueTicket, error) {
	var out domain.QueueTicket
	path := fmt.Sprintf("/queues/%s/my-status", eventID)
	if err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get queue status: %w", err)
	}
	return &out, nil
}

// Check probes whether the caller may bypass the queue entirely.
func (c *Queue) Check(ctx context.Context, eventID string) (bool, error) {
	var out bool
	path := fmt.Sprintf("/queues/%s/check", eventID)
	if err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, fmt.Errorf("failed to probe queue readiness: %w", err)
	}
	return out, nil
}
