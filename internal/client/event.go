package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/transport"
)

type Event struct {
	rest *transport.Rest
}

func NewEvent(rest *transport.Rest) *Event {
	return &Event{rest: rest}
}

// Summary fetches the stage image, poster, per-grade prices and the
// per-buyer reservation limit for one schedule.
func (c *Event) Summary(ctx context.Context, scheduleID int64) (*domain.EventSummary, error) {
	var out domain.EventSummary
	path := fmt.Sprintf("/events/event-simple/%d", scheduleID)
	if err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch event summary: %w", err)
	}
	return &out, nil
}

func (c *Event) RemainingByGrade(ctx context.Context, scheduleID int64) ([]domain.GradeRemaining, error) {
	var out []domain.GradeRemaining
	path := fmt.Sprintf("/events/grades/seats/%d", scheduleID)
	if err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch remaining seats by grade: %w", err)
	}
	return out, nil
}
