package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/transport"
)

type Seat struct {
	rest *transport.Rest
}

func NewSeat(rest *transport.Rest) *Seat {
	return &Seat{rest: rest}
}

type LockRequest struct {
	ScheduleID       int64                  `json:"eventScheduleId"`
	ReservationLimit int                    `json:"reservationLimit"`
	Selections       []domain.SeatSelection `json:"selectSeatInfoList"`
}

type UnlockRequest struct {
	ScheduleID     int64   `json:"eventScheduleId"`
	SeatMappingIDs []int64 `json:"seatMappingId"`
}

func (c *Seat) Statuses(ctx context.Context, scheduleID int64) ([]domain.Seat, error) {
	var out []domain.Seat
	path := fmt.Sprintf("/events/%d/seats", scheduleID)
	if err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch seat statuses: %w", err)
	}
	return out, nil
}

// Lock requests a time-boxed hold on the selected seats. A conflict means
// somebody else got there first; the caller must re-fetch statuses to
// resync before retrying.
func (c *Seat) Lock(ctx context.Context, req LockRequest) error {
	if err := c.rest.DoJSON(ctx, http.MethodPost, "/events/seat/lock", req, nil); err != nil {
		return fmt.Errorf("failed to lock seats: %w", err)
	}
	return nil
}

// Unlock releases a hold. Best-effort; the server-side TTL is the real
// backstop when the client disappears without calling it.
func (c *Seat) Unlock(ctx context.Context, scheduleID int64, seatMappingIDs []int64) error {
	req := UnlockRequest{
		ScheduleID:     scheduleID,
		SeatMappingIDs: seatMappingIDs,
	}
	if err := c.rest.DoJSON(ctx, http.MethodPost, "/events/seat/unlock", req, nil); err != nil {
		return fmt.Errorf("failed to unlock seats: %w", err)
	}
	return nil
}
