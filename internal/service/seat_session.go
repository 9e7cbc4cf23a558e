package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Fickets/ticketflow/config"
	"github.com/Fickets/ticketflow/internal/client"
	"github.com/Fickets/ticketflow/internal/domain"
	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

// SeatSession owns the seat-selection half of a purchase: the chosen
// schedule, the loaded seat map, the current selection, and at most one
// active lock. A new lock while one is held is rejected client-side;
// callers must unlock explicitly first.
type SeatSession struct {
	seatCli *client.Seat
	lockTTL time.Duration
	l       logger.Logger

	mu        sync.Mutex
	schedule  *domain.EventSchedule
	limit     int
	seatMap   map[int64]domain.Seat
	selection []domain.SeatSelection
	lock      *domain.SeatLock
	timer     *time.Timer
	onExpire  func()
}

func NewSeatSession(seatCli *client.Seat, cfg config.LockConfig, l logger.Logger) *SeatSession {
	return &SeatSession{
		seatCli: seatCli,
		lockTTL: cfg.TTL,
		l:       l,
	}
}

// SetExpireHandler registers the callback fired when the client-side TTL
// mirror elapses before the lock was released or spent.
func (s *SeatSession) SetExpireHandler(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// SelectSchedule fixes the schedule and reservation limit for this
// session. Rejected while a lock is held: the selection is read-only
// from lock request to release.
func (s *SeatSession) SelectSchedule(schedule *domain.EventSchedule, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		return ErrLockHeld
	}
	s.schedule = schedule
	s.limit = limit
	s.selection = nil
	s.seatMap = nil
	return nil
}

// LoadSeatMap fetches current seat statuses for the selected schedule.
// Callers re-load after any lock conflict to resync before retrying.
func (s *SeatSession) LoadSeatMap(ctx context.Context) ([]domain.Seat, error) {
	s.mu.Lock()
	schedule := s.schedule
	s.mu.Unlock()

	if schedule == nil {
		return nil, ErrNoScheduleSelected
	}

	seats, err := s.seatCli.Statuses(ctx, schedule.ScheduleID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.seatMap = make(map[int64]domain.Seat, len(seats))
	for _, seat := range seats {
		s.seatMap[seat.SeatMappingID] = seat
	}
	s.mu.Unlock()

	return seats, nil
}

// Select validates and records the seat choice. Over-limit and empty
// selections are rejected locally, before any network call; a seat the
// loaded map shows as LOCKED or PURCHASED is not selectable.
func (s *SeatSession) Select(seats []domain.SeatSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == nil {
		return ErrNoScheduleSelected
	}
	if len(seats) == 0 {
		return pkgErrors.Wrap(pkgErrors.KindValidation, "empty selection", ErrEmptySelection)
	}
	if len(seats) > s.limit {
		return pkgErrors.Wrap(pkgErrors.KindValidation,
			fmt.Sprintf("selected %d seats, limit is %d", len(seats), s.limit), ErrSelectionLimit)
	}

	if s.seatMap != nil {
		for _, sel := range seats {
			seat, ok := s.seatMap[sel.SeatMappingID]
			if !ok {
				return pkgErrors.Wrap(pkgErrors.KindValidation,
					fmt.Sprintf("unknown seat %d", sel.SeatMappingID), ErrSeatNotSelectable)
			}
			if !seat.Selectable() {
				return pkgErrors.Wrap(pkgErrors.KindConflict,
					fmt.Sprintf("seat %d is %s", sel.SeatMappingID, seat.Status), ErrSeatNotSelectable)
			}
		}
	}

	s.selection = seats
	return nil
}

func (s *SeatSession) Selection() []domain.SeatSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SeatSelection(nil), s.selection...)
}

func (s *SeatSession) ReservationLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

func (s *SeatSession) Schedule() *domain.EventSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Lock requests the server hold for the current selection and starts the
// client-side TTL mirror. At most one lock per session: a second request
// while one is active returns a conflict without touching the network.
func (s *SeatSession) Lock(ctx context.Context) error {
	s.mu.Lock()
	if s.schedule == nil {
		s.mu.Unlock()
		return ErrNoScheduleSelected
	}
	if len(s.selection) == 0 {
		s.mu.Unlock()
		return pkgErrors.Wrap(pkgErrors.KindValidation, "nothing selected", ErrEmptySelection)
	}
	if s.lock != nil {
		s.mu.Unlock()
		return pkgErrors.Wrap(pkgErrors.KindConflict, "lock already held for this schedule", ErrLockHeld)
	}
	req := client.LockRequest{
		ScheduleID:       s.schedule.ScheduleID,
		ReservationLimit: s.limit,
		Selections:       append([]domain.SeatSelection(nil), s.selection...),
	}
	s.mu.Unlock()

	if err := s.seatCli.Lock(ctx, req); err != nil {
		return err
	}

	ids := make([]int64, 0, len(req.Selections))
	for _, sel := range req.Selections {
		ids = append(ids, sel.SeatMappingID)
	}

	s.mu.Lock()
	s.lock = &domain.SeatLock{
		ScheduleID:       req.ScheduleID,
		SeatMappingIDs:   ids,
		ReservationLimit: req.ReservationLimit,
		AcquiredAt:       time.Now(),
		TTL:              s.lockTTL,
	}
	s.timer = time.AfterFunc(s.lockTTL, s.expire)
	s.mu.Unlock()

	s.l.Infof(ctx, "seat lock acquired: schedule=%d seats=%v ttl=%s", req.ScheduleID, ids, s.lockTTL)
	return nil
}

func (s *SeatSession) expire() {
	s.mu.Lock()
	if s.lock == nil {
		s.mu.Unlock()
		return
	}
	s.lock = nil
	s.timer = nil
	fn := s.onExpire
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// HeldLock returns the active lock, nil when none.
func (s *SeatSession) HeldLock() *domain.SeatLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock
}

// Unlock releases the hold. Best-effort: a failed release is logged and
// swallowed, the server TTL cleans up behind us.
func (s *SeatSession) Unlock(ctx context.Context) {
	s.mu.Lock()
	lock := s.lock
	s.lock = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if lock == nil {
		return
	}

	if err := s.seatCli.Unlock(ctx, lock.ScheduleID, lock.SeatMappingIDs); err != nil {
		s.l.Warnf(ctx, "service.SeatSession.Unlock: best-effort release failed: %v", err)
		return
	}

	s.l.Infof(ctx, "seat lock released: schedule=%d seats=%v", lock.ScheduleID, lock.SeatMappingIDs)
}
