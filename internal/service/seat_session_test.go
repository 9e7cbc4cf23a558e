package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fickets/ticketflow/config"
	"github.com/Fickets/ticketflow/internal/client"
	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/transport"
	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

type staticTokens struct{ token string }

func (s staticTokens) Token(actor domain.Actor) (string, error) { return s.token, nil }
func (s staticTokens) Refresh(ctx context.Context, actor domain.Actor) (string, error) {
	return s.token, nil
}

func newTestRest(t *testing.T, baseURL string) *transport.Rest {
	t.Helper()
	return transport.NewRest(config.APIConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		BreakerMaxFail: 10,
		BreakerTimeout: time.Second,
	}, domain.ActorUser, staticTokens{token: "test-token"}, logger.InitializeTestZapLogger())
}

type seatServer struct {
	seats   []domain.Seat
	locks   atomic.Int64
	unlocks atomic.Int64
	lockErr int // HTTP status to fail lock with; 0 means success
}

func (s *seatServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/7/seats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(s.seats)
	})
	mux.HandleFunc("POST /events/seat/lock", func(w http.ResponseWriter, r *http.Request) {
		s.locks.Add(1)
		if s.lockErr != 0 {
			w.WriteHeader(s.lockErr)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "SEAT_ALREADY_LOCKED", "message": "taken"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /events/seat/unlock", func(w http.ResponseWriter, r *http.Request) {
		s.unlocks.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func availableSeats() []domain.Seat {
	return []domain.Seat{
		{SeatMappingID: 101, Grade: "VIP", Row: "A", Col: "1", Status: domain.SeatStatusAvailable},
		{SeatMappingID: 102, Grade: "VIP", Row: "A", Col: "2", Status: domain.SeatStatusAvailable},
		{SeatMappingID: 103, Grade: "R", Row: "B", Col: "1", Status: domain.SeatStatusLocked},
	}
}

func newSeatSession(t *testing.T, srv *seatServer, ttl time.Duration) (*SeatSession, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	seatCli := client.NewSeat(newTestRest(t, ts.URL))
	sess := NewSeatSession(seatCli, config.LockConfig{TTL: ttl, WarnAfter: ttl / 2}, logger.InitializeTestZapLogger())
	return sess, ts
}

func schedule7() *domain.EventSchedule {
	return &domain.EventSchedule{EventID: "ev-1", ScheduleID: 7}
}

func selections(ids ...int64) []domain.SeatSelection {
	out := make([]domain.SeatSelection, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.SeatSelection{SeatMappingID: id, Price: 50000, Grade: "VIP"})
	}
	return out
}

func TestSeatSessionRejectsOverLimitLocally(t *testing.T) {
	srv := &seatServer{seats: availableSeats()}
	sess, _ := newSeatSession(t, srv, time.Minute)

	require.NoError(t, sess.SelectSchedule(schedule7(), 2))

	err := sess.Select(selections(101, 102, 103))
	require.Error(t, err)
	assert.True(t, pkgErrors.IsKind(err, pkgErrors.KindValidation))
	assert.ErrorIs(t, err, ErrSelectionLimit)
	assert.Equal(t, int64(0), srv.locks.Load(), "over-limit selection must not reach the network")
}

func TestSeatSessionRejectsEmptySelection(t *testing.T) {
	srv := &seatServer{seats: availableSeats()}
	sess, _ := newSeatSession(t, srv, time.Minute)

	require.NoError(t, sess.SelectSchedule(schedule7(), 2))
	err := sess.Select(nil)
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestSeatSessionRequiresSchedule(t *testing.T) {
	srv := &seatServer{seats: availableSeats()}
	sess, _ := newSeatSession(t, srv, time.Minute)

	assert.ErrorIs(t, sess.Select(selections(101)), ErrNoScheduleSelected)
	assert.ErrorIs(t, sess.Lock(context.Background()), ErrNoScheduleSelected)
}

func TestSeatSessionLockedSeatNotSelectable(t *testing.T) {
	srv := &seatServer{seats: availableSeats()}
	sess, _ := newSeatSession(t, srv, time.Minute)

	require.NoError(t, sess.SelectSchedule(schedule7(), 4))
	_, err := sess.LoadSeatMap(context.Background())
	require.NoError(t, err)

	// 103 is LOCKED by somebody else in the fetched map.
	err = sess.Select(selections(101, 103))
	require.Error(t, err)
	assert.True(t, pkgErrors.IsKind(err, pkgErrors.KindConflict))
}

func TestSeatSessionLockAndSecondLockRejected(t *testing.T) {
	srv := &seatServer{seats: availableSeats()}
	sess, _ := newSeatSession(t, srv, time.Minute)

	require.NoError(t, sess.SelectSchedule(schedule7(), 2))
	_, err := sess.LoadSeatMap(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Select(selections(101, 102)))

	require.NoError(t, sess.Lock(context.Background()))
	require.NotNil(t, sess.HeldLock())
	assert.Equal(t, []int64{101, 102}, sess.HeldLock().SeatMappingIDs)

	// New lock while one is active: client-side conflict, no request.
	err = sess.Lock(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsKind(err, pkgErrors.KindConflict))
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Equal(t, int64(1), srv.locks.Load())
}

func TestSeatSessionLockConflictFromServer(t *testing.T) {
	srv := &seatServer{seats: availableSeats(), lockErr: http.StatusConflict}
	sess, _ := newSeatSession(t, srv, time.Minute)

	require.NoError(t, sess.SelectSchedule(schedule7(), 2))
	require.NoError(t, sess.Select(selections(101)))

	err := sess.Lock(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsKind(err, pkgErrors.KindConflict))
	assert.Nil(t, sess.HeldLock())
}

func TestSeatSessionUnlockReleases(t *testing.T) {
	srv := &seatServer{seats: availableSeats()}
	sess, _ := newSeatSession(t, srv, time.Minute)

	require.NoError(t, sess.SelectSchedule(schedule7(), 2))
	require.NoError(t, sess.Select(selections(101)))
	require.NoError(t, sess.Lock(context.Background()))

	sess.Unlock(context.Background())
	assert.Nil(t, sess.HeldLock())
	assert.Equal(t, int64(1), srv.unlocks.Load())

	// Unlock without a lock is a no-op.
	sess.Unlock(context.Background())
	assert.Equal(t, int64(1), srv.unlocks.Load())
}

func TestSeatSessionTTLMirrorExpires(t *testing.T) {
	srv := &seatServer{seats: availableSeats()}
	sess, _ := newSeatSession(t, srv, 30*time.Millisecond)

	expired := make(chan struct{})
	sess.SetExpireHandler(func() { close(expired) })

	require.NoError(t, sess.SelectSchedule(schedule7(), 2))
	require.NoError(t, sess.Select(selections(101)))
	require.NoError(t, sess.Lock(context.Background()))

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("lock ttl mirror did not fire")
	}
	assert.Nil(t, sess.HeldLock())
}
