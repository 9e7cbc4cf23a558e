package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fickets/ticketflow/pkg/logger"
)

func TestWatchdogDeliversRevocation(t *testing.T) {
	src := newFakeSource()
	wd := NewWatchdog(logger.InitializeTestZapLogger())

	done := make(chan error, 1)
	go func() { done <- wd.Run(context.Background(), src) }()

	src.ch <- []byte(`{"type":"ORDER_RIGHT_LOST","message":"payment window elapsed"}`)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrFlowRevoked)
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop on revocation")
	}

	rev, ok := <-wd.Revoked()
	require.True(t, ok)
	assert.Equal(t, RevocationOrderRightLost, rev.Type)
	assert.Equal(t, "payment window elapsed", rev.Message)

	// Channel is closed after the single delivery.
	_, ok = <-wd.Revoked()
	assert.False(t, ok)
	assert.Equal(t, 1, src.closed)
}

func TestWatchdogIgnoresUnrelatedFrames(t *testing.T) {
	src := newFakeSource()
	wd := NewWatchdog(logger.InitializeTestZapLogger())

	done := make(chan error, 1)
	go func() { done <- wd.Run(context.Background(), src) }()

	// Session channels carry other traffic; none of these revoke.
	src.ch <- []byte(`{"type":"HEARTBEAT"}`)
	src.ch <- []byte(`not json at all`)
	src.ch <- []byte(`{"type":"SEAT_RESERVATION_RELEASED","message":"lock ttl elapsed"}`)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrFlowRevoked)
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop on revocation")
	}

	rev := <-wd.Revoked()
	assert.Equal(t, RevocationSeatReservationReleased, rev.Type)
}

func TestWatchdogStreamEndReturnsSourceError(t *testing.T) {
	src := newFakeSource()
	src.err = assert.AnError
	wd := NewWatchdog(logger.InitializeTestZapLogger())

	done := make(chan error, 1)
	go func() { done <- wd.Run(context.Background(), src) }()

	close(src.ch)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, assert.AnError)
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop on stream end")
	}
}

func TestWatchdogStopsOnContextCancel(t *testing.T) {
	src := newFakeSource()
	wd := NewWatchdog(logger.InitializeTestZapLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wd.Run(ctx, src) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watchdog did not honor cancellation")
	}
}
