package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fickets/ticketflow/internal/domain"
	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

type fakeSource struct {
	ch     chan []byte
	err    error
	closed int
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan []byte, 16)}
}

func (f *fakeSource) Frames() <-chan []byte { return f.ch }
func (f *fakeSource) Err() error            { return f.err }
func (f *fakeSource) Close()                { f.closed++ }

func (f *fakeSource) push(t *testing.T, ticket domain.QueueTicket) {
	t.Helper()
	payload, err := json.Marshal(ticket)
	require.NoError(t, err)
	f.ch <- payload
}

func TestQueueWatcherProgressLatchesBaseline(t *testing.T) {
	w := NewQueueWatcher(logger.InitializeTestZapLogger())

	assert.InDelta(t, 0, w.progress(500), 0.001)
	assert.InDelta(t, 20, w.progress(400), 0.001)
	assert.InDelta(t, 50, w.progress(250), 0.001)
	assert.InDelta(t, 100, w.progress(0), 0.001)
}

func TestQueueWatcherProgressMonotoneAndClamped(t *testing.T) {
	w := NewQueueWatcher(logger.InitializeTestZapLogger())

	w.progress(100)
	p1 := w.progress(40)
	// A regression in the waiting number must not lower progress.
	p2 := w.progress(80)
	assert.GreaterOrEqual(t, p2, p1)

	// A waiting number above the baseline clamps at 0 progress floor,
	// never negative.
	w2 := NewQueueWatcher(logger.InitializeTestZapLogger())
	w2.progress(10)
	assert.GreaterOrEqual(t, w2.progress(50), 0.0)
	assert.LessOrEqual(t, w2.progress(0), 100.0)
}

func TestQueueWatcherZeroBaselineIsComplete(t *testing.T) {
	w := NewQueueWatcher(logger.InitializeTestZapLogger())
	assert.InDelta(t, 100, w.progress(0), 0.001)
}

func TestQueueWatcherRebaseline(t *testing.T) {
	w := NewQueueWatcher(logger.InitializeTestZapLogger())

	w.progress(500)
	w.progress(100) // 80%

	// Fresh enter-queue reset the server position; progress restarts
	// from the new baseline instead of inheriting the old one.
	w.Rebaseline()
	assert.InDelta(t, 0, w.progress(600), 0.001)
	assert.InDelta(t, 50, w.progress(300), 0.001)
}

func TestQueueWatcherAdmitsOnceAndClosesSource(t *testing.T) {
	w := NewQueueWatcher(logger.InitializeTestZapLogger())
	src := newFakeSource()

	src.push(t, domain.QueueTicket{MyWaitingNumber: 500, Status: domain.QueueStatusWaiting})
	src.push(t, domain.QueueTicket{MyWaitingNumber: 0, Status: domain.QueueStatusCompleted})

	err := w.Run(context.Background(), src)
	require.NoError(t, err)

	select {
	case <-w.Admitted():
	default:
		t.Fatal("expected admission signal")
	}

	assert.Equal(t, 1, src.closed)
}

func TestQueueWatcherCancelled(t *testing.T) {
	w := NewQueueWatcher(logger.InitializeTestZapLogger())
	src := newFakeSource()

	src.push(t, domain.QueueTicket{MyWaitingNumber: 3, Status: domain.QueueStatusCancelled})

	err := w.Run(context.Background(), src)
	assert.ErrorIs(t, err, ErrQueueCancelled)
}

func TestQueueWatcherStreamFailure(t *testing.T) {
	w := NewQueueWatcher(logger.InitializeTestZapLogger())
	src := newFakeSource()
	src.err = pkgErrors.Stream("boom", nil)
	close(src.ch)

	err := w.Run(context.Background(), src)
	assert.True(t, pkgErrors.IsKind(err, pkgErrors.KindStream))
}

func TestQueueWatcherMalformedFramesSkipped(t *testing.T) {
	w := NewQueueWatcher(logger.InitializeTestZapLogger())
	src := newFakeSource()

	src.ch <- []byte("not json")
	src.push(t, domain.QueueTicket{MyWaitingNumber: 0, Status: domain.QueueStatusCompleted})

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), src) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not finish")
	}
}
