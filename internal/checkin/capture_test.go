package checkin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fickets/ticketflow/config"
	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/internal/transport"
	"github.com/Fickets/ticketflow/pkg/logger"
)

type adminTokens struct{}

func (adminTokens) Token(actor domain.Actor) (string, error) { return "admin-token", nil }
func (adminTokens) Refresh(ctx context.Context, actor domain.Actor) (string, error) {
	return "admin-token", nil
}

func newCheckinRest(t *testing.T, baseURL string) *transport.Rest {
	t.Helper()
	return transport.NewRest(config.APIConfig{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		BreakerMaxFail: 10,
		BreakerTimeout: time.Second,
	}, domain.ActorAdmin, adminTokens{}, logger.InitializeTestZapLogger())
}

type stillCamera struct {
	img      []byte
	detected atomic.Bool
}

func (c *stillCamera) Frame(ctx context.Context) ([]byte, bool, error) {
	return c.img, c.detected.Load(), nil
}

func TestCaptureClientSkipsTicksWhileUploadPending(t *testing.T) {
	received := make(chan struct{}, 16)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ev-1", r.FormValue("eventId"))
		assert.Equal(t, "gate-1", r.FormValue("connectId"))
		received <- struct{}{}
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	camera := &stillCamera{img: []byte{0xff, 0xd8}}
	camera.detected.Store(true)

	client := NewCaptureClient(camera, newCheckinRest(t, srv.URL), "ev-1", "gate-1", 5*time.Millisecond, logger.InitializeTestZapLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("no capture upload arrived")
	}

	// Many poll ticks elapse while the first upload is still pending;
	// none of them may start a second upload.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, received)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCaptureClientIgnoresEmptyZone(t *testing.T) {
	var uploads atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	camera := &stillCamera{img: []byte{0xff, 0xd8}} // detected stays false

	client := NewCaptureClient(camera, newCheckinRest(t, srv.URL), "ev-1", "gate-1", 5*time.Millisecond, logger.InitializeTestZapLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	err := client.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(0), uploads.Load())
}
