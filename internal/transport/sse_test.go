package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

func sseHandler(t *testing.T, frames []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()

		for _, frame := range frames {
			_, _ = w.Write([]byte(frame))
			flusher.Flush()
		}
	})
}

func TestSSEParsesEvents(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		": keep-alive\n\n",
		"event: payment\ndata: {\"status\":\"PAID\"}\n\n",
		"data: first line\ndata: second line\n\n",
	}))
	defer srv.Close()

	sub, err := OpenSSE(context.Background(), srv.URL, "tok", logger.InitializeTestZapLogger())
	require.NoError(t, err)
	defer sub.Close()

	select {
	case <-sub.Ready():
	default:
		t.Fatal("stream accepted but Ready not closed")
	}

	ev := <-sub.Events()
	assert.Equal(t, "payment", ev.Name)
	assert.JSONEq(t, `{"status":"PAID"}`, string(ev.Data))

	ev = <-sub.Events()
	assert.Equal(t, "", ev.Name)
	assert.Equal(t, "first line\nsecond line", string(ev.Data))

	// Server hangs up; the channel closes with no terminal error.
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestSSERejectedStatusIsStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := OpenSSE(context.Background(), srv.URL, "tok", logger.InitializeTestZapLogger())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsKind(err, pkgErrors.KindStream))
}

func TestSSEWrongContentTypeIsStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := OpenSSE(context.Background(), srv.URL, "tok", logger.InitializeTestZapLogger())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsKind(err, pkgErrors.KindStream))
}

func TestSSECloseStopsDelivery(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	sub, err := OpenSSE(context.Background(), srv.URL, "", logger.InitializeTestZapLogger())
	require.NoError(t, err)

	sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel did not close after Close")
	}
	assert.NoError(t, sub.Err())
}
