package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

type SSEEvent struct {
	Name string
	Data []byte
}

// SSESubscription consumes a text/event-stream endpoint. Ready is closed
// only after the server has accepted the stream, which gives callers the
// subscribed synchronization point: the correlated create call must not
// fire before Ready.
type SSESubscription struct {
	events chan SSEEvent
	ready  chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	err    error
}

func OpenSSE(ctx context.Context, url, token string, l logger.Logger) (*SSESubscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, pkgErrors.Stream("sse connect failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, pkgErrors.Stream(fmt.Sprintf("sse rejected with status %d", resp.StatusCode), nil)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return nil, pkgErrors.Stream(fmt.Sprintf("unexpected content type: %s", ct), nil)
	}

	sub := &SSESubscription{
		events: make(chan SSEEvent, 4),
		ready:  make(chan struct{}),
		cancel: cancel,
	}
	close(sub.ready)

	go sub.readLoop(streamCtx, resp, l)
	return sub, nil
}

// Ready is closed once the stream is confirmed open.
func (s *SSESubscription) Ready() <-chan struct{} {
	return s.ready
}

// Events delivers parsed frames; closed when the stream ends.
func (s *SSESubscription) Events() <-chan SSEEvent {
	return s.events
}

// Err reports why the stream ended; nil after a clean Close.
func (s *SSESubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *SSESubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *SSESubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SSESubscription) readLoop(ctx context.Context, resp *http.Response, l logger.Logger) {
	defer close(s.events)
	defer resp.Body.Close()

	var (
		name string
		data bytes.Buffer
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() > 0 {
				ev := SSEEvent{Name: name, Data: append([]byte(nil), data.Bytes()...)}
				select {
				case s.events <- ev:
				case <-ctx.Done():
					return
				}
			}
			name = ""
			data.Reset()

		case strings.HasPrefix(line, ":"):
			// keep-alive comment

		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil && !s.isClosed() && ctx.Err() == nil {
		l.Warnf(ctx, "transport.SSESubscription.readLoop: stream broken: %v", err)
		s.mu.Lock()
		s.err = pkgErrors.Stream("sse stream broken", err)
		s.mu.Unlock()
	}
}
