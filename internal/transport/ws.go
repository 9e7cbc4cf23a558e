package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/Fickets/ticketflow/config"
	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

// WSStream reads JSON frames from a WebSocket endpoint and delivers the
// raw payloads on a channel. A dropped connection is redialed with
// exponential backoff; an OnReconnect hook lets the consumer re-register
// server-side state (e.g. re-enter the queue) before frames resume.
type WSStream struct {
	url         string
	header      http.Header
	cfg         config.StreamConfig
	onReconnect func(ctx context.Context) error
	l           logger.Logger

	frames chan []byte

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	err    error
	done   chan struct{}
}

type WSOption func(*WSStream)

// WithReconnectHook runs fn after every successful redial, before frames
// from the new connection are delivered.
func WithReconnectHook(fn func(ctx context.Context) error) WSOption {
	return func(s *WSStream) {
		s.onReconnect = fn
	}
}

func OpenWS(ctx context.Context, url string, header http.Header, cfg config.StreamConfig, l logger.Logger, opts ...WSOption) (*WSStream, error) {
	s := &WSStream{
		url:    url,
		header: header,
		cfg:    cfg,
		l:      l,
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, pkgErrors.Stream("websocket dial failed", err)
	}
	s.conn = conn

	go s.readLoop(ctx)
	return s, nil
}

// Frames delivers raw message payloads. The channel is closed when the
// stream terminates; Err reports why.
func (s *WSStream) Frames() <-chan []byte {
	return s.frames
}

// Err returns the terminal stream error, nil after a clean Close.
func (s *WSStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the read loop has fully stopped.
func (s *WSStream) Done() <-chan struct{} {
	return s.done
}

func (s *WSStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
	}
}

func (s *WSStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *WSStream) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, s.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (s *WSStream) redial(ctx context.Context) (*websocket.Conn, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.ReconnectBase
	bo.MaxInterval = s.cfg.ReconnectMax

	var conn *websocket.Conn
	op := func() error {
		var err error
		conn, err = s.dial(ctx)
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, s.cfg.ReconnectRetries), ctx))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *WSStream) readLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.frames)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err == nil {
			select {
			case s.frames <- payload:
			case <-ctx.Done():
				s.finish(ctx.Err())
				return
			}
			continue
		}

		if s.isClosed() || ctx.Err() != nil {
			s.finish(nil)
			return
		}

		s.l.Warnf(ctx, "transport.WSStream.readLoop: connection lost, redialing: %v", err)

		conn, dialErr := s.redial(ctx)
		if dialErr != nil {
			s.finish(pkgErrors.Stream("websocket reconnect failed", dialErr))
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			s.finish(nil)
			return
		}
		s.conn = conn
		s.mu.Unlock()

		if s.onReconnect != nil {
			if hookErr := s.onReconnect(ctx); hookErr != nil {
				s.finish(pkgErrors.Stream("reconnect hook failed", hookErr))
				return
			}
		}

		s.l.Infof(ctx, "transport.WSStream.readLoop: reconnected to %s", s.url)
	}
}

func (s *WSStream) finish(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
}
