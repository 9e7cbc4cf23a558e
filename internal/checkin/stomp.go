package checkin

import (
	"context"
	"io"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"

	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
)

// wsRWC adapts a WebSocket connection to the io.ReadWriteCloser the
// STOMP client speaks over. Each Write becomes one text frame; Read
// drains frames in order.
type wsRWC struct {
	conn *websocket.Conn
	r    io.Reader
}

func (w *wsRWC) Read(p []byte) (int, error) {
	for {
		if w.r == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				return 0, err
			}
			w.r = r
		}

		n, err := w.r.Read(p)
		if err == io.EOF {
			w.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsRWC) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsRWC) Close() error {
	return w.conn.Close()
}

// dialBroker opens a STOMP session over a WebSocket broker endpoint.
func dialBroker(ctx context.Context, brokerURL string) (*stomp.Conn, error) {
	wsConn, resp, err := websocket.DefaultDialer.DialContext(ctx, brokerURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, pkgErrors.Stream("broker dial failed", err)
	}

	conn, err := stomp.Connect(&wsRWC{conn: wsConn})
	if err != nil {
		_ = wsConn.Close()
		return nil, pkgErrors.Stream("stomp handshake failed", err)
	}
	return conn, nil
}
