package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-stomp/stomp/v3"

	"github.com/Fickets/ticketflow/internal/transport"
	pkgErrors "github.com/Fickets/ticketflow/pkg/errors"
	"github.com/Fickets/ticketflow/pkg/logger"
)

// MatchResult is what the scanning pipeline pushes after a face capture
// was matched against ticket holders.
type MatchResult struct {
	TicketID   int64    `json:"ticketId"`
	Name       string   `json:"name"`
	Birth      string   `json:"birth"`
	SeatLoc    []string `json:"seatLoc"`
	Similarity float64  `json:"similarity"`
}

// MatchUpdate is one frame from the check channel. Ready means the
// backend cleared the channel between checks: next person, not an
// error.
type MatchUpdate struct {
	Ready  bool
	Result *MatchResult
}

// ManagerDisplay subscribes to the check topic for one gate and renders
// whatever the backend pushes; the operator confirms entry manually.
type ManagerDisplay struct {
	brokerURL string
	eventID   string
	connectID string
	rest      *transport.Rest
	l         logger.Logger

	conn    *stomp.Conn
	sub     *stomp.Subscription
	updates chan MatchUpdate
}

func NewManagerDisplay(brokerURL, eventID, connectID string, rest *transport.Rest, l logger.Logger) *ManagerDisplay {
	return &ManagerDisplay{
		brokerURL: brokerURL,
		eventID:   eventID,
		connectID: connectID,
		rest:      rest,
		l:         l,
		updates:   make(chan MatchUpdate, 4),
	}
}

func (m *ManagerDisplay) topic() string {
	return fmt.Sprintf("/sub/check/%s/%s", m.eventID, m.connectID)
}

func (m *ManagerDisplay) Connect(ctx context.Context) error {
	conn, err := dialBroker(ctx, m.brokerURL)
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(m.topic(), stomp.AckAuto)
	if err != nil {
		_ = conn.Disconnect()
		return pkgErrors.Stream("subscribe failed", err)
	}

	m.conn = conn
	m.sub = sub
	m.l.Infof(ctx, "manager display subscribed: topic=%s", m.topic())
	return nil
}

// Updates streams match results and ready signals.
func (m *ManagerDisplay) Updates() <-chan MatchUpdate {
	return m.updates
}

// Run pumps broker messages until the subscription ends or ctx expires.
func (m *ManagerDisplay) Run(ctx context.Context) error {
	defer close(m.updates)
	defer m.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-m.sub.C:
			if !ok {
				return pkgErrors.Stream("check channel closed", nil)
			}
			if msg.Err != nil {
				return pkgErrors.Stream("check channel error", msg.Err)
			}

			upd, ok := m.decodeUpdate(ctx, msg.Body)
			if !ok {
				continue
			}

			select {
			case m.updates <- upd:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// decodeUpdate maps one broker frame to an update. An empty or "null"
// body is the backend clearing the display between checks.
func (m *ManagerDisplay) decodeUpdate(ctx context.Context, body []byte) (MatchUpdate, bool) {
	if len(body) == 0 || string(body) == "null" {
		return MatchUpdate{Ready: true}, true
	}

	var res MatchResult
	if err := json.Unmarshal(body, &res); err != nil {
		m.l.Warnf(ctx, "checkin.ManagerDisplay.decodeUpdate: dropping malformed frame: %v", err)
		return MatchUpdate{}, false
	}
	return MatchUpdate{Result: &res}, true
}

type confirmRequest struct {
	TicketID  int64  `json:"ticketId"`
	EventID   string `json:"eventId"`
	ConnectID string `json:"connectId"`
}

// Confirm flips the ticket's checked-in status after a visual match.
func (m *ManagerDisplay) Confirm(ctx context.Context, ticketID int64) error {
	req := confirmRequest{
		TicketID:  ticketID,
		EventID:   m.eventID,
		ConnectID: m.connectID,
	}
	if err := m.rest.DoJSON(ctx, http.MethodPost, "/ticketing/check", req, nil); err != nil {
		return fmt.Errorf("failed to confirm entry: %w", err)
	}
	return nil
}

func (m *ManagerDisplay) Close() {
	if m.sub != nil {
		_ = m.sub.Unsubscribe()
		m.sub = nil
	}
	if m.conn != nil {
		_ = m.conn.Disconnect()
		m.conn = nil
	}
}
