package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-broker/internal/models"
	"chat-broker/internal/observability"
)

// writeWait bounds a single websocket write so one stalled peer cannot wedge
// delivery to everyone else.
const writeWait = 5 * time.Second

type session struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

// Hub maintains the active websocket session per participant and acts as the
// broker's delivery sink.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	log      zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		log:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Add binds a connection to a participant. A previous connection for the
// same participant is closed and replaced.
func (h *Hub) Add(participantID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	previous := h.sessions[participantID]
	h.sessions[participantID] = &session{conn: conn, info: info}
	h.mu.Unlock()

	if previous != nil && previous.conn != nil {
		_ = previous.conn.Close()
	}
}

// Remove unbinds the participant's connection. The conn must match the bound
// one so a reconnect racing a disconnect does not evict the new session. It
// reports whether the participant is left without a bound session: false
// means a newer connection owns the slot and the caller's teardown is stale.
func (h *Hub) Remove(participantID string, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[participantID]
	if !ok {
		return true
	}
	if s.conn != conn {
		return false
	}
	delete(h.sessions, participantID)
	return true
}

// Deliver hands an accepted message to one participant. A participant
// without an active session is a no-op: the transport may be asked to
// deliver to someone who just left.
func (h *Hub) Deliver(participantID string, msg models.Message) error {
	return h.Send(participantID, models.MessageEvent{Type: "message", Message: &msg})
}

// Send writes one event to the participant's session, if any. A write error
// closes and unbinds the connection.
func (h *Hub) Send(participantID string, event models.MessageEvent) error {
	h.mu.RLock()
	s := h.sessions[participantID]
	h.mu.RUnlock()
	if s == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = s.conn.WriteMessage(websocket.TextMessage, payload)
	s.mu.Unlock()
	if err != nil {
		h.log.Warn().Err(err).Str("participant", participantID).Msg("websocket write error")
		_ = s.conn.Close()
		h.Remove(participantID, s.conn)
		h.publishSessionEvent(s.info, "ws_error", err.Error())
		observability.IncWSEvent("ws_error")
		return err
	}
	return nil
}

// Active returns the number of bound sessions.
func (h *Hub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) publishSessionEvent(info ConnInfo, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"participant_id": info.ParticipantID,
			"device_id":      info.DeviceID,
			"ip":             info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
