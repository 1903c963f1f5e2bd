package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"chat-broker/internal/broker"
	"chat-broker/internal/models"
	"chat-broker/internal/observability"
	"chat-broker/internal/presence"
)

// SessionHandler upgrades participant connections, feeds submissions and
// position updates into the broker, and tears state down on departure.
type SessionHandler struct {
	hub         *Hub
	broker      *broker.Broker
	presence    *presence.Store
	replayCount int
	log         zerolog.Logger
}

// NewSessionHandler constructs a SessionHandler. replayCount bounds the
// late-join history replay; zero or less replays the full retained history.
func NewSessionHandler(hub *Hub, b *broker.Broker, positions *presence.Store, replayCount int, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		hub:         hub,
		broker:      b,
		presence:    positions,
		replayCount: replayCount,
		log:         logger.With().Str("component", "ws_session").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is the inbound wire format on a session socket.
type clientFrame struct {
	Type         string           `json:"type"`
	Content      string           `json:"content"`
	Channel      models.Channel   `json:"channel"`
	DirectTarget string           `json:"direct_target"`
	Position     *models.Position `json:"position"`
}

// Handle upgrades the connection, registers the participant and serves the
// session until disconnect.
func (h *SessionHandler) Handle(c *gin.Context) {
	participantID := strings.TrimSpace(c.Param("participant_id"))
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	displayName := strings.TrimSpace(c.Query("name"))
	if displayName == "" {
		displayName = participantID
	}

	ctx, span := otel.Tracer("chat-broker/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:        newConnID(),
		ParticipantID: participantID,
		DisplayName:   displayName,
		DeviceID:      observability.DeviceIDFromRequest(c.Request),
		IP:            observability.IPFromRequest(c.Request),
		RequestID:     observability.RequestIDFromRequest(c.Request),
		TraceID:       span.SpanContext().TraceID().String(),
		ConnectedAt:   time.Now(),
	}

	replay := h.bind(conn, info)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.hub.publishSessionEvent(info, "ws_connect", "")
	h.log.Info().Str("participant", participantID).Str("conn_id", info.ConnID).Msg("session joined")

	for _, msg := range replay {
		if err := h.hub.Deliver(participantID, msg); err != nil {
			break
		}
	}

	go h.serve(conn, info)
}

// bind snapshots the replayable history, then binds the connection and
// registers the participant. The snapshot is taken before the session can
// receive live deliveries, so a message accepted during the join is either in
// the replay or delivered live, never both.
func (h *SessionHandler) bind(conn *websocket.Conn, info ConnInfo) []models.Message {
	replay := h.broker.Recent(h.replayCount)
	h.hub.Add(info.ParticipantID, conn, info)
	h.broker.Registry().Register(info.ParticipantID)
	return replay
}

func (h *SessionHandler) serve(conn *websocket.Conn, info ConnInfo) {
	participantID := info.ParticipantID
	var closeReason string
	defer func() {
		h.teardown(conn, info, closeReason)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = h.hub.Send(participantID, models.MessageEvent{Type: "rejected", Reason: "malformed frame"})
			continue
		}

		switch frame.Type {
		case "position":
			if frame.Position != nil {
				h.presence.Update(participantID, *frame.Position)
			}
		case "message", "":
			h.submit(info, frame)
		default:
			_ = h.hub.Send(participantID, models.MessageEvent{Type: "rejected", Reason: "unknown frame type"})
		}
	}
}

// teardown releases the connection's session state. Registry and presence
// entries are released only when this conn was still the participant's bound
// session (or the slot is already empty): a read error surfacing on a
// connection replaced by a reconnect must not unregister the live session.
func (h *SessionHandler) teardown(conn *websocket.Conn, info ConnInfo, closeReason string) {
	participantID := info.ParticipantID
	if h.hub.Remove(participantID, conn) {
		h.broker.Registry().Unregister(participantID)
		h.presence.Remove(participantID)
	}
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	h.hub.publishSessionEvent(info, "ws_disconnect", closeReason)
	h.log.Info().Str("participant", participantID).Str("reason", closeReason).Msg("session left")
	if conn != nil {
		conn.Close()
	}
}

func (h *SessionHandler) submit(info ConnInfo, frame clientFrame) {
	channel := frame.Channel
	if channel == "" {
		channel = models.ChannelGlobal
	}
	if !channel.Valid() || channel == models.ChannelSystem {
		_ = h.hub.Send(info.ParticipantID, models.MessageEvent{Type: "rejected", Reason: "invalid channel"})
		return
	}

	msg := models.Message{
		SenderID:     info.ParticipantID,
		SenderName:   info.DisplayName,
		Content:      frame.Content,
		Channel:      channel,
		DirectTarget: frame.DirectTarget,
	}

	if _, rej := h.broker.Submit(context.Background(), msg); rej != nil {
		_ = h.hub.Send(info.ParticipantID, models.MessageEvent{
			Type:              "rejected",
			Reason:            rej.Reason,
			RetryAfterSeconds: rej.RetryAfter.Seconds(),
		})
	}
}
