package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-broker/internal/broker"
	"chat-broker/internal/models"
	"chat-broker/internal/telemetry"
)

// BrokerService is the broker surface the HTTP layer depends on.
type BrokerService interface {
	Submit(ctx context.Context, msg models.Message) (models.Message, *broker.Rejection)
	BroadcastSystem(ctx context.Context, content, color string) (models.Message, *broker.Rejection)
	Settings() models.ChatSettings
	SetSettings(settings models.ChatSettings)
	Recent(count int) []models.Message
	ClearHistory()
}

// MessageHandler manages message submission and the history query surface.
type MessageHandler struct {
	broker  BrokerService
	emitter *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(b BrokerService, emitter *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{broker: b, emitter: emitter}
}

// PostMessage submits a candidate message on behalf of a participant.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	participantID := c.Param("participant_id")
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	var req struct {
		Content      string         `json:"content"`
		Channel      models.Channel `json:"channel"`
		DirectTarget string         `json:"direct_target"`
		SenderName   string         `json:"sender_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel := req.Channel
	if channel == "" {
		channel = models.ChannelGlobal
	}
	if !channel.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel"})
		return
	}
	if channel == models.ChannelSystem {
		// System messages are authoritative-side only.
		c.JSON(http.StatusForbidden, gin.H{"error": "system channel is restricted"})
		return
	}

	senderName := req.SenderName
	if senderName == "" {
		senderName = participantID
	}

	msg, rej := h.broker.Submit(c.Request.Context(), models.Message{
		SenderID:     participantID,
		SenderName:   senderName,
		Content:      req.Content,
		Channel:      channel,
		DirectTarget: req.DirectTarget,
	})
	if rej != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":               rej.Reason,
			"retry_after_seconds": rej.RetryAfter.Seconds(),
		})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetHistory returns the last N retained messages; count=0 returns all.
func (h *MessageHandler) GetHistory(c *gin.Context) {
	count := 0
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
			return
		}
		count = parsed
	}

	c.JSON(http.StatusOK, gin.H{"messages": h.broker.Recent(count)})
}

// ClearHistory empties the retained history (administrative reset).
func (h *MessageHandler) ClearHistory(c *gin.Context) {
	h.broker.ClearHistory()
	h.emitter.Emit(c.Request.Context(), "INFO", "history cleared", requestIDFromContext(c), participantIDFromContext(c))
	c.Status(http.StatusNoContent)
}
