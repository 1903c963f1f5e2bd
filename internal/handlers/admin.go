package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-broker/internal/models"
	"chat-broker/internal/telemetry"
)

// AdminHandler exposes the authoritative configuration surface and system
// broadcasts.
type AdminHandler struct {
	broker  BrokerService
	emitter *telemetry.AuditEmitter
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(b BrokerService, emitter *telemetry.AuditEmitter) *AdminHandler {
	return &AdminHandler{broker: b, emitter: emitter}
}

// settingsPayload is the wire form of ChatSettings with the cooldown in
// seconds, so callers never deal in nanosecond durations.
type settingsPayload struct {
	MaxMessageLength       int     `json:"max_message_length"`
	MessageCooldownSeconds float64 `json:"message_cooldown_seconds"`
	MaxHistorySize         int     `json:"max_history_size"`
	ProximityRadius        float64 `json:"proximity_radius"`
	AllowEmptyMessages     bool    `json:"allow_empty_messages"`
	ProfanityFilterEnabled bool    `json:"profanity_filter_enabled"`
}

func toPayload(s models.ChatSettings) settingsPayload {
	return settingsPayload{
		MaxMessageLength:       s.MaxMessageLength,
		MessageCooldownSeconds: s.MessageCooldown.Seconds(),
		MaxHistorySize:         s.MaxHistorySize,
		ProximityRadius:        s.ProximityRadius,
		AllowEmptyMessages:     s.AllowEmptyMessages,
		ProfanityFilterEnabled: s.ProfanityFilterEnabled,
	}
}

func (p settingsPayload) toSettings() models.ChatSettings {
	return models.ChatSettings{
		MaxMessageLength:       p.MaxMessageLength,
		MessageCooldown:        time.Duration(p.MessageCooldownSeconds * float64(time.Second)),
		MaxHistorySize:         p.MaxHistorySize,
		ProximityRadius:        p.ProximityRadius,
		AllowEmptyMessages:     p.AllowEmptyMessages,
		ProfanityFilterEnabled: p.ProfanityFilterEnabled,
	}
}

// GetSettings returns the current settings snapshot. Clients use this to
// mirror server-side validation for pre-flight checks.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, toPayload(h.broker.Settings()))
}

// PutSettings replaces the settings wholesale.
func (h *AdminHandler) PutSettings(c *gin.Context) {
	var req settingsPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxMessageLength <= 0 || req.MaxHistorySize < 0 || req.MessageCooldownSeconds < 0 || req.ProximityRadius < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings values out of range"})
		return
	}

	h.broker.SetSettings(req.toSettings())
	h.emitter.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("settings replaced (max_len=%d cooldown=%.1fs history=%d)", req.MaxMessageLength, req.MessageCooldownSeconds, req.MaxHistorySize),
		requestIDFromContext(c), participantIDFromContext(c))
	c.Status(http.StatusNoContent)
}

// PostSystem broadcasts a system message to every registered participant.
func (h *AdminHandler) PostSystem(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
		Color   string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, rej := h.broker.BroadcastSystem(c.Request.Context(), req.Content, req.Color)
	if rej != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rej.Reason})
		return
	}

	h.emitter.Emit(c.Request.Context(), "INFO", "system broadcast", requestIDFromContext(c), participantIDFromContext(c))
	c.JSON(http.StatusCreated, msg)
}
