package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-broker/internal/models"
	"chat-broker/internal/observability"
)

// DeliverySink hands an accepted message to one recipient. Implementations
// must be safe to call for a participant that has already left (a no-op in
// that case). Failures are best-effort information: the broker logs and
// skips them.
type DeliverySink interface {
	Deliver(id string, msg models.Message) error
}

// Broker is the single authority arbitrating chat state for a session. It
// sequences validation, history retention, routing and delivery.
type Broker struct {
	registry *Registry
	history  *History
	router   *Router
	sink     DeliverySink
	filter   ContentFilter

	// settingsMu guards the settings pointer swap; reads take one snapshot.
	settingsMu sync.RWMutex
	settings   models.ChatSettings

	// submitMu serializes validate-then-touch so two concurrent messages
	// from the same sender cannot both pass the cooldown check on a stale
	// last-message time. It also enforces the monotonic timestamp floor.
	submitMu  sync.Mutex
	lastStamp time.Time

	now func() time.Time
	log zerolog.Logger
}

// NewBroker assembles a broker. The delivery sink and content filter may be
// nil (no delivery, filter always passes).
func NewBroker(registry *Registry, history *History, router *Router, sink DeliverySink, filter ContentFilter, settings models.ChatSettings, logger zerolog.Logger) *Broker {
	return &Broker{
		registry: registry,
		history:  history,
		router:   router,
		sink:     sink,
		filter:   filter,
		settings: settings,
		now:      time.Now,
		log:      logger.With().Str("component", "broker").Logger(),
	}
}

// Registry exposes the participant registry for the transport layer.
func (b *Broker) Registry() *Registry { return b.registry }

// Settings returns the current configuration snapshot.
func (b *Broker) Settings() models.ChatSettings {
	b.settingsMu.RLock()
	defer b.settingsMu.RUnlock()
	return b.settings
}

// SetSettings replaces the configuration wholesale. In-flight operations
// keep the snapshot they already read. Shrinking the history capacity evicts
// immediately so the bound holds without waiting for the next append.
func (b *Broker) SetSettings(settings models.ChatSettings) {
	b.settingsMu.Lock()
	b.settings = settings
	b.settingsMu.Unlock()

	b.history.TrimTo(settings.MaxHistorySize)
	observability.SetHistorySize(b.history.Len())
	b.log.Info().
		Int("max_message_length", settings.MaxMessageLength).
		Dur("message_cooldown", settings.MessageCooldown).
		Int("max_history_size", settings.MaxHistorySize).
		Msg("settings replaced")
}

// Submit runs a candidate message through validation, history and routing.
// On acceptance it returns the stamped message; on failure the rejection
// carries the reason for the submitting participant. The server clock
// overrides any client-supplied timestamp.
func (b *Broker) Submit(ctx context.Context, msg models.Message) (models.Message, *Rejection) {
	settings := b.Settings()

	b.submitMu.Lock()
	now := b.stampLocked()
	msg.Timestamp = now

	if rej := Validate(msg, settings, b.registry, b.filter, now); rej != nil {
		b.submitMu.Unlock()
		observability.IncSubmission(string(msg.Channel), "rejected")
		b.log.Debug().Str("sender", msg.SenderID).Str("channel", string(msg.Channel)).Str("reason", rej.Reason).Msg("submission rejected")
		return models.Message{}, rej
	}

	if msg.SenderID != "" {
		b.registry.Touch(msg.SenderID, now)
	}
	msg = b.acceptLocked(msg, settings)
	b.submitMu.Unlock()

	b.dispatch(ctx, msg, settings)
	observability.IncSubmission(string(msg.Channel), "accepted")
	return msg, nil
}

// BroadcastSystem emits a system-originated message. It bypasses sender
// validation and rate limiting but still respects the configured maximum
// length, and takes the same history and delivery path as everything else.
// Restricted to the authoritative side by construction: nothing client-facing
// reaches this method.
func (b *Broker) BroadcastSystem(ctx context.Context, content, color string) (models.Message, *Rejection) {
	settings := b.Settings()
	if utf8.RuneCountInString(content) > settings.MaxMessageLength {
		return models.Message{}, &Rejection{Reason: fmt.Sprintf("message too long (max %d characters)", settings.MaxMessageLength)}
	}

	msg := models.Message{
		SenderName: models.SystemSenderName,
		Content:    content,
		Channel:    models.ChannelSystem,
		Color:      color,
	}

	b.submitMu.Lock()
	msg.Timestamp = b.stampLocked()
	msg = b.acceptLocked(msg, settings)
	b.submitMu.Unlock()

	b.dispatch(ctx, msg, settings)
	observability.IncSubmission(string(models.ChannelSystem), "accepted")
	return msg, nil
}

// Recent returns the last count messages for late-join replay; count <= 0
// returns the full retained history.
func (b *Broker) Recent(count int) []models.Message {
	return b.history.Recent(count)
}

// ClearHistory empties the retained history.
func (b *Broker) ClearHistory() {
	b.history.Clear()
	observability.SetHistorySize(0)
}

// stampLocked assigns the accept timestamp, clamped so the accepted sequence
// is monotonically non-decreasing even if the wall clock steps backwards.
func (b *Broker) stampLocked() time.Time {
	now := b.now()
	if now.Before(b.lastStamp) {
		now = b.lastStamp
	}
	b.lastStamp = now
	return now
}

func (b *Broker) acceptLocked(msg models.Message, settings models.ChatSettings) models.Message {
	msg.ID = uuid.NewString()
	if msg.Color == "" {
		msg.Color = msg.DisplayColor()
	}
	b.history.Append(msg, settings.MaxHistorySize)
	observability.SetHistorySize(b.history.Len())
	return msg
}

// dispatch routes the accepted message and invokes the sink once per
// recipient. Sink failures are logged and skipped: the message is already
// durable in history, so one unreachable recipient never fails the
// submission or starves the rest of the delivery set.
func (b *Broker) dispatch(ctx context.Context, msg models.Message, settings models.ChatSettings) {
	if b.sink == nil {
		return
	}
	for _, id := range b.router.Route(ctx, msg, settings) {
		if err := b.sink.Deliver(id, msg); err != nil {
			observability.IncDeliveryFailure()
			b.log.Warn().Err(err).Str("recipient", id).Str("channel", string(msg.Channel)).Msg("delivery failed")
			continue
		}
		observability.IncDelivery(string(msg.Channel))
	}
}
