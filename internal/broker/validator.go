package broker

import (
	"fmt"
	"time"
	"unicode/utf8"

	"chat-broker/internal/models"
)

// Rejection is the only failure kind surfaced to a submitting participant.
// Reason is human-readable; RetryAfter carries the remaining cooldown for
// rate-limited rejections so UIs can localize without parsing the string.
type Rejection struct {
	Reason     string
	RetryAfter time.Duration
}

func (r *Rejection) Error() string { return r.Reason }

// RateState exposes per-sender last accepted-message times. A missing entry
// is treated as unlimited elapsed time.
type RateState interface {
	LastMessageTime(id string) (time.Time, bool)
}

// ContentFilter is the optional pass/fail hook over message content.
type ContentFilter interface {
	Allow(content string) bool
}

// Validate checks a candidate message against a settings snapshot. Checks
// run in a fixed order and the first failure wins. The function is pure with
// respect to its inputs: it never mutates rate state, so the client-facing
// pre-flight check and the server run the exact same code over the same
// snapshot without drifting.
func Validate(msg models.Message, settings models.ChatSettings, rates RateState, filter ContentFilter, now time.Time) *Rejection {
	if msg.Content == "" && !settings.AllowEmptyMessages {
		return &Rejection{Reason: "message content is empty"}
	}

	if utf8.RuneCountInString(msg.Content) > settings.MaxMessageLength {
		return &Rejection{Reason: fmt.Sprintf("message too long (max %d characters)", settings.MaxMessageLength)}
	}

	if msg.Channel != models.ChannelSystem && msg.SenderID == "" {
		return &Rejection{Reason: "invalid sender"}
	}

	if msg.Channel == models.ChannelDirect && msg.DirectTarget == "" {
		return &Rejection{Reason: "direct message requires a target"}
	}

	if msg.SenderID != "" && rates != nil {
		if last, ok := rates.LastMessageTime(msg.SenderID); ok {
			if elapsed := now.Sub(last); elapsed < settings.MessageCooldown {
				remaining := settings.MessageCooldown - elapsed
				return &Rejection{
					Reason:     fmt.Sprintf("please wait %.1f seconds before sending another message", remaining.Seconds()),
					RetryAfter: remaining,
				}
			}
		}
	}

	if settings.ProfanityFilterEnabled && filter != nil && !filter.Allow(msg.Content) {
		return &Rejection{Reason: "content rejected by filter"}
	}

	return nil
}
