package models

import "time"

// ChatSettings is the process-wide broker configuration. It is replaced
// wholesale by the authoritative side and read as one snapshot per operation.
type ChatSettings struct {
	MaxMessageLength       int           `json:"max_message_length"`
	MessageCooldown        time.Duration `json:"message_cooldown_ns"`
	MaxHistorySize         int           `json:"max_history_size"`
	ProximityRadius        float64       `json:"proximity_radius"`
	AllowEmptyMessages     bool          `json:"allow_empty_messages"`
	ProfanityFilterEnabled bool          `json:"profanity_filter_enabled"`
}

// DefaultChatSettings returns the broker defaults.
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		MaxMessageLength:       256,
		MessageCooldown:        500 * time.Millisecond,
		MaxHistorySize:         100,
		ProximityRadius:        1000,
		AllowEmptyMessages:     false,
		ProfanityFilterEnabled: false,
	}
}
