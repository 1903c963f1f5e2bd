package models

import "time"

// Channel is the routing category of a message.
type Channel string

const (
	ChannelGlobal    Channel = "global"
	ChannelTeam      Channel = "team"
	ChannelDirect    Channel = "direct"
	ChannelSystem    Channel = "system"
	ChannelProximity Channel = "proximity"
	ChannelCustom    Channel = "custom"
)

// Valid reports whether the channel is one of the known routing categories.
func (c Channel) Valid() bool {
	switch c {
	case ChannelGlobal, ChannelTeam, ChannelDirect, ChannelSystem, ChannelProximity, ChannelCustom:
		return true
	}
	return false
}

// SystemSenderName is the display name attached to system-originated messages.
const SystemSenderName = "System"

// Message is a single chat message. It is immutable once accepted by the
// broker: the broker assigns Timestamp at accept time and never mutates an
// entry after it lands in history.
type Message struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id,omitempty"`
	SenderName   string    `json:"sender_name"`
	Content      string    `json:"content"`
	Channel      Channel   `json:"channel"`
	Timestamp    time.Time `json:"timestamp"`
	DirectTarget string    `json:"direct_target,omitempty"`
	Color        string    `json:"color,omitempty"`
}

// DisplayColor returns the explicit color override when set, otherwise the
// channel default.
func (m Message) DisplayColor() string {
	if m.Color != "" {
		return m.Color
	}
	switch m.Channel {
	case ChannelGlobal:
		return "#FFFFFF"
	case ChannelTeam:
		return "#00CCFF"
	case ChannelDirect:
		return "#FF80FF"
	case ChannelSystem:
		return "#FFFF00"
	case ChannelProximity:
		return "#80FF80"
	default:
		return "#FFFFFF"
	}
}

// FormattedTimestamp renders the accept time as HH:MM:SS for UI history lists.
func (m Message) FormattedTimestamp() string {
	return m.Timestamp.Format("15:04:05")
}

// MessageEvent is emitted over websocket connections.
type MessageEvent struct {
	Type              string   `json:"type"`
	Message           *Message `json:"message,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	RetryAfterSeconds float64  `json:"retry_after_seconds,omitempty"`
}
