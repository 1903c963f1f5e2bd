package ws

import (
	"context"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-broker/internal/broker"
	"chat-broker/internal/models"
	"chat-broker/internal/presence"
)

func newTestSessionHandler() (*SessionHandler, *broker.Broker, *Hub) {
	reg := broker.NewRegistry()
	hub := NewHub(zerolog.Nop())
	router := broker.NewRouter(reg, nil, nil, broker.TeamFallbackNone, zerolog.Nop())
	b := broker.NewBroker(reg, broker.NewHistory(), router, nil, nil, models.DefaultChatSettings(), zerolog.Nop())
	h := NewSessionHandler(hub, b, presence.NewStore(), 0, zerolog.Nop())
	return h, b, hub
}

func TestBindSnapshotsHistoryBeforeSession(t *testing.T) {
	h, b, hub := newTestSessionHandler()

	_, rej := b.BroadcastSystem(context.Background(), "before join", "")
	require.Nil(t, rej)

	replay := h.bind(nil, ConnInfo{ParticipantID: "p1"})

	// Accepted once the session is bound: delivered live, never replayed.
	_, rej = b.BroadcastSystem(context.Background(), "after join", "")
	require.Nil(t, rej)

	require.Len(t, replay, 1)
	assert.Equal(t, "before join", replay[0].Content)
	assert.True(t, b.Registry().IsRegistered("p1"))
	assert.Equal(t, 1, hub.Active())
}

func TestTeardownOfReplacedConnKeepsLiveSession(t *testing.T) {
	h, b, hub := newTestSessionHandler()

	h.bind(nil, ConnInfo{ParticipantID: "p1"})
	h.presence.Update("p1", models.Position{X: 1})

	// Reconnect replaces the bound conn and re-registers, as Handle would.
	live := new(websocket.Conn)
	hub.Add("p1", live, ConnInfo{ParticipantID: "p1"})
	b.Registry().Register("p1")

	// The old connection's read loop fails afterwards; its teardown must not
	// tear down the live session's state.
	h.teardown(nil, ConnInfo{ParticipantID: "p1"}, "read timeout")

	assert.True(t, b.Registry().IsRegistered("p1"))
	assert.Equal(t, 1, hub.Active())
	_, ok := h.presence.Position("p1")
	assert.True(t, ok)
}

func TestTeardownOfBoundConnReleasesState(t *testing.T) {
	h, b, hub := newTestSessionHandler()

	h.bind(nil, ConnInfo{ParticipantID: "p1"})
	h.presence.Update("p1", models.Position{X: 1})

	h.teardown(nil, ConnInfo{ParticipantID: "p1"}, "going away")

	assert.False(t, b.Registry().IsRegistered("p1"))
	assert.Zero(t, hub.Active())
	_, ok := h.presence.Position("p1")
	assert.False(t, ok)
}

func TestTeardownAfterWriteErrorEvictionStillUnregisters(t *testing.T) {
	// A write error in Hub.Send already evicted the hub session; the read
	// loop's teardown must still release registry and presence state.
	h, b, hub := newTestSessionHandler()

	h.bind(nil, ConnInfo{ParticipantID: "p1"})
	hub.Remove("p1", nil)

	h.teardown(nil, ConnInfo{ParticipantID: "p1"}, "write error")

	assert.False(t, b.Registry().IsRegistered("p1"))
}
