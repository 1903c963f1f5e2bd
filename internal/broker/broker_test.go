package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-broker/internal/models"
)

type captureSink struct {
	mu         sync.Mutex
	deliveries []delivery
	failFor    map[string]error
}

type delivery struct {
	recipient string
	msg       models.Message
}

func (s *captureSink) Deliver(id string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[id]; ok {
		return err
	}
	s.deliveries = append(s.deliveries, delivery{recipient: id, msg: msg})
	return nil
}

func (s *captureSink) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		out = append(out, d.recipient)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestBroker(t *testing.T, settings models.ChatSettings, ids ...string) (*Broker, *captureSink, *fakeClock) {
	t.Helper()
	reg := registryWith(ids...)
	router := NewRouter(reg, nil, nil, TeamFallbackNone, zerolog.Nop())
	sink := &captureSink{}
	clock := &fakeClock{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	b := NewBroker(reg, NewHistory(), router, sink, nil, settings, zerolog.Nop())
	b.now = clock.Now
	return b, sink, clock
}

func TestSubmitAcceptsAndBroadcastsGlobal(t *testing.T) {
	b, sink, clock := newTestBroker(t, models.DefaultChatSettings(), "a", "b")

	msg, rej := b.Submit(context.Background(), models.Message{
		SenderID:   "a",
		SenderName: "Alice",
		Content:    "hello",
		Channel:    models.ChannelGlobal,
	})
	require.Nil(t, rej)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, clock.Now(), msg.Timestamp)
	assert.Equal(t, "#FFFFFF", msg.Color)
	assert.Equal(t, []string{"a", "b"}, sink.recipients())
	require.Len(t, b.Recent(0), 1)
}

func TestSubmitOverridesClientTimestamp(t *testing.T) {
	b, _, clock := newTestBroker(t, models.DefaultChatSettings(), "a")

	msg, rej := b.Submit(context.Background(), models.Message{
		SenderID:  "a",
		Content:   "hello",
		Channel:   models.ChannelGlobal,
		Timestamp: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Nil(t, rej)
	assert.Equal(t, clock.Now(), msg.Timestamp)
}

func TestSubmitTimestampsAreMonotonic(t *testing.T) {
	b, _, clock := newTestBroker(t, models.DefaultChatSettings(), "a", "b")

	first, rej := b.Submit(context.Background(), models.Message{SenderID: "a", Content: "one", Channel: models.ChannelGlobal})
	require.Nil(t, rej)

	// Step the wall clock backwards; the accept sequence must not regress.
	clock.Set(clock.Now().Add(-time.Hour))
	second, rej := b.Submit(context.Background(), models.Message{SenderID: "b", Content: "two", Channel: models.ChannelGlobal})
	require.Nil(t, rej)

	assert.False(t, second.Timestamp.Before(first.Timestamp))
}

func TestSubmitCooldownScenario(t *testing.T) {
	settings := models.DefaultChatSettings()
	settings.MaxMessageLength = 10
	settings.MessageCooldown = time.Second
	b, _, clock := newTestBroker(t, settings, "a")

	_, rej := b.Submit(context.Background(), models.Message{SenderID: "a", Content: "hello", Channel: models.ChannelGlobal})
	require.Nil(t, rej)

	// Immediate retry is still inside the cooldown window.
	_, rej = b.Submit(context.Background(), models.Message{SenderID: "a", Content: "world", Channel: models.ChannelGlobal})
	require.NotNil(t, rej)
	assert.Equal(t, "please wait 1.0 seconds before sending another message", rej.Reason)
	assert.Equal(t, time.Second, rej.RetryAfter)

	clock.Advance(1100 * time.Millisecond)

	// Past the window but over the length limit.
	_, rej = b.Submit(context.Background(), models.Message{SenderID: "a", Content: "worldwide!!", Channel: models.ChannelGlobal})
	require.NotNil(t, rej)
	assert.Equal(t, "message too long (max 10 characters)", rej.Reason)

	// A rejected message must not consume the cooldown.
	_, rej = b.Submit(context.Background(), models.Message{SenderID: "a", Content: "world", Channel: models.ChannelGlobal})
	require.Nil(t, rej)

	require.Len(t, b.Recent(0), 2)
}

func TestSubmitRejectionLeavesNoTrace(t *testing.T) {
	b, sink, _ := newTestBroker(t, models.DefaultChatSettings(), "a")

	_, rej := b.Submit(context.Background(), models.Message{SenderID: "a", Content: "", Channel: models.ChannelGlobal})
	require.NotNil(t, rej)
	assert.Equal(t, "message content is empty", rej.Reason)
	assert.Empty(t, b.Recent(0))
	assert.Empty(t, sink.recipients())
}

func TestSubmitDepartedSenderStillAccepted(t *testing.T) {
	// A sender that unregistered mid-flight is simply absent: the message is
	// accepted and delivered to the remaining participants, and no dangling
	// rate-limit entry is created.
	b, sink, _ := newTestBroker(t, models.DefaultChatSettings(), "a")

	_, rej := b.Submit(context.Background(), models.Message{SenderID: "ghost", Content: "hi", Channel: models.ChannelGlobal})
	require.Nil(t, rej)
	assert.Equal(t, []string{"a"}, sink.recipients())
	_, tracked := b.Registry().LastMessageTime("ghost")
	assert.False(t, tracked)
}

func TestSubmitDirectToUnregisteredTargetStaysInHistory(t *testing.T) {
	b, sink, _ := newTestBroker(t, models.DefaultChatSettings(), "a")

	msg, rej := b.Submit(context.Background(), models.Message{
		SenderID:     "a",
		Content:      "you there?",
		Channel:      models.ChannelDirect,
		DirectTarget: "b",
	})
	require.Nil(t, rej)

	// The sender still sees their own outgoing message, and it is retained.
	assert.Equal(t, []string{"a"}, sink.recipients())
	history := b.Recent(0)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestSubmitSinkFailureDoesNotFailSubmission(t *testing.T) {
	b, sink, _ := newTestBroker(t, models.DefaultChatSettings(), "a", "b", "c")
	sink.failFor = map[string]error{"b": errors.New("connection reset")}

	_, rej := b.Submit(context.Background(), models.Message{SenderID: "a", Content: "hi", Channel: models.ChannelGlobal})
	require.Nil(t, rej)

	assert.Equal(t, []string{"a", "c"}, sink.recipients())
	require.Len(t, b.Recent(0), 1)
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	settings := models.DefaultChatSettings()
	settings.MaxHistorySize = 2
	b, _, _ := newTestBroker(t, settings)

	for _, content := range []string{"a", "b", "c"} {
		_, rej := b.BroadcastSystem(context.Background(), content, "")
		require.Nil(t, rej)
	}

	recent := b.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Content)
	assert.Equal(t, "c", recent[1].Content)
}

func TestBroadcastSystemSkipsSenderChecks(t *testing.T) {
	settings := models.DefaultChatSettings()
	settings.MessageCooldown = time.Minute
	b, sink, _ := newTestBroker(t, settings, "a", "b")

	first, rej := b.BroadcastSystem(context.Background(), "server restarting", "")
	require.Nil(t, rej)
	second, rej := b.BroadcastSystem(context.Background(), "in 5 minutes", "#FF0000")
	require.Nil(t, rej)

	assert.Equal(t, models.SystemSenderName, first.SenderName)
	assert.Equal(t, "#FFFF00", first.Color)
	assert.Equal(t, "#FF0000", second.Color)
	assert.Equal(t, []string{"a", "b", "a", "b"}, sink.recipients())
}

func TestBroadcastSystemEnforcesLength(t *testing.T) {
	settings := models.DefaultChatSettings()
	settings.MaxMessageLength = 5
	b, _, _ := newTestBroker(t, settings)

	_, rej := b.BroadcastSystem(context.Background(), "toolong", "")
	require.NotNil(t, rej)
	assert.Equal(t, "message too long (max 5 characters)", rej.Reason)
	assert.Empty(t, b.Recent(0))
}

func TestSetSettingsTrimsHistory(t *testing.T) {
	b, _, _ := newTestBroker(t, models.DefaultChatSettings())

	for _, content := range []string{"one", "two", "three"} {
		_, rej := b.BroadcastSystem(context.Background(), content, "")
		require.Nil(t, rej)
	}

	settings := b.Settings()
	settings.MaxHistorySize = 1
	b.SetSettings(settings)

	recent := b.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, "three", recent[0].Content)
	assert.Equal(t, 1, b.Settings().MaxHistorySize)
}

func TestClearHistory(t *testing.T) {
	b, _, _ := newTestBroker(t, models.DefaultChatSettings())

	_, rej := b.BroadcastSystem(context.Background(), "hello", "")
	require.Nil(t, rej)
	b.ClearHistory()
	assert.Empty(t, b.Recent(0))
}
