package broker

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-broker/internal/models"
)

func historyContents(h *History) []string {
	var out []string
	for _, m := range h.Recent(0) {
		out = append(out, m.Content)
	}
	return out
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := NewHistory()

	for i := 0; i < 5; i++ {
		h.Append(models.Message{Content: strconv.Itoa(i)}, 3)
	}

	require.Equal(t, 3, h.Len())
	require.Equal(t, []string{"2", "3", "4"}, historyContents(h))
}

func TestHistoryRecent(t *testing.T) {
	h := NewHistory()
	for _, content := range []string{"a", "b", "c"} {
		h.Append(models.Message{Content: content}, 10)
	}

	require.Equal(t, []string{"a", "b", "c"}, historyContents(h))

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, "b", recent[0].Content)
	require.Equal(t, "c", recent[1].Content)

	// Count at or above size, zero, and negative all return everything.
	require.Len(t, h.Recent(3), 3)
	require.Len(t, h.Recent(99), 3)
	require.Len(t, h.Recent(-1), 3)
}

func TestHistoryTrimAndClear(t *testing.T) {
	h := NewHistory()
	for _, content := range []string{"a", "b", "c", "d"} {
		h.Append(models.Message{Content: content}, 10)
	}

	h.TrimTo(2)
	require.Equal(t, []string{"c", "d"}, historyContents(h))

	h.Clear()
	require.Zero(t, h.Len())
	require.Empty(t, h.Recent(0))
}
