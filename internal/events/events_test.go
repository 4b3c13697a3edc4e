package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscribers(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish("hello")
	require.Equal(t, "hello", <-a)
	require.Equal(t, "hello", <-b)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish("evt") // must never block
	}
	require.Len(t, ch, subscriberBuffer)
}

func TestMakeEvent(t *testing.T) {
	raw := MakeEvent("req-1", TypeListingAdded, map[string]any{"id": "j1"})

	var e Event
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	require.Equal(t, TypeListingAdded, e.Type)
	require.Equal(t, 1, e.Version)
	require.Equal(t, "req-1", e.RequestID)
	require.JSONEq(t, `{"id":"j1"}`, string(e.Data))
	require.False(t, e.At.IsZero())
}
