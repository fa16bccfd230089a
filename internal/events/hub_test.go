package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookd/internal/hooks"
)

func TestPublishAndSubscribe(t *testing.T) {
	hub := NewHub(8)
	ch, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Subscribers())

	ev := hub.Publish("ping", map[string]int{"n": 1})
	assert.Equal(t, int64(1), ev.ID)

	select {
	case got := <-ch:
		assert.Equal(t, "ping", got.Type)
		assert.JSONEq(t, `{"n":1}`, string(got.Data))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers())
	_, open := <-ch
	assert.False(t, open)
}

func TestPublishNilAndInvalidPayload(t *testing.T) {
	hub := NewHub(4)
	assert.JSONEq(t, `{}`, string(hub.Publish("a", nil).Data))
	assert.JSONEq(t, `{}`, string(hub.Publish("b", func() {}).Data))
}

func TestSnapshotRing(t *testing.T) {
	hub := NewHub(3)
	for range 5 {
		hub.Publish("tick", nil)
	}

	ids := func(evs []Event) []int64 {
		out := make([]int64, len(evs))
		for i, ev := range evs {
			out[i] = ev.ID
		}
		return out
	}
	assert.Equal(t, []int64{3, 4, 5}, ids(hub.SnapshotSince(0)))
	assert.Equal(t, []int64{5}, ids(hub.SnapshotSince(4)))
	assert.Empty(t, hub.SnapshotSince(5))
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(4)
	hub.subBuffer = 1
	_, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for range 10 {
			hub.Publish("x", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestObserverFilters(t *testing.T) {
	rec := func(index int, callouts int) hooks.DispatchRecord {
		r := hooks.DispatchRecord{Hook: "h", HookIndex: index}
		for range callouts {
			r.Callouts = append(r.Callouts, hooks.CalloutRecord{Callout: "c"})
		}
		return r
	}

	hub := NewHub(16)
	all := NewObserver(hub)
	all.ObserveDispatch(rec(hooks.ContextCreateIndex, 0))
	all.ObserveDispatch(rec(2, 0))
	require.Len(t, hub.SnapshotSince(0), 2)

	hub = NewHub(16)
	filtered := NewObserver(hub, SkipLifecycle(), SkipEmpty())
	filtered.ObserveDispatch(rec(hooks.ContextCreateIndex, 1))
	filtered.ObserveDispatch(rec(hooks.ContextDestroyIndex, 1))
	filtered.ObserveDispatch(rec(2, 0))
	filtered.ObserveDispatch(rec(2, 1))

	evs := hub.SnapshotSince(0)
	require.Len(t, evs, 1)
	assert.Equal(t, DispatchEvent, evs[0].Type)

	var got hooks.DispatchRecord
	require.NoError(t, json.Unmarshal(evs[0].Data, &got))
	assert.Equal(t, 2, got.HookIndex)
	assert.Len(t, got.Callouts, 1)
}
