package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func noop(name string) *Callout {
	return NewCallout(name, func(*CalloutHandle) int { return 0 })
}

func TestCalloutListRemoveAllOccurrences(t *testing.T) {
	a, b := noop("a"), noop("b")
	l := calloutList{a, b, a, b, a}

	l, removed := l.remove(a)
	assert.True(t, removed)
	assert.Equal(t, calloutList{b, b}, l)

	l, removed = l.remove(a)
	assert.False(t, removed)
	assert.Len(t, l, 2)
}

func TestCalloutListRemoveKeepsCapturedHeader(t *testing.T) {
	a, b, c := noop("a"), noop("b"), noop("c")
	live := calloutList{a, b, c}
	captured := live

	live, _ = live.remove(b)
	live = live.add(noop("d"))

	assert.Equal(t, calloutList{a, b, c}, captured)
	assert.Equal(t, []string{"a", "c", "d"}, live.names())
}

func TestCalloutListAppendDoesNotExtendCapturedHeader(t *testing.T) {
	a := noop("a")
	live := make(calloutList, 0, 8).add(a)
	captured := live

	live = live.add(noop("b"))

	assert.Len(t, captured, 1)
	assert.Len(t, live, 2)
}

func TestCalloutStoreGrowsForLateHooks(t *testing.T) {
	s := newCalloutStore(2, 3)
	a := noop("a")

	assert.Nil(t, s.list(7, 1))
	assert.False(t, s.present(7))
	assert.False(t, s.remove(7, 1, a))
	assert.False(t, s.removeAll(7, 1))

	s.add(7, 1, a)
	assert.True(t, s.present(7))
	assert.Equal(t, calloutList{a}, s.list(7, 1))
	assert.Empty(t, s.list(7, 0))

	assert.True(t, s.removeAll(7, 1))
	assert.False(t, s.present(7))
}
