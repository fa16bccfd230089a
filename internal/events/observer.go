package events

import "github.com/mattjoyce/hookd/internal/hooks"

// DispatchEvent is the event type published for every dispatch.
const DispatchEvent = "dispatch"

// Observer adapts a Hub to hooks.DispatchObserver.
type Observer struct {
	hub           *Hub
	skipLifecycle bool
	skipEmpty     bool
}

// ObserverOption configures an Observer.
type ObserverOption func(*Observer)

// SkipLifecycle suppresses context_create and context_destroy dispatches.
func SkipLifecycle() ObserverOption {
	return func(o *Observer) { o.skipLifecycle = true }
}

// SkipEmpty suppresses dispatches that ran no callouts.
func SkipEmpty() ObserverOption {
	return func(o *Observer) { o.skipEmpty = true }
}

// NewObserver creates an observer publishing to hub.
func NewObserver(hub *Hub, opts ...ObserverOption) *Observer {
	o := &Observer{hub: hub}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ObserveDispatch implements hooks.DispatchObserver.
func (o *Observer) ObserveDispatch(rec hooks.DispatchRecord) {
	if o.skipLifecycle && (rec.HookIndex == hooks.ContextCreateIndex || rec.HookIndex == hooks.ContextDestroyIndex) {
		return
	}
	if o.skipEmpty && len(rec.Callouts) == 0 {
		return
	}
	o.hub.Publish(DispatchEvent, rec)
}
