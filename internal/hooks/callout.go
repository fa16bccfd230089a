package hooks

// CalloutFunc is the body of a callout. A zero return means success; any
// other value is advisory and reported back to the dispatcher's caller.
type CalloutFunc func(h *CalloutHandle) int

// Callout is one handler that libraries attach to hooks. Callouts are
// compared by pointer, so the same *Callout must be passed to deregister
// what was registered. The name only appears in logs and introspection.
type Callout struct {
	name string
	fn   CalloutFunc
}

// NewCallout wraps fn as a registrable callout.
func NewCallout(name string, fn CalloutFunc) *Callout {
	return &Callout{name: name, fn: fn}
}

// Name returns the diagnostic name given at construction.
func (c *Callout) Name() string {
	return c.name
}
