package hooks

// LibraryHandle is the registration surface of a single library. Callouts
// reach it through CalloutHandle.LibraryHandle, which binds it to the library
// that owns the running callout, so a callout can only change its own
// library's registrations.
type LibraryHandle struct {
	manager *CalloutManager
	library int
}

// Index returns the library slot the handle is bound to.
func (l *LibraryHandle) Index() int {
	return l.library
}

// RegisterCallout appends c to this library's list for hookName.
func (l *LibraryHandle) RegisterCallout(hookName string, c *Callout) error {
	return l.manager.registerCallout(l.library, hookName, c)
}

// DeregisterCallout removes every occurrence of c from this library's list
// for hookName.
func (l *LibraryHandle) DeregisterCallout(hookName string, c *Callout) (bool, error) {
	return l.manager.deregisterCallout(l.library, hookName, c)
}

// DeregisterAllCallouts clears this library's list for hookName.
func (l *LibraryHandle) DeregisterAllCallouts(hookName string) (bool, error) {
	return l.manager.deregisterAllCallouts(l.library, hookName)
}
