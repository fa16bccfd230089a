package hooks

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// CalloutHandle carries the state of one unit of work through a series of
// dispatches: arguments shared by all libraries, and one private context
// per library.
//
// A handle is created with NewCalloutHandle, which runs the context_create
// hook, and must be released with Close, which runs context_destroy.
type CalloutHandle struct {
	id        string
	manager   *CalloutManager
	arguments map[string]any
	contexts  []map[string]any
	closed    bool
}

// NewCalloutHandle creates a handle and runs the context_create callouts on
// it. If any of them returns a nonzero status the handle is released and
// ErrContextCreateFail is returned.
func NewCalloutHandle(manager *CalloutManager) (*CalloutHandle, error) {
	if manager == nil {
		return nil, fmt.Errorf("callout manager is nil")
	}

	h := &CalloutHandle{
		id:        uuid.NewString(),
		manager:   manager,
		arguments: make(map[string]any),
		contexts:  make([]map[string]any, manager.NumLibraries()),
	}

	if status := manager.dispatch(ContextCreateIndex, HookContextCreate, h); status != 0 {
		h.release()
		return nil, fmt.Errorf("%w: status %d", ErrContextCreateFail, status)
	}
	return h, nil
}

// Close runs the context_destroy callouts and releases the handle's
// arguments and contexts. The storage is released even when a callout
// fails; the failure is returned as ErrContextDestroyFail.
func (h *CalloutHandle) Close() error {
	if h.closed {
		return ErrHandleClosed
	}

	status := h.manager.dispatch(ContextDestroyIndex, HookContextDestroy, h)
	h.release()
	if status != 0 {
		return fmt.Errorf("%w: status %d", ErrContextDestroyFail, status)
	}
	return nil
}

func (h *CalloutHandle) release() {
	h.closed = true
	h.arguments = nil
	h.contexts = nil
}

// ID returns the handle's unique identifier.
func (h *CalloutHandle) ID() string {
	return h.id
}

// Manager returns the manager the handle was created with.
func (h *CalloutHandle) Manager() *CalloutManager {
	return h.manager
}

// LibraryHandle returns the registration handle of the library whose
// callout is currently running.
func (h *CalloutHandle) LibraryHandle() *LibraryHandle {
	return h.manager.LibraryHandle()
}

// SetArgument stores a value visible to every library. It does nothing
// once the handle is closed.
func (h *CalloutHandle) SetArgument(name string, value any) {
	if h.closed {
		return
	}
	h.arguments[name] = value
}

// Argument returns a shared argument.
func (h *CalloutHandle) Argument(name string) (any, error) {
	if h.closed {
		return nil, ErrHandleClosed
	}
	value, ok := h.arguments[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchArgument, name)
	}
	return value, nil
}

// DeleteArgument removes a shared argument; absent names are ignored.
func (h *CalloutHandle) DeleteArgument(name string) {
	delete(h.arguments, name)
}

// DeleteAllArguments removes every shared argument.
func (h *CalloutHandle) DeleteAllArguments() {
	clear(h.arguments)
}

// ArgumentNames returns the shared argument names in sorted order.
func (h *CalloutHandle) ArgumentNames() []string {
	return slices.Sorted(maps.Keys(h.arguments))
}

// SetContext stores a value in the current library's context.
func (h *CalloutHandle) SetContext(name string, value any) error {
	ctx, err := h.libraryContext(true)
	if err != nil {
		return err
	}
	ctx[name] = value
	return nil
}

// Context returns a value from the current library's context.
func (h *CalloutHandle) Context(name string) (any, error) {
	ctx, err := h.libraryContext(false)
	if err != nil {
		return nil, err
	}
	value, ok := ctx[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchCalloutContext, name)
	}
	return value, nil
}

// DeleteContext removes a value from the current library's context.
func (h *CalloutHandle) DeleteContext(name string) error {
	ctx, err := h.libraryContext(false)
	if err != nil {
		return err
	}
	if _, ok := ctx[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchCalloutContext, name)
	}
	delete(ctx, name)
	return nil
}

// DeleteAllContext empties the current library's context.
func (h *CalloutHandle) DeleteAllContext() error {
	ctx, err := h.libraryContext(false)
	if err != nil {
		return err
	}
	clear(ctx)
	return nil
}

// ContextNames returns the current library's context names in sorted order.
// It returns nil, like an empty context, when there is no current library
// or the handle is closed; use Context to tell those cases apart.
func (h *CalloutHandle) ContextNames() []string {
	ctx, err := h.libraryContext(false)
	if err != nil {
		return nil
	}
	return slices.Sorted(maps.Keys(ctx))
}

// libraryContext returns the context map of the manager's current library.
// A nil map is returned, without error, for a library that has stored
// nothing yet unless create is set.
func (h *CalloutHandle) libraryContext(create bool) (map[string]any, error) {
	if h.closed {
		return nil, ErrHandleClosed
	}
	library := h.manager.LibraryIndex()
	if library < 0 || library >= len(h.contexts) {
		return nil, fmt.Errorf("%w: index %d", ErrNoSuchLibrary, library)
	}
	ctx := h.contexts[library]
	if ctx == nil && create {
		ctx = make(map[string]any)
		h.contexts[library] = ctx
	}
	return ctx, nil
}

// ArgumentAs returns a shared argument asserted to type T.
func ArgumentAs[T any](h *CalloutHandle, name string) (T, error) {
	var zero T
	value, err := h.Argument(name)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: argument %q is %T", ErrWrongType, name, value)
	}
	return typed, nil
}

// ContextAs returns a current-library context value asserted to type T.
func ContextAs[T any](h *CalloutHandle, name string) (T, error) {
	var zero T
	value, err := h.Context(name)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: context %q is %T", ErrWrongType, name, value)
	}
	return typed, nil
}
