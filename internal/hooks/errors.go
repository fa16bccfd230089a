package hooks

import "errors"

// Dispatch runtime errors. Call sites wrap them with the offending name or
// index; test with errors.Is.
var (
	// ErrNoSuchHook is returned when a hook name or index is not registered.
	ErrNoSuchHook = errors.New("no such hook")

	// ErrDuplicateHook is returned when registering a hook name twice.
	ErrDuplicateHook = errors.New("hook already registered")

	// ErrNoSuchLibrary is returned for a library index outside [0, libraries).
	ErrNoSuchLibrary = errors.New("no such library")

	// ErrNoSuchArgument is returned when reading an argument that was never set.
	ErrNoSuchArgument = errors.New("no such argument")

	// ErrNoSuchCalloutContext is returned when a context name is absent for the current library.
	ErrNoSuchCalloutContext = errors.New("no such callout context item")

	// ErrContextCreateFail is returned when a context_create callout returns a nonzero status.
	ErrContextCreateFail = errors.New("context_create callout failed")

	// ErrContextDestroyFail is returned when a context_destroy callout returns a nonzero status.
	ErrContextDestroyFail = errors.New("context_destroy callout failed")

	// ErrWrongType is returned by the typed accessors when the stored value has another type.
	ErrWrongType = errors.New("value has unexpected type")

	// ErrHandleClosed is returned when a closed callout handle is used.
	ErrHandleClosed = errors.New("callout handle is closed")

	// ErrReservedHook is returned when context_create or context_destroy is
	// dispatched directly; they run only through the handle lifecycle.
	ErrReservedHook = errors.New("hook is reserved for the handle lifecycle")

	// ErrForeignHandle is returned when a handle is dispatched on a manager
	// other than the one that created it.
	ErrForeignHandle = errors.New("callout handle belongs to another manager")

	// ErrNilCallout is returned when registering or deregistering a nil callout.
	ErrNilCallout = errors.New("callout is nil")
)
