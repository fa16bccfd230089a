package hooks

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/hookd/internal/log"
)

// CalloutRecord describes one callout invocation within a dispatch.
type CalloutRecord struct {
	Library  int           `json:"library"`
	Callout  string        `json:"callout"`
	Status   int           `json:"status"`
	Duration time.Duration `json:"duration"`
}

// DispatchRecord describes one CallCallouts pass.
type DispatchRecord struct {
	Hook      string          `json:"hook"`
	HookIndex int             `json:"hook_index"`
	HandleID  string          `json:"handle_id"`
	Started   time.Time       `json:"started"`
	Duration  time.Duration   `json:"duration"`
	Status    int             `json:"status"`
	Callouts  []CalloutRecord `json:"callouts"`
}

// DispatchObserver receives a record after every dispatch. Observers run
// synchronously on the dispatching goroutine and must not block.
type DispatchObserver interface {
	ObserveDispatch(rec DispatchRecord)
}

// Option configures a CalloutManager.
type Option func(*CalloutManager)

// WithLogger overrides the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *CalloutManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver adds a dispatch observer.
func WithObserver(o DispatchObserver) Option {
	return func(m *CalloutManager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// CalloutManager owns every library's callout lists and runs dispatches.
//
// The current library is set explicitly with SetLibraryIndex during library
// load and implicitly, for the duration of each callout, during dispatch.
type CalloutManager struct {
	hooks          *ServerHooks
	store          *calloutStore
	numLibraries   int
	currentLibrary int
	currentHook    int
	handles        []*LibraryHandle
	unbound        *LibraryHandle
	logger         *slog.Logger
	observers      []DispatchObserver
	now            func() time.Time
}

// NewCalloutManager creates a manager for numLibraries library slots.
func NewCalloutManager(hooks *ServerHooks, numLibraries int, opts ...Option) (*CalloutManager, error) {
	if hooks == nil {
		return nil, fmt.Errorf("server hooks registry is nil")
	}
	if numLibraries < 0 {
		return nil, fmt.Errorf("%w: negative library count %d", ErrNoSuchLibrary, numLibraries)
	}

	m := &CalloutManager{
		hooks:          hooks,
		store:          newCalloutStore(hooks.Count(), numLibraries),
		numLibraries:   numLibraries,
		currentLibrary: -1,
		currentHook:    -1,
		logger:         log.WithComponent("hooks"),
		now:            time.Now,
	}
	m.handles = make([]*LibraryHandle, numLibraries)
	for i := range m.handles {
		m.handles[i] = &LibraryHandle{manager: m, library: i}
	}
	m.unbound = &LibraryHandle{manager: m, library: -1}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Hooks returns the hook registry the manager dispatches against.
func (m *CalloutManager) Hooks() *ServerHooks {
	return m.hooks
}

// NumLibraries returns the fixed number of library slots.
func (m *CalloutManager) NumLibraries() int {
	return m.numLibraries
}

// SetLibraryIndex selects the library that subsequent RegisterCallout and
// DeregisterCallout calls act for.
func (m *CalloutManager) SetLibraryIndex(index int) error {
	if err := m.checkLibrary(index); err != nil {
		return err
	}
	m.currentLibrary = index
	return nil
}

// LibraryIndex returns the current library, or -1 if none is selected.
func (m *CalloutManager) LibraryIndex() int {
	return m.currentLibrary
}

// CurrentHook returns the index of the hook being dispatched, or -1 outside
// any dispatch.
func (m *CalloutManager) CurrentHook() int {
	return m.currentHook
}

// LibraryHandle returns the handle bound to the current library. When no
// library is selected the returned handle rejects every call with
// ErrNoSuchLibrary.
func (m *CalloutManager) LibraryHandle() *LibraryHandle {
	if m.currentLibrary < 0 || m.currentLibrary >= m.numLibraries {
		return m.unbound
	}
	return m.handles[m.currentLibrary]
}

// RegisterCallout appends c to the current library's list for hookName.
func (m *CalloutManager) RegisterCallout(hookName string, c *Callout) error {
	return m.registerCallout(m.currentLibrary, hookName, c)
}

// DeregisterCallout removes every occurrence of c from the current library's
// list for hookName and reports whether anything was removed.
func (m *CalloutManager) DeregisterCallout(hookName string, c *Callout) (bool, error) {
	return m.deregisterCallout(m.currentLibrary, hookName, c)
}

// DeregisterAllCallouts clears the current library's list for hookName.
func (m *CalloutManager) DeregisterAllCallouts(hookName string) (bool, error) {
	return m.deregisterAllCallouts(m.currentLibrary, hookName)
}

func (m *CalloutManager) registerCallout(library int, hookName string, c *Callout) error {
	if c == nil {
		return ErrNilCallout
	}
	if err := m.checkLibrary(library); err != nil {
		return err
	}
	hook, err := m.hooks.Index(hookName)
	if err != nil {
		return err
	}

	m.store.add(hook, library, c)
	m.logger.Debug("callout registered", "hook", hookName, "library", library, "callout", c.Name())
	return nil
}

func (m *CalloutManager) deregisterCallout(library int, hookName string, c *Callout) (bool, error) {
	if c == nil {
		return false, ErrNilCallout
	}
	if err := m.checkLibrary(library); err != nil {
		return false, err
	}
	hook, err := m.hooks.Index(hookName)
	if err != nil {
		return false, err
	}

	removed := m.store.remove(hook, library, c)
	if removed {
		m.logger.Debug("callout deregistered", "hook", hookName, "library", library, "callout", c.Name())
	}
	return removed, nil
}

func (m *CalloutManager) deregisterAllCallouts(library int, hookName string) (bool, error) {
	if err := m.checkLibrary(library); err != nil {
		return false, err
	}
	hook, err := m.hooks.Index(hookName)
	if err != nil {
		return false, err
	}

	removed := m.store.removeAll(hook, library)
	if removed {
		m.logger.Debug("all callouts deregistered", "hook", hookName, "library", library)
	}
	return removed, nil
}

// CalloutsPresent reports whether any library has a callout on the hook.
func (m *CalloutManager) CalloutsPresent(hookIndex int) (bool, error) {
	if _, err := m.hooks.Name(hookIndex); err != nil {
		return false, err
	}
	return m.store.present(hookIndex), nil
}

// Callouts returns the callout names attached to a hook, one slice per library.
func (m *CalloutManager) Callouts(hookIndex int) ([][]string, error) {
	if _, err := m.hooks.Name(hookIndex); err != nil {
		return nil, err
	}
	out := make([][]string, m.numLibraries)
	for library := range out {
		out[library] = m.store.list(hookIndex, library).names()
	}
	return out, nil
}

// CallCallouts runs every callout attached to the hook, library by library
// and in registration order within a library. It returns the first nonzero
// status any callout produced; statuses never stop the dispatch. The
// lifecycle hooks cannot be called this way, and the handle must have been
// created by m.
func (m *CalloutManager) CallCallouts(hookIndex int, handle *CalloutHandle) (int, error) {
	if handle == nil {
		return 0, fmt.Errorf("callout handle is nil")
	}
	if handle.manager != m {
		return 0, ErrForeignHandle
	}
	if handle.closed {
		return 0, ErrHandleClosed
	}
	hookName, err := m.hooks.Name(hookIndex)
	if err != nil {
		return 0, err
	}
	if hookIndex == ContextCreateIndex || hookIndex == ContextDestroyIndex {
		return 0, fmt.Errorf("%w: %s", ErrReservedHook, hookName)
	}
	return m.dispatch(hookIndex, hookName, handle), nil
}

// CallCalloutsByName resolves hookName and calls CallCallouts.
func (m *CalloutManager) CallCalloutsByName(hookName string, handle *CalloutHandle) (int, error) {
	hookIndex, err := m.hooks.Index(hookName)
	if err != nil {
		return 0, err
	}
	return m.CallCallouts(hookIndex, handle)
}

// dispatch runs the hook. The current library and hook are restored on
// return so that nested dispatches and dispatches issued during a library's
// load phase leave the caller's registration context intact.
func (m *CalloutManager) dispatch(hookIndex int, hookName string, handle *CalloutHandle) int {
	savedLibrary, savedHook := m.currentLibrary, m.currentHook
	defer func() {
		m.currentLibrary, m.currentHook = savedLibrary, savedHook
	}()
	m.currentHook = hookIndex

	var rec *DispatchRecord
	if len(m.observers) > 0 {
		rec = &DispatchRecord{
			Hook:      hookName,
			HookIndex: hookIndex,
			HandleID:  handle.ID(),
			Started:   m.now(),
		}
	}

	status := 0
	for library := 0; library < m.numLibraries; library++ {
		// The header taken here is this library's callout set for this pass.
		callouts := m.store.list(hookIndex, library)
		if len(callouts) == 0 {
			continue
		}
		m.currentLibrary = library

		for _, c := range callouts {
			var started time.Time
			if rec != nil {
				started = m.now()
			}

			s := m.invoke(c, library, hookName, handle)
			if s != 0 && status == 0 {
				status = s
			}

			if rec != nil {
				rec.Callouts = append(rec.Callouts, CalloutRecord{
					Library:  library,
					Callout:  c.Name(),
					Status:   s,
					Duration: m.now().Sub(started),
				})
			}
		}
	}

	if rec != nil {
		rec.Duration = m.now().Sub(rec.Started)
		rec.Status = status
		for _, o := range m.observers {
			o.ObserveDispatch(*rec)
		}
	}
	return status
}

// invoke runs one callout. A panic is logged and reported as status 1.
func (m *CalloutManager) invoke(c *Callout, library int, hookName string, handle *CalloutHandle) (status int) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("callout panicked",
				"hook", hookName,
				"library", library,
				"callout", c.Name(),
				"handle_id", handle.ID(),
				"panic", fmt.Sprint(r),
			)
			status = 1
		}
	}()

	status = c.fn(handle)
	if status != 0 {
		m.logger.Debug("callout returned nonzero status",
			"hook", hookName,
			"library", library,
			"callout", c.Name(),
			"handle_id", handle.ID(),
			"status", status,
		)
	}
	return status
}

func (m *CalloutManager) checkLibrary(index int) error {
	if index < 0 || index >= m.numLibraries {
		return fmt.Errorf("%w: index %d (libraries: %d)", ErrNoSuchLibrary, index, m.numLibraries)
	}
	return nil
}
