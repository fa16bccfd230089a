// Package library loads compiled-in hooks libraries into a CalloutManager.
//
// Each configured library occupies one slot of the manager; its position in
// the configuration is its index and therefore its turn in every dispatch.
package library

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/log"
)

// ErrUnknownLibrary is returned for a library name the catalog does not hold.
var ErrUnknownLibrary = errors.New("unknown library")

// Module is a hooks library. Load registers callouts through the handle,
// which is bound to the module's slot for the module's whole lifetime.
type Module interface {
	Name() string
	Version() string
	Load(h *hooks.LibraryHandle, params Parameters) error
	Unload() error
}

// Factory creates a fresh module instance. A library listed twice in the
// configuration gets two instances.
type Factory func() Module

// Spec selects a library for one slot.
type Spec struct {
	Name       string
	Parameters Parameters
}

// Catalog holds the available libraries indexed by name.
type Catalog struct {
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Add registers a library factory.
func (c *Catalog) Add(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("library name is empty")
	}
	if f == nil {
		return fmt.Errorf("library %q has no factory", name)
	}
	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("library %q already registered", name)
	}
	c.factories[name] = f
	return nil
}

// Get retrieves a factory by name.
func (c *Catalog) Get(name string) (Factory, bool) {
	f, ok := c.factories[name]
	return f, ok
}

// Names returns the registered library names in sorted order.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.factories))
}

// Check reports the first spec naming a library the catalog does not hold.
func (c *Catalog) Check(specs []Spec) error {
	for i, spec := range specs {
		if _, ok := c.factories[spec.Name]; !ok {
			return fmt.Errorf("%w: %q at index %d (available: %v)", ErrUnknownLibrary, spec.Name, i, c.Names())
		}
	}
	return nil
}

// Loaded is one module bound to its slot.
type Loaded struct {
	Index  int
	Module Module
}

// Set is the result of LoadAll.
type Set struct {
	manager *hooks.CalloutManager
	loaded  []Loaded
	logger  *slog.Logger
}

// LoadAll instantiates and loads specs[i] into slot i, in order. The
// manager must have exactly len(specs) slots. If any Load fails, the
// libraries already loaded are unloaded again and the error is returned.
//
// The caller must hold exclusive access to the manager.
func (c *Catalog) LoadAll(manager *hooks.CalloutManager, specs []Spec) (*Set, error) {
	if manager.NumLibraries() != len(specs) {
		return nil, fmt.Errorf("manager has %d library slots, %d libraries configured", manager.NumLibraries(), len(specs))
	}
	if err := c.Check(specs); err != nil {
		return nil, err
	}

	set := &Set{manager: manager, logger: log.WithComponent("library")}
	for i, spec := range specs {
		mod := c.factories[spec.Name]()
		if err := manager.SetLibraryIndex(i); err != nil {
			return nil, errors.Join(err, set.UnloadAll())
		}
		if err := mod.Load(manager.LibraryHandle(), spec.Parameters); err != nil {
			// Drop whatever the failed module registered before giving up.
			set.loaded = append(set.loaded, Loaded{Index: i, Module: nopUnload{mod}})
			return nil, errors.Join(fmt.Errorf("load library %q at index %d: %w", spec.Name, i, err), set.UnloadAll())
		}
		set.loaded = append(set.loaded, Loaded{Index: i, Module: mod})
		set.logger.Info("library loaded", "library", mod.Name(), "index", i, "version", mod.Version())
	}
	return set, nil
}

// Loaded returns the loaded modules in slot order.
func (s *Set) Loaded() []Loaded {
	return slices.Clone(s.loaded)
}

// UnloadAll unloads the modules in reverse order and removes every callout
// each one registered. It is safe to call more than once.
//
// The caller must hold exclusive access to the manager.
func (s *Set) UnloadAll() error {
	var errs []error
	for i := len(s.loaded) - 1; i >= 0; i-- {
		l := s.loaded[i]
		if err := l.Module.Unload(); err != nil {
			errs = append(errs, fmt.Errorf("unload library %q at index %d: %w", l.Module.Name(), l.Index, err))
		}
		if err := s.clearCallouts(l.Index); err != nil {
			errs = append(errs, err)
		}
		s.logger.Info("library unloaded", "library", l.Module.Name(), "index", l.Index)
	}
	s.loaded = nil
	return errors.Join(errs...)
}

func (s *Set) clearCallouts(index int) error {
	if err := s.manager.SetLibraryIndex(index); err != nil {
		return err
	}
	for _, name := range s.manager.Hooks().Names() {
		if _, err := s.manager.DeregisterAllCallouts(name); err != nil {
			return err
		}
	}
	return nil
}

// nopUnload wraps a module whose Load failed so that UnloadAll clears its
// callouts without calling its Unload.
type nopUnload struct {
	Module
}

func (nopUnload) Unload() error { return nil }
