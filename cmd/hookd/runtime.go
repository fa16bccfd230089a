package main

import (
	"fmt"

	"github.com/mattjoyce/hookd/internal/config"
	"github.com/mattjoyce/hookd/internal/dnspipeline"
	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/host"
	"github.com/mattjoyce/hookd/internal/library"
	"github.com/mattjoyce/hookd/internal/library/builtin"
	"github.com/mattjoyce/hookd/internal/log"
)

// loadedHost is a host with its configured libraries loaded.
type loadedHost struct {
	host      *host.Host
	libraries *library.Set
}

func librarySpecs(cfg *config.Config) []library.Spec {
	specs := make([]library.Spec, 0, len(cfg.Libraries))
	for _, l := range cfg.Libraries {
		specs = append(specs, library.Spec{Name: l.Library, Parameters: library.Parameters(l.Parameters)})
	}
	return specs
}

func libraryNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Libraries))
	for _, l := range cfg.Libraries {
		names = append(names, l.Library)
	}
	return names
}

func newCatalog() (*library.Catalog, error) {
	catalog := library.NewCatalog()
	if err := builtin.Register(catalog); err != nil {
		return nil, fmt.Errorf("register builtin libraries: %w", err)
	}
	return catalog, nil
}

func newRegistry(cfg *config.Config) (*hooks.ServerHooks, error) {
	registry := hooks.NewServerHooks()
	if err := dnspipeline.RegisterHooks(registry); err != nil {
		return nil, err
	}
	for _, name := range cfg.Hooks {
		if _, err := registry.RegisterHook(name); err != nil {
			return nil, fmt.Errorf("register hook %q: %w", name, err)
		}
	}
	return registry, nil
}

// buildRuntime registers every hook, creates one library slot per
// configured library and loads the libraries in configuration order.
func buildRuntime(cfg *config.Config, opts ...hooks.Option) (*loadedHost, error) {
	registry, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := newCatalog()
	if err != nil {
		return nil, err
	}
	specs := librarySpecs(cfg)
	if err := catalog.Check(specs); err != nil {
		return nil, err
	}

	opts = append([]hooks.Option{hooks.WithLogger(log.WithComponent("hooks"))}, opts...)
	manager, err := hooks.NewCalloutManager(registry, len(specs), opts...)
	if err != nil {
		return nil, err
	}
	h, err := host.New(manager)
	if err != nil {
		return nil, err
	}

	var set *library.Set
	err = h.Do(func(m *hooks.CalloutManager) error {
		var err error
		set, err = catalog.LoadAll(m, specs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &loadedHost{host: h, libraries: set}, nil
}

func (r *loadedHost) close() error {
	return r.host.Do(func(*hooks.CalloutManager) error {
		return r.libraries.UnloadAll()
	})
}
