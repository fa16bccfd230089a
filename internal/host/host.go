// Package host serializes access to the dispatch engine. The engine has no
// internal locking; every goroutine that creates handles, dispatches or
// inspects callout lists goes through a Host.
package host

import (
	"fmt"
	"sync"

	"github.com/mattjoyce/hookd/internal/hooks"
)

// HookInfo describes one hook and the callouts attached to it.
type HookInfo struct {
	Index    int        `json:"index"`
	Name     string     `json:"name"`
	Callouts [][]string `json:"callouts"`
}

// Host owns a CalloutManager and guards it with a mutex.
type Host struct {
	mu      sync.Mutex
	manager *hooks.CalloutManager
}

// New wraps a manager.
func New(manager *hooks.CalloutManager) (*Host, error) {
	if manager == nil {
		return nil, fmt.Errorf("callout manager is nil")
	}
	return &Host{manager: manager}, nil
}

// Do runs fn with exclusive access to the manager. fn must not call Do.
func (h *Host) Do(fn func(m *hooks.CalloutManager) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.manager)
}

// HookTable returns every hook, in index order, with its callouts grouped
// by library.
func (h *Host) HookTable() ([]HookInfo, error) {
	var table []HookInfo
	err := h.Do(func(m *hooks.CalloutManager) error {
		names := m.Hooks().Names()
		table = make([]HookInfo, 0, len(names))
		for idx, name := range names {
			callouts, err := m.Callouts(idx)
			if err != nil {
				return err
			}
			table = append(table, HookInfo{Index: idx, Name: name, Callouts: callouts})
		}
		return nil
	})
	return table, err
}
