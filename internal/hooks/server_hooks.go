package hooks

import (
	"fmt"
	"strings"
)

// Reserved hooks, run by CalloutHandle construction and Close.
const (
	HookContextCreate  = "context_create"
	HookContextDestroy = "context_destroy"
)

// Indices of the reserved hooks in every ServerHooks registry.
const (
	ContextCreateIndex  = 0
	ContextDestroyIndex = 1
)

// ServerHooks maps hook names to dense, stable indices.
// Indices are handed out in registration order and never reused.
type ServerHooks struct {
	names   []string
	indexes map[string]int
}

// NewServerHooks returns a registry holding only the reserved hooks.
func NewServerHooks() *ServerHooks {
	s := &ServerHooks{
		indexes: make(map[string]int),
	}
	s.add(HookContextCreate)
	s.add(HookContextDestroy)
	return s
}

// RegisterHook adds a hook and returns its index.
func (s *ServerHooks) RegisterHook(name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return -1, fmt.Errorf("hook name is empty")
	}
	if _, exists := s.indexes[name]; exists {
		return -1, fmt.Errorf("%w: %q", ErrDuplicateHook, name)
	}
	return s.add(name), nil
}

func (s *ServerHooks) add(name string) int {
	index := len(s.names)
	s.names = append(s.names, name)
	s.indexes[name] = index
	return index
}

// Index returns the index of a registered hook.
func (s *ServerHooks) Index(name string) (int, error) {
	index, ok := s.indexes[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrNoSuchHook, name)
	}
	return index, nil
}

// Name returns the name registered at index.
func (s *ServerHooks) Name(index int) (string, error) {
	if index < 0 || index >= len(s.names) {
		return "", fmt.Errorf("%w: index %d", ErrNoSuchHook, index)
	}
	return s.names[index], nil
}

// Count returns the number of registered hooks, reserved hooks included.
func (s *ServerHooks) Count() int {
	return len(s.names)
}

// Names returns hook names in index order.
func (s *ServerHooks) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
