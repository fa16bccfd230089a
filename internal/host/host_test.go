package host

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookd/internal/hooks"
)

func newHost(t *testing.T, libraries int) *Host {
	t.Helper()
	registry := hooks.NewServerHooks()
	_, err := registry.RegisterHook("alpha")
	require.NoError(t, err)
	m, err := hooks.NewCalloutManager(registry, libraries)
	require.NoError(t, err)
	h, err := New(m)
	require.NoError(t, err)
	return h
}

func TestNewRejectsNil(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestHookTable(t *testing.T) {
	h := newHost(t, 2)
	require.NoError(t, h.Do(func(m *hooks.CalloutManager) error {
		if err := m.SetLibraryIndex(1); err != nil {
			return err
		}
		return m.RegisterCallout("alpha", hooks.NewCallout("count", func(*hooks.CalloutHandle) int { return 0 }))
	}))

	table, err := h.HookTable()
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, hooks.HookContextCreate, table[0].Name)
	assert.Equal(t, hooks.HookContextDestroy, table[1].Name)
	assert.Equal(t, HookInfo{Index: 2, Name: "alpha", Callouts: [][]string{{}, {"count"}}}, table[2])
}

func TestDoSerializesDispatch(t *testing.T) {
	h := newHost(t, 1)

	counter := 0
	require.NoError(t, h.Do(func(m *hooks.CalloutManager) error {
		if err := m.SetLibraryIndex(0); err != nil {
			return err
		}
		return m.RegisterCallout("alpha", hooks.NewCallout("inc", func(*hooks.CalloutHandle) int {
			counter++
			return 0
		}))
	}))

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				err := h.Do(func(m *hooks.CalloutManager) error {
					handle, err := hooks.NewCalloutHandle(m)
					if err != nil {
						return err
					}
					if _, err := m.CallCalloutsByName("alpha", handle); err != nil {
						return err
					}
					return handle.Close()
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, counter)
}
