package library

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookd/internal/hooks"
)

// fakeModule registers one callout on "alpha" that appends its tag to the
// "trace" argument.
type fakeModule struct {
	name     string
	loadErr  error
	unloaded *[]string
	tag      string
}

func (f *fakeModule) Name() string    { return f.name }
func (f *fakeModule) Version() string { return "test" }

func (f *fakeModule) Load(h *hooks.LibraryHandle, params Parameters) error {
	var p struct {
		Tag string `yaml:"tag" validate:"required"`
	}
	if err := params.Decode(&p); err != nil {
		return err
	}
	f.tag = p.Tag
	if err := h.RegisterCallout("alpha", hooks.NewCallout(f.name, func(ch *hooks.CalloutHandle) int {
		current, _ := hooks.ArgumentAs[string](ch, "trace")
		ch.SetArgument("trace", current+f.tag)
		return 0
	})); err != nil {
		return err
	}
	return f.loadErr
}

func (f *fakeModule) Unload() error {
	*f.unloaded = append(*f.unloaded, f.name+":"+f.tag)
	return nil
}

func newFixture(t *testing.T, libraries int) (*Catalog, *hooks.CalloutManager, *[]string, *error) {
	t.Helper()
	var unloaded []string
	var failWith error

	cat := NewCatalog()
	for _, name := range []string{"one", "two"} {
		require.NoError(t, cat.Add(name, func() Module {
			return &fakeModule{name: name, unloaded: &unloaded, loadErr: failWith}
		}))
	}

	registry := hooks.NewServerHooks()
	_, err := registry.RegisterHook("alpha")
	require.NoError(t, err)
	m, err := hooks.NewCalloutManager(registry, libraries)
	require.NoError(t, err)
	return cat, m, &unloaded, &failWith
}

func trace(t *testing.T, m *hooks.CalloutManager) string {
	t.Helper()
	h, err := hooks.NewCalloutHandle(m)
	require.NoError(t, err)
	_, err = m.CallCalloutsByName("alpha", h)
	require.NoError(t, err)
	got, _ := hooks.ArgumentAs[string](h, "trace")
	require.NoError(t, h.Close())
	return got
}

func TestCatalogAdd(t *testing.T) {
	cat := NewCatalog()
	f := func() Module { return &fakeModule{} }

	require.NoError(t, cat.Add("x", f))
	assert.Error(t, cat.Add("x", f))
	assert.Error(t, cat.Add("", f))
	assert.Error(t, cat.Add("y", nil))
	assert.Equal(t, []string{"x"}, cat.Names())

	_, ok := cat.Get("x")
	assert.True(t, ok)
	_, ok = cat.Get("y")
	assert.False(t, ok)
}

func TestLoadAllOrder(t *testing.T) {
	cat, m, unloaded, _ := newFixture(t, 3)

	set, err := cat.LoadAll(m, []Spec{
		{Name: "two", Parameters: Parameters{"tag": "A"}},
		{Name: "one", Parameters: Parameters{"tag": "B"}},
		{Name: "two", Parameters: Parameters{"tag": "C"}},
	})
	require.NoError(t, err)
	require.Len(t, set.Loaded(), 3)
	assert.Equal(t, "ABC", trace(t, m))

	require.NoError(t, set.UnloadAll())
	assert.Equal(t, []string{"two:C", "one:B", "two:A"}, *unloaded)
	assert.Equal(t, "", trace(t, m), "callouts removed on unload")

	require.NoError(t, set.UnloadAll())
	assert.Len(t, *unloaded, 3)
}

func TestLoadAllUnknownLibrary(t *testing.T) {
	cat, m, _, _ := newFixture(t, 1)

	_, err := cat.LoadAll(m, []Spec{{Name: "three"}})
	assert.ErrorIs(t, err, ErrUnknownLibrary)
	assert.Contains(t, err.Error(), `"three"`)
}

func TestLoadAllSlotMismatch(t *testing.T) {
	cat, m, _, _ := newFixture(t, 2)

	_, err := cat.LoadAll(m, []Spec{{Name: "one", Parameters: Parameters{"tag": "A"}}})
	assert.Error(t, err)
}

func TestLoadAllRollsBack(t *testing.T) {
	cat, m, unloaded, failWith := newFixture(t, 2)

	_, err := cat.LoadAll(m, []Spec{
		{Name: "one", Parameters: Parameters{"tag": "A"}},
		{Name: "two", Parameters: Parameters{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `load library "two" at index 1`)
	assert.Equal(t, []string{"one:A"}, *unloaded)
	assert.Equal(t, "", trace(t, m))

	*failWith = errors.New("refused")
	*unloaded = nil
	_, err = cat.LoadAll(m, []Spec{
		{Name: "one", Parameters: Parameters{"tag": "A"}},
		{Name: "two", Parameters: Parameters{"tag": "B"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.Equal(t, "", trace(t, m), "callouts of the failed module removed")
}

func TestParametersDecode(t *testing.T) {
	type params struct {
		Domains []string `yaml:"domains" validate:"required,min=1,dive,dns_name"`
		Limit   int      `yaml:"limit" validate:"min=0"`
	}

	var p params
	require.NoError(t, Parameters{"domains": []any{"ads.example."}, "limit": 3}.Decode(&p))
	assert.Equal(t, params{Domains: []string{"ads.example."}, Limit: 3}, p)

	err := Parameters{"domains": []any{"ads.example."}, "bogus": 1}.Decode(&params{})
	assert.ErrorContains(t, err, "bogus")

	err = Parameters{}.Decode(&params{})
	assert.ErrorContains(t, err, "domains")

	err = Parameters(nil).Decode(&struct{}{})
	assert.NoError(t, err)
}
