package builtin

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookd/internal/dnspipeline"
	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/host"
	"github.com/mattjoyce/hookd/internal/library"
)

type stack struct {
	pipeline *dnspipeline.Pipeline
	set      *library.Set
	logs     *bytes.Buffer
}

func newStack(t *testing.T, specs []library.Spec) *stack {
	t.Helper()

	logs := &bytes.Buffer{}
	cat := library.NewCatalog()
	require.NoError(t, Register(cat))
	// Swap in a query log that writes to the buffer with a fixed clock.
	cat = rebind(t, cat, QueryLogName, func() library.Module {
		tick := time.Unix(1000, 0)
		return &QueryLog{
			logger: slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
			now: func() time.Time {
				tick = tick.Add(5 * time.Millisecond)
				return tick
			},
		}
	})

	registry := hooks.NewServerHooks()
	require.NoError(t, dnspipeline.RegisterHooks(registry))
	m, err := hooks.NewCalloutManager(registry, len(specs))
	require.NoError(t, err)

	set, err := cat.LoadAll(m, specs)
	require.NoError(t, err)

	h, err := host.New(m)
	require.NoError(t, err)
	zone, err := dnspipeline.NewZoneResolver(map[string]string{
		"www.example.":     "192.0.2.10",
		"ads.example.":     "192.0.2.66",
		"sub.ads.example.": "192.0.2.67",
	}, 3600)
	require.NoError(t, err)
	p, err := dnspipeline.New(h, zone)
	require.NoError(t, err)

	return &stack{pipeline: p, set: set, logs: logs}
}

// rebind returns a catalog identical to c except for name.
func rebind(t *testing.T, c *library.Catalog, name string, f library.Factory) *library.Catalog {
	t.Helper()
	out := library.NewCatalog()
	for _, n := range c.Names() {
		orig, _ := c.Get(n)
		if n == name {
			orig = f
		}
		require.NoError(t, out.Add(n, orig))
	}
	return out
}

func (s *stack) ask(t *testing.T, name string) *dns.Msg {
	t.Helper()
	req := new(dns.Msg).SetQuestion(name, dns.TypeA)
	resp, err := s.pipeline.Process(context.Background(), req, &net.UDPAddr{IP: net.ParseIP("198.51.100.1"), Port: 53000})
	require.NoError(t, err)
	return resp
}

func TestRegisterCatalog(t *testing.T) {
	cat := library.NewCatalog()
	require.NoError(t, Register(cat))
	assert.Equal(t, []string{BlocklistName, QueryLogName, TTLClampName}, cat.Names())
	assert.Error(t, Register(cat), "second registration collides")
}

func TestBlocklist(t *testing.T) {
	s := newStack(t, []library.Spec{
		{Name: BlocklistName, Parameters: library.Parameters{"domains": []any{"ADS.example"}}},
	})

	for _, name := range []string{"ads.example.", "sub.ads.example."} {
		resp := s.ask(t, name)
		assert.Equal(t, dns.RcodeNameError, resp.Rcode, name)
		assert.Empty(t, resp.Answer, name)
	}

	resp := s.ask(t, "www.example.")
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	assert.Len(t, resp.Answer, 1)

	require.NoError(t, s.set.UnloadAll())
	resp = s.ask(t, "ads.example.")
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode, "unloaded blocklist no longer answers")
}

func TestBlocklistMatching(t *testing.T) {
	b := &Blocklist{domains: []string{"ads.example."}}
	assert.True(t, b.Blocked("ads.example"))
	assert.True(t, b.Blocked("x.y.ADS.example."))
	assert.False(t, b.Blocked("badads.example."))
	assert.False(t, b.Blocked("example."))
}

func TestBlocklistParameters(t *testing.T) {
	cat := library.NewCatalog()
	require.NoError(t, Register(cat))
	registry := hooks.NewServerHooks()
	require.NoError(t, dnspipeline.RegisterHooks(registry))
	m, err := hooks.NewCalloutManager(registry, 1)
	require.NoError(t, err)

	_, err = cat.LoadAll(m, []library.Spec{{Name: BlocklistName}})
	assert.ErrorContains(t, err, "domains")

	_, err = cat.LoadAll(m, []library.Spec{{Name: BlocklistName, Parameters: library.Parameters{"domains": []any{"bad..name"}}}})
	assert.ErrorContains(t, err, "dns_name")
}

func TestTTLClamp(t *testing.T) {
	s := newStack(t, []library.Spec{
		{Name: TTLClampName, Parameters: library.Parameters{"min_ttl": 30, "max_ttl": 600}},
	})

	resp := s.ask(t, "www.example.")
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, uint32(600), resp.Answer[0].Header().Ttl)
}

func TestTTLClampBounds(t *testing.T) {
	c := &TTLClamp{min: 30, max: 600}
	assert.Equal(t, uint32(30), c.bound(0))
	assert.Equal(t, uint32(300), c.bound(300))
	assert.Equal(t, uint32(600), c.bound(86400))

	floor := &TTLClamp{min: 60}
	assert.Equal(t, uint32(86400), floor.bound(86400))
}

func TestTTLClampParameters(t *testing.T) {
	for _, params := range []library.Parameters{
		{},
		{"min_ttl": 100, "max_ttl": 10},
		{"max": 10},
	} {
		registry := hooks.NewServerHooks()
		require.NoError(t, dnspipeline.RegisterHooks(registry))
		m, err := hooks.NewCalloutManager(registry, 1)
		require.NoError(t, err)
		require.NoError(t, m.SetLibraryIndex(0))
		assert.Error(t, NewTTLClamp().Load(m.LibraryHandle(), params), "%v", params)
	}
}

func TestQueryLogAndOrdering(t *testing.T) {
	// Blocklist answers before the clamp sees the response; the log records
	// the final outcome at context_destroy.
	s := newStack(t, []library.Spec{
		{Name: QueryLogName, Parameters: library.Parameters{"level": "debug"}},
		{Name: BlocklistName, Parameters: library.Parameters{"domains": []any{"ads.example."}}},
		{Name: TTLClampName, Parameters: library.Parameters{"max_ttl": 60}},
	})

	s.ask(t, "www.example.")
	s.ask(t, "ads.example.")

	out := s.logs.String()
	assert.Contains(t, out, `"question":"www.example. A"`)
	assert.Contains(t, out, `"rcode":"NOERROR"`)
	assert.Contains(t, out, `"question":"ads.example. A"`)
	assert.Contains(t, out, `"rcode":"NXDOMAIN"`)
	assert.Contains(t, out, `"client":"198.51.100.1:53000"`)
	assert.Contains(t, out, `"elapsed"`)

	require.NoError(t, s.set.UnloadAll())
	assert.Contains(t, s.logs.String(), `"queries":2`)
}
