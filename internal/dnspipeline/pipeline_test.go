package dnspipeline

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookd/internal/dnspipeline/mocks"
	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/host"
)

type registration struct {
	hook    string
	callout *hooks.Callout
}

func newPipeline(t *testing.T, resolver Resolver, regs ...registration) *Pipeline {
	t.Helper()
	registry := hooks.NewServerHooks()
	require.NoError(t, RegisterHooks(registry))
	m, err := hooks.NewCalloutManager(registry, 1)
	require.NoError(t, err)

	require.NoError(t, m.SetLibraryIndex(0))
	for _, r := range regs {
		require.NoError(t, m.RegisterCallout(r.hook, r.callout))
	}

	h, err := host.New(m)
	require.NoError(t, err)
	p, err := New(h, resolver)
	require.NoError(t, err)
	return p
}

func query(name string) *dns.Msg {
	return new(dns.Msg).SetQuestion(dns.Fqdn(name), dns.TypeA)
}

func answerA(req *dns.Msg, ip string) *dns.Msg {
	resp := new(dns.Msg).SetReply(req)
	resp.Answer = append(resp.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
		A:   net.ParseIP(ip).To4(),
	})
	return resp
}

var client = &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 5000}

func TestNewRequiresHooks(t *testing.T) {
	m, err := hooks.NewCalloutManager(hooks.NewServerHooks(), 0)
	require.NoError(t, err)
	h, err := host.New(m)
	require.NoError(t, err)

	_, err = New(h, &ZoneResolver{})
	assert.ErrorIs(t, err, hooks.ErrNoSuchHook)

	_, err = New(nil, &ZoneResolver{})
	assert.Error(t, err)
}

func TestProcessUsesResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := query("www.example.")
	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), req).Return(answerA(req, "192.0.2.1"), nil)

	var seenQuery *dns.Msg
	var seenClient net.Addr
	p := newPipeline(t, resolver, registration{HookQueryReceived, hooks.NewCallout("inspect", func(h *hooks.CalloutHandle) int {
		seenQuery, _ = hooks.ArgumentAs[*dns.Msg](h, ArgQuery)
		seenClient, _ = hooks.ArgumentAs[net.Addr](h, ArgClient)
		return 0
	})})

	resp, err := p.Process(context.Background(), req, client)
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, req.Id, resp.Id)
	assert.Same(t, req, seenQuery)
	assert.Equal(t, client.String(), seenClient.String())
}

func TestProcessCalloutAnswerSkipsResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	resolver := mocks.NewMockResolver(ctrl)

	p := newPipeline(t, resolver, registration{HookQueryReceived, hooks.NewCallout("answer", func(h *hooks.CalloutHandle) int {
		q, _ := hooks.ArgumentAs[*dns.Msg](h, ArgQuery)
		h.SetArgument(ArgResponse, new(dns.Msg).SetRcode(q, dns.RcodeRefused))
		return 0
	})})

	resp, err := p.Process(context.Background(), query("blocked.example."), nil)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeRefused, resp.Rcode)
}

func TestProcessDrop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	resolver := mocks.NewMockResolver(ctrl)

	destroyed := 0
	p := newPipeline(t, resolver,
		registration{HookQueryReceived, hooks.NewCallout("drop", func(h *hooks.CalloutHandle) int {
			h.SetArgument(ArgDrop, true)
			return 0
		})},
		registration{hooks.HookContextDestroy, hooks.NewCallout("count", func(*hooks.CalloutHandle) int {
			destroyed++
			return 0
		})},
	)

	resp, err := p.Process(context.Background(), query("x.example."), client)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrDropped)
	assert.Equal(t, 1, destroyed)
}

func TestProcessDropOnResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := query("x.example.")
	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), req).Return(answerA(req, "192.0.2.1"), nil)

	p := newPipeline(t, resolver, registration{HookResponseSend, hooks.NewCallout("drop", func(h *hooks.CalloutHandle) int {
		h.SetArgument(ArgDrop, true)
		return 0
	})})

	_, err := p.Process(context.Background(), req, client)
	assert.ErrorIs(t, err, ErrDropped)
}

func TestProcessResolverFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := query("down.example.")
	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), req).Return(nil, errors.New("upstream timeout"))

	var sent *dns.Msg
	p := newPipeline(t, resolver, registration{HookResponseSend, hooks.NewCallout("observe", func(h *hooks.CalloutHandle) int {
		sent, _ = hooks.ArgumentAs[*dns.Msg](h, ArgResponse)
		return 0
	})})

	resp, err := p.Process(context.Background(), req, client)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeServerFailure, resp.Rcode)
	assert.Same(t, resp, sent)
}

func TestProcessResponseReplaced(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := query("www.example.")
	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), req).Return(answerA(req, "192.0.2.1"), nil)

	p := newPipeline(t, resolver, registration{HookResponseSend, hooks.NewCallout("rewrite", func(h *hooks.CalloutHandle) int {
		q, _ := hooks.ArgumentAs[*dns.Msg](h, ArgQuery)
		h.SetArgument(ArgResponse, answerA(q, "203.0.113.9"))
		return 0
	})})

	resp, err := p.Process(context.Background(), req, client)
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, "203.0.113.9", resp.Answer[0].(*dns.A).A.String())
}

func TestProcessDestroyFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := query("www.example.")
	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), req).Return(answerA(req, "192.0.2.1"), nil)

	p := newPipeline(t, resolver, registration{hooks.HookContextDestroy, hooks.NewCallout("fail", func(*hooks.CalloutHandle) int {
		return 1
	})})

	resp, err := p.Process(context.Background(), req, client)
	assert.ErrorIs(t, err, hooks.ErrContextDestroyFail)
	assert.NotNil(t, resp)
}

func TestProcessCreateFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	resolver := mocks.NewMockResolver(ctrl)

	p := newPipeline(t, resolver, registration{hooks.HookContextCreate, hooks.NewCallout("fail", func(*hooks.CalloutHandle) int {
		return 1
	})})

	_, err := p.Process(context.Background(), query("www.example."), client)
	assert.ErrorIs(t, err, hooks.ErrContextCreateFail)
}

func TestProcessCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	p := newPipeline(t, mocks.NewMockResolver(ctrl))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, query("www.example."), client)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = p.Process(context.Background(), nil, client)
	assert.Error(t, err)
}
