// Package dnspipeline is a DNS front end whose query path runs through the
// hooks engine. Every query gets its own callout handle, which lives from
// receipt until the reply has been chosen.
package dnspipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/miekg/dns"

	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/host"
	"github.com/mattjoyce/hookd/internal/log"
)

// Hook points exposed by the pipeline.
const (
	HookQueryReceived = "dns_query_received"
	HookResponseSend  = "dns_response_send"
)

// Arguments set on, or read back from, the callout handle.
const (
	ArgQuery    = "query"    // *dns.Msg
	ArgClient   = "client"   // net.Addr, may be nil
	ArgResponse = "response" // *dns.Msg
	ArgDrop     = "drop"     // bool
)

// ErrDropped is returned when a callout set the drop argument.
var ErrDropped = errors.New("query dropped by callout")

//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks github.com/mattjoyce/hookd/internal/dnspipeline Resolver

// Resolver answers queries that no callout answered.
type Resolver interface {
	Resolve(ctx context.Context, req *dns.Msg) (*dns.Msg, error)
}

// RegisterHooks adds the pipeline's hook points to a registry.
func RegisterHooks(registry *hooks.ServerHooks) error {
	for _, name := range []string{HookQueryReceived, HookResponseSend} {
		if _, err := registry.RegisterHook(name); err != nil {
			return err
		}
	}
	return nil
}

// Pipeline processes DNS queries.
type Pipeline struct {
	host         *host.Host
	resolver     Resolver
	logger       *slog.Logger
	queryHook    int
	responseHook int
}

// New builds a pipeline. The manager behind h must use a registry that
// RegisterHooks was called on.
func New(h *host.Host, resolver Resolver) (*Pipeline, error) {
	if h == nil || resolver == nil {
		return nil, fmt.Errorf("dns pipeline needs a host and a resolver")
	}

	p := &Pipeline{host: h, resolver: resolver, logger: log.WithComponent("dns")}
	err := h.Do(func(m *hooks.CalloutManager) error {
		var err error
		if p.queryHook, err = m.Hooks().Index(HookQueryReceived); err != nil {
			return err
		}
		p.responseHook, err = m.Hooks().Index(HookResponseSend)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dns pipeline hooks: %w", err)
	}
	return p, nil
}

// Process runs one query through the hooks and returns the reply to send.
//
// The engine is held only while callouts run; the resolver is called
// without it. ErrDropped means no reply must be sent. When closing the
// handle fails the reply is still returned, together with an error
// wrapping hooks.ErrContextDestroyFail.
func (p *Pipeline) Process(ctx context.Context, req *dns.Msg, client net.Addr) (*dns.Msg, error) {
	if req == nil {
		return nil, fmt.Errorf("nil dns request")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var handle *hooks.CalloutHandle
	var resp *dns.Msg
	var dropped bool

	err := p.host.Do(func(m *hooks.CalloutManager) error {
		var err error
		handle, err = hooks.NewCalloutHandle(m)
		if err != nil {
			return err
		}
		handle.SetArgument(ArgQuery, req)
		handle.SetArgument(ArgClient, client)

		p.dispatch(m, p.queryHook, HookQueryReceived, handle)
		resp, dropped = p.outcome(handle)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if dropped {
		return nil, errors.Join(ErrDropped, p.close(handle))
	}

	if resp == nil {
		resp, err = p.resolver.Resolve(ctx, req)
		if err != nil || resp == nil {
			p.logger.Warn("resolve failed", "name", questionName(req), "error", err)
			resp = new(dns.Msg).SetRcode(req, dns.RcodeServerFailure)
		}
	}

	err = p.host.Do(func(m *hooks.CalloutManager) error {
		handle.SetArgument(ArgResponse, resp)
		p.dispatch(m, p.responseHook, HookResponseSend, handle)

		final, drop := p.outcome(handle)
		if final != nil {
			resp = final
		}
		dropped = drop
		return nil
	})
	if err != nil {
		return nil, errors.Join(err, p.close(handle))
	}

	if dropped {
		return nil, errors.Join(ErrDropped, p.close(handle))
	}
	return resp, p.close(handle)
}

func (p *Pipeline) dispatch(m *hooks.CalloutManager, hookIndex int, hookName string, handle *hooks.CalloutHandle) {
	status, err := m.CallCallouts(hookIndex, handle)
	if err != nil {
		p.logger.Error("dispatch failed", "hook", hookName, "handle_id", handle.ID(), "error", err)
		return
	}
	if status != 0 {
		p.logger.Debug("callouts reported status", "hook", hookName, "handle_id", handle.ID(), "status", status)
	}
}

// outcome reads the response and drop arguments. Values of the wrong type
// are ignored.
func (p *Pipeline) outcome(handle *hooks.CalloutHandle) (*dns.Msg, bool) {
	resp, _ := hooks.ArgumentAs[*dns.Msg](handle, ArgResponse)
	drop, _ := hooks.ArgumentAs[bool](handle, ArgDrop)
	return resp, drop
}

func (p *Pipeline) close(handle *hooks.CalloutHandle) error {
	return p.host.Do(func(*hooks.CalloutManager) error {
		return handle.Close()
	})
}

// ServeDNS implements dns.Handler.
func (p *Pipeline) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	resp, err := p.Process(context.Background(), req, w.RemoteAddr())
	if errors.Is(err, ErrDropped) {
		p.logger.Debug("query dropped", "name", questionName(req), "client", w.RemoteAddr().String())
		return
	}
	if err != nil {
		p.logger.Warn("query processing error", "name", questionName(req), "error", err)
	}
	if resp == nil {
		resp = new(dns.Msg).SetRcode(req, dns.RcodeServerFailure)
	}
	if err := w.WriteMsg(resp); err != nil {
		p.logger.Debug("write failed", "error", err)
	}
}

func questionName(req *dns.Msg) string {
	if req == nil || len(req.Question) == 0 {
		return ""
	}
	return req.Question[0].Name
}
