package builtin

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/mattjoyce/hookd/internal/dnspipeline"
	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/library"
	"github.com/mattjoyce/hookd/internal/log"
)

// QueryLogName is the catalog name of the query log library.
const QueryLogName = "querylog"

// Context keys, private to this library's slot.
const (
	ctxStarted  = "started"
	ctxQuestion = "question"
)

// QueryLog logs every query with its outcome and elapsed time. It uses the
// per-library context to carry state from context_create to
// context_destroy.
type QueryLog struct {
	logger *slog.Logger
	now    func() time.Time
	level  slog.Level
	count  int
}

// NewQueryLog creates an unloaded query log.
func NewQueryLog() *QueryLog {
	return &QueryLog{logger: log.WithLibrary(QueryLogName), now: time.Now}
}

func (q *QueryLog) Name() string    { return QueryLogName }
func (q *QueryLog) Version() string { return version }

func (q *QueryLog) Load(h *hooks.LibraryHandle, params library.Parameters) error {
	var p struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info"`
	}
	if err := params.Decode(&p); err != nil {
		return err
	}
	q.level = slog.LevelInfo
	if p.Level == "debug" {
		q.level = slog.LevelDebug
	}

	for _, r := range []struct {
		hook string
		fn   hooks.CalloutFunc
	}{
		{hooks.HookContextCreate, q.start},
		{dnspipeline.HookQueryReceived, q.question},
		{hooks.HookContextDestroy, q.finish},
	} {
		if err := h.RegisterCallout(r.hook, hooks.NewCallout(QueryLogName+"."+r.hook, r.fn)); err != nil {
			return err
		}
	}
	return nil
}

func (q *QueryLog) Unload() error {
	q.logger.Info("query log unloaded", "queries", q.count)
	return nil
}

func (q *QueryLog) start(h *hooks.CalloutHandle) int {
	if err := h.SetContext(ctxStarted, q.now()); err != nil {
		return 1
	}
	return 0
}

func (q *QueryLog) question(h *hooks.CalloutHandle) int {
	req, err := hooks.ArgumentAs[*dns.Msg](h, dnspipeline.ArgQuery)
	if err != nil || len(req.Question) == 0 {
		return 0
	}
	qs := req.Question[0]
	if err := h.SetContext(ctxQuestion, qs.Name+" "+dns.TypeToString[qs.Qtype]); err != nil {
		return 1
	}
	return 0
}

// finish logs handles that saw a question; other handles are not DNS
// queries and are ignored.
func (q *QueryLog) finish(h *hooks.CalloutHandle) int {
	question, err := hooks.ContextAs[string](h, ctxQuestion)
	if err != nil {
		return 0
	}
	q.count++

	attrs := []any{"question", question, "handle_id", h.ID()}
	if started, err := hooks.ContextAs[time.Time](h, ctxStarted); err == nil {
		attrs = append(attrs, "elapsed", q.now().Sub(started))
	}
	if client, err := hooks.ArgumentAs[net.Addr](h, dnspipeline.ArgClient); err == nil && client != nil {
		attrs = append(attrs, "client", client.String())
	}
	if resp, err := hooks.ArgumentAs[*dns.Msg](h, dnspipeline.ArgResponse); err == nil && resp != nil {
		attrs = append(attrs, "rcode", dns.RcodeToString[resp.Rcode], "answers", len(resp.Answer))
	} else if _, err := h.Argument(dnspipeline.ArgDrop); err == nil {
		attrs = append(attrs, "dropped", true)
	}

	q.logger.Log(context.Background(), q.level, "dns query", attrs...)
	return 0
}
