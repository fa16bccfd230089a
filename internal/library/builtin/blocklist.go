package builtin

import (
	"github.com/miekg/dns"

	"github.com/mattjoyce/hookd/internal/dnspipeline"
	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/library"
)

// BlocklistName is the catalog name of the blocklist library.
const BlocklistName = "blocklist"

// Blocklist answers NXDOMAIN for listed domains and everything below them.
type Blocklist struct {
	domains []string
}

// NewBlocklist creates an unloaded blocklist.
func NewBlocklist() *Blocklist {
	return &Blocklist{}
}

func (b *Blocklist) Name() string    { return BlocklistName }
func (b *Blocklist) Version() string { return version }

func (b *Blocklist) Load(h *hooks.LibraryHandle, params library.Parameters) error {
	var p struct {
		Domains []string `yaml:"domains" validate:"required,min=1,dive,dns_name"`
	}
	if err := params.Decode(&p); err != nil {
		return err
	}

	b.domains = make([]string, len(p.Domains))
	for i, d := range p.Domains {
		b.domains[i] = dns.CanonicalName(d)
	}
	return h.RegisterCallout(dnspipeline.HookQueryReceived, hooks.NewCallout(BlocklistName+".match", b.match))
}

func (b *Blocklist) Unload() error {
	b.domains = nil
	return nil
}

// Blocked reports whether name equals, or is below, a listed domain.
func (b *Blocklist) Blocked(name string) bool {
	name = dns.CanonicalName(name)
	for _, d := range b.domains {
		if dns.IsSubDomain(d, name) {
			return true
		}
	}
	return false
}

func (b *Blocklist) match(h *hooks.CalloutHandle) int {
	req, err := hooks.ArgumentAs[*dns.Msg](h, dnspipeline.ArgQuery)
	if err != nil {
		return 1
	}
	if len(req.Question) == 0 || !b.Blocked(req.Question[0].Name) {
		return 0
	}

	resp := new(dns.Msg).SetRcode(req, dns.RcodeNameError)
	resp.Authoritative = true
	h.SetArgument(dnspipeline.ArgResponse, resp)
	return 0
}
