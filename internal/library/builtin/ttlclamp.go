package builtin

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/mattjoyce/hookd/internal/dnspipeline"
	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/library"
)

// TTLClampName is the catalog name of the TTL clamp library.
const TTLClampName = "ttlclamp"

// TTLClamp forces every record TTL of an outgoing response into
// [min_ttl, max_ttl]. A zero bound is not enforced.
type TTLClamp struct {
	min, max uint32
}

// NewTTLClamp creates an unloaded clamp.
func NewTTLClamp() *TTLClamp {
	return &TTLClamp{}
}

func (c *TTLClamp) Name() string    { return TTLClampName }
func (c *TTLClamp) Version() string { return version }

func (c *TTLClamp) Load(h *hooks.LibraryHandle, params library.Parameters) error {
	var p struct {
		MinTTL uint32 `yaml:"min_ttl"`
		MaxTTL uint32 `yaml:"max_ttl"`
	}
	if err := params.Decode(&p); err != nil {
		return err
	}
	if p.MinTTL == 0 && p.MaxTTL == 0 {
		return fmt.Errorf("ttlclamp needs min_ttl or max_ttl")
	}
	if p.MaxTTL != 0 && p.MinTTL > p.MaxTTL {
		return fmt.Errorf("ttlclamp min_ttl %d exceeds max_ttl %d", p.MinTTL, p.MaxTTL)
	}
	c.min, c.max = p.MinTTL, p.MaxTTL

	return h.RegisterCallout(dnspipeline.HookResponseSend, hooks.NewCallout(TTLClampName+".clamp", c.clamp))
}

func (c *TTLClamp) Unload() error { return nil }

func (c *TTLClamp) clamp(h *hooks.CalloutHandle) int {
	resp, err := hooks.ArgumentAs[*dns.Msg](h, dnspipeline.ArgResponse)
	if err != nil || resp == nil {
		return 0
	}
	for _, section := range [][]dns.RR{resp.Answer, resp.Ns, resp.Extra} {
		for _, rr := range section {
			// OPT carries flags in the TTL field.
			if rr.Header().Rrtype == dns.TypeOPT {
				continue
			}
			rr.Header().Ttl = c.bound(rr.Header().Ttl)
		}
	}
	return 0
}

func (c *TTLClamp) bound(ttl uint32) uint32 {
	if ttl < c.min {
		return c.min
	}
	if c.max != 0 && ttl > c.max {
		return c.max
	}
	return ttl
}
