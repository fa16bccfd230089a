package dnspipeline

import (
	"context"
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// ZoneResolver answers A and AAAA queries from a static name-to-address
// map. Names outside the map get NXDOMAIN; names in the map queried for a
// type they have no address of get an empty NOERROR answer.
type ZoneResolver struct {
	records map[string]net.IP
	ttl     uint32
}

// NewZoneResolver parses the zone. Names are canonicalized.
func NewZoneResolver(zone map[string]string, ttl uint32) (*ZoneResolver, error) {
	records := make(map[string]net.IP, len(zone))
	for name, addr := range zone {
		if _, ok := dns.IsDomainName(name); !ok {
			return nil, fmt.Errorf("zone: invalid name %q", name)
		}
		ip := net.ParseIP(addr)
		if ip == nil {
			return nil, fmt.Errorf("zone: invalid address %q for %s", addr, name)
		}
		records[dns.CanonicalName(name)] = ip
	}
	return &ZoneResolver{records: records, ttl: ttl}, nil
}

// Resolve implements Resolver.
func (z *ZoneResolver) Resolve(_ context.Context, req *dns.Msg) (*dns.Msg, error) {
	resp := new(dns.Msg).SetReply(req)
	resp.Authoritative = true

	for _, q := range req.Question {
		if q.Qclass != dns.ClassINET {
			continue
		}
		ip, ok := z.records[dns.CanonicalName(q.Name)]
		if !ok {
			resp.Rcode = dns.RcodeNameError
			continue
		}
		if rr := z.record(q, ip); rr != nil {
			resp.Answer = append(resp.Answer, rr)
		}
	}
	return resp, nil
}

func (z *ZoneResolver) record(q dns.Question, ip net.IP) dns.RR {
	hdr := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: z.ttl}

	if v4 := ip.To4(); v4 != nil {
		if q.Qtype != dns.TypeA && q.Qtype != dns.TypeANY {
			return nil
		}
		hdr.Rrtype = dns.TypeA
		return &dns.A{Hdr: hdr, A: v4}
	}
	if q.Qtype != dns.TypeAAAA && q.Qtype != dns.TypeANY {
		return nil
	}
	hdr.Rrtype = dns.TypeAAAA
	return &dns.AAAA{Hdr: hdr, AAAA: ip}
}
