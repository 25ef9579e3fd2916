package naming

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// PTRResolver looks up reverse DNS names. With a server configured it
// queries that server directly; otherwise it defers to the system resolver.
type PTRResolver struct {
	server string
	client *dns.Client
}

func NewPTRResolver(server string, timeout time.Duration) *PTRResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	server = strings.TrimSpace(server)
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
	}
	return &PTRResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupAddr returns the PTR names for address, without trailing dots and
// de-duplicated.
func (r *PTRResolver) LookupAddr(ctx context.Context, address string) ([]string, error) {
	host := address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	}
	if net.ParseIP(host) == nil {
		return nil, fmt.Errorf("reverse lookup: %q is not an IP address", host)
	}

	var raw []string
	if r.server == "" {
		names, err := net.DefaultResolver.LookupAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		raw = names
	} else {
		arpa, err := dns.ReverseAddr(host)
		if err != nil {
			return nil, err
		}
		m := new(dns.Msg)
		m.SetQuestion(arpa, dns.TypePTR)
		m.RecursionDesired = true

		in, _, err := r.client.ExchangeContext(ctx, m, r.server)
		if err != nil {
			return nil, fmt.Errorf("reverse lookup %s via %s: %w", host, r.server, err)
		}
		if in.Rcode != dns.RcodeSuccess {
			return nil, fmt.Errorf("reverse lookup %s: %s", host, dns.RcodeToString[in.Rcode])
		}
		for _, rr := range in.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				raw = append(raw, ptr.Ptr)
			}
		}
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(strings.TrimSuffix(name, "."))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
