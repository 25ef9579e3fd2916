package naming

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func TestNormalize(t *testing.T) {
	name, score, ok := Normalize(SourceReverseDNS, "Core1.Lab.Example.")
	if !ok {
		t.Fatalf("expected ok")
	}
	if name != "core1" {
		t.Fatalf("expected first label lowercased, got %q", name)
	}
	if score < minScore {
		t.Fatalf("expected score >= %d, got %d", minScore, score)
	}

	name, _, ok = Normalize(SourceCLI, " Edge-RTR-01 ")
	if !ok || name != "Edge-RTR-01" {
		t.Fatalf("expected cli name kept verbatim, got %q ok=%v", name, ok)
	}
}

func TestChoose_PrefersDeviceConfiguredName(t *testing.T) {
	name, ok := Choose([]Candidate{
		{Name: "core1.lab.example", Source: SourceReverseDNS},
		{Name: "CORE1", Source: SourceCLI},
	})
	if !ok {
		t.Fatalf("expected ok")
	}
	if name != "CORE1" {
		t.Fatalf("expected cli to win, got %q", name)
	}
}

func TestChoose_RejectsGarbage(t *testing.T) {
	name, ok := Choose([]Candidate{
		{Name: "4.3.2.1.in-addr.arpa", Source: SourceReverseDNS},
		{Name: "localhost", Source: SourceSNMP},
		{Name: "   ", Source: SourceCLI},
	})
	if ok {
		t.Fatalf("expected ok=false, got name=%q", name)
	}
}

func TestRank(t *testing.T) {
	got := Rank([]Candidate{
		{Name: "x", Source: SourceSNMP},
		{Name: "leaf1.dc", Source: SourceReverseDNS},
		{Name: "leaf1", Source: SourceRESTCONF},
	})
	if got[0].Source != SourceRESTCONF || got[1].Source != SourceReverseDNS || got[2].Source != SourceSNMP {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func startDNS(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func TestPTRResolver_LookupAddr(t *testing.T) {
	addr := startDNS(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		if req.Question[0].Name == "7.0.0.10.in-addr.arpa." {
			for _, target := range []string{"core1.lab.example.", "CORE1.lab.example."} {
				m.Answer = append(m.Answer, &dns.PTR{
					Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
					Ptr: target,
				})
			}
		} else {
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	r := NewPTRResolver(addr, time.Second)
	names, err := r.LookupAddr(context.Background(), "10.0.0.7")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(names) != 1 || names[0] != "core1.lab.example" {
		t.Fatalf("names = %v", names)
	}

	if _, err := r.LookupAddr(context.Background(), "10.0.0.8"); err == nil {
		t.Fatalf("expected NXDOMAIN error")
	}
	if _, err := r.LookupAddr(context.Background(), "core1"); err == nil {
		t.Fatalf("expected error for non-IP address")
	}
}

func TestNewPTRResolver_DefaultsPort(t *testing.T) {
	r := NewPTRResolver("192.0.2.53", 0)
	if r.server != "192.0.2.53:53" {
		t.Fatalf("server = %q", r.server)
	}
}
