package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cmoses01/DyaGram/internal/snmp"
	"github.com/cmoses01/DyaGram/internal/topology"
)

const (
	xeVersion = `Cisco IOS XE Software, Version 17.03.04a
Cisco IOS Software [Amsterdam], Virtual XE Software (X86_64_LINUX_IOSD-UNIVERSALK9-M)
Processor board ID 9ESGOBARV9D
`
	xeBIA = `  Hardware is CSR vNIC, address is 5254.0019.a2c1 (bia 5254.0019.a2c1)
  Hardware is CSR vNIC, address is 5254.0019.a2c2 (bia 5254.0019.a2c2)
`
	xeLLDP = `Capability codes:
    (R) Router, (B) Bridge, (T) Telephone, (C) DOCSIS Cable Device

------------------------------------------------
Local Intf: Gi0/1
Chassis id: aaaa.bbbb.cccc
Port id: Gi0/2
System Name: SW1

Total entries displayed: 1
`
	xeCDP = `-------------------------
Device ID: SW2(FOC1234X)
Entry address(es):
  IP address: 10.0.0.20
Platform: cisco WS-C3850,  Capabilities: Switch IGMP
Interface: GigabitEthernet0/3,  Port ID (outgoing port): GigabitEthernet1/0/1
Holdtime : 150 sec
`
	xeRoutes = `Codes: L - local, C - connected, S - static, O - OSPF, B - BGP

Gateway of last resort is not set

      10.0.0.0/8 is variably subnetted, 2 subnets, 2 masks
C        10.0.0.0/24 is directly connected, GigabitEthernet1
O        10.9.0.0/16 [110/2] via 10.0.0.2, 00:01:02, GigabitEthernet1
`
)

var sw1 = topology.Neighbor{Hostname: "SW1", LocalPort: "Gi0/1", NeighborPort: "Gi0/2", ChassisID: "aaaa.bbbb.cccc"}

type fakeRESTCONF struct {
	lldp     func(ctx context.Context, address string) ([]topology.Neighbor, error)
	native   func(ctx context.Context, address string) ([]topology.Neighbor, error)
	hostname func(ctx context.Context, address string) (string, error)
	chassis  func(ctx context.Context, address string) ([]string, error)
}

func unsupported(what string) error {
	return fmt.Errorf("%w: %s", topology.ErrProtocolUnsupported, what)
}

func (f *fakeRESTCONF) LLDPNeighbors(ctx context.Context, address string) ([]topology.Neighbor, error) {
	if f.lldp == nil {
		return nil, unsupported("lldp")
	}
	return f.lldp(ctx, address)
}

func (f *fakeRESTCONF) NativeLLDPNeighbors(ctx context.Context, address string) ([]topology.Neighbor, error) {
	if f.native == nil {
		return nil, unsupported("native lldp")
	}
	return f.native(ctx, address)
}

func (f *fakeRESTCONF) Hostname(ctx context.Context, address string) (string, error) {
	if f.hostname == nil {
		return "", unsupported("hostname")
	}
	return f.hostname(ctx, address)
}

func (f *fakeRESTCONF) ChassisIDs(ctx context.Context, address string) ([]string, error) {
	if f.chassis == nil {
		return nil, unsupported("chassis")
	}
	return f.chassis(ctx, address)
}

type fakeSession struct {
	fingerprint string
	outputs     map[string]string
	errs        map[string]error
	enableErr   error

	mu     sync.Mutex
	ran    []string
	closed int
}

func (s *fakeSession) Run(_ context.Context, cmd string) (string, error) {
	s.mu.Lock()
	s.ran = append(s.ran, cmd)
	s.mu.Unlock()
	if err := s.errs[cmd]; err != nil {
		return "", err
	}
	out, ok := s.outputs[cmd]
	if !ok {
		return "", unsupported(cmd)
	}
	return out, nil
}

func (s *fakeSession) Enable(context.Context) error { return s.enableErr }
func (s *fakeSession) Fingerprint() string          { return s.fingerprint }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeCLI struct {
	mu    sync.Mutex
	calls int
	dial  func(ctx context.Context, attempt int) (Session, error)
}

func (f *fakeCLI) Dial(ctx context.Context, _ string) (Session, error) {
	f.mu.Lock()
	f.calls++
	attempt := f.calls
	f.mu.Unlock()
	return f.dial(ctx, attempt)
}

func cliFor(s *fakeSession) *fakeCLI {
	return &fakeCLI{dial: func(context.Context, int) (Session, error) { return s, nil }}
}

type fakeSNMP struct {
	collect func(ctx context.Context, address string) (snmp.Result, error)
}

func (f *fakeSNMP) Collect(ctx context.Context, address string) (snmp.Result, error) {
	return f.collect(ctx, address)
}

type fakePTR struct {
	names []string
	err   error
	calls int
}

func (f *fakePTR) LookupAddr(context.Context, string) ([]string, error) {
	f.calls++
	return f.names, f.err
}

func xeSession(lldp string) *fakeSession {
	return &fakeSession{
		fingerprint: "SSH-2.0-Cisco-1.25\n\nR1#",
		outputs: map[string]string{
			"show version":                           xeVersion,
			"show running-config | include hostname": "hostname R1\n",
			"show interfaces | include bia":          xeBIA,
			"show lldp neighbors detail":             lldp,
			"show ip route vrf *":                    xeRoutes,
		},
	}
}

func unreachable(address string) error {
	return &topology.ConnectivityError{Address: address, Err: errors.New("i/o timeout")}
}

func states(trace []Step) []State {
	out := make([]State, 0, len(trace))
	for _, s := range trace {
		out = append(out, s.State)
	}
	return out
}

func sameStates(got []State, want ...State) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestResolve_RESTCONFSuccess(t *testing.T) {
	rc := &fakeRESTCONF{
		lldp:     func(context.Context, string) ([]topology.Neighbor, error) { return []topology.Neighbor{sw1}, nil },
		hostname: func(context.Context, string) (string, error) { return "R1", nil },
		chassis:  func(context.Context, string) ([]string, error) { return []string{"5254.0019.a2c1"}, nil },
	}
	cli := &fakeCLI{dial: func(context.Context, int) (Session, error) {
		t.Fatalf("ssh must not be used when restconf succeeds")
		return nil, nil
	}}
	r := New(zerolog.Nop(), Deps{RESTCONF: rc, CLI: cli}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.1")
	if res.Err != nil || res.Device.Status != topology.StatusOK {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Path != PathRESTCONF {
		t.Fatalf("path = %q", res.Path)
	}
	if res.Device.Hostname != "R1" || len(res.Device.Neighbors) != 1 || res.Device.Neighbors[0] != sw1 {
		t.Fatalf("device = %+v", res.Device)
	}
	if len(res.Device.ChassisIDs) != 1 {
		t.Fatalf("chassis ids = %v", res.Device.ChassisIDs)
	}
	if !sameStates(states(res.Trace), StateRestconfOpenConfig) {
		t.Fatalf("trace = %v", states(res.Trace))
	}
}

func TestResolve_FallsBackToSSHStructured(t *testing.T) {
	rc := &fakeRESTCONF{lldp: func(_ context.Context, a string) ([]topology.Neighbor, error) { return nil, unreachable(a) }}
	sess := xeSession(xeLLDP)
	r := New(zerolog.Nop(), Deps{RESTCONF: rc, CLI: cliFor(sess)}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.1")
	if res.Device.Status != topology.StatusOK {
		t.Fatalf("expected ok, got %+v (err=%v)", res.Device, res.Err)
	}
	if res.Path != PathSSHTemplate {
		t.Fatalf("path = %q", res.Path)
	}
	if !sameStates(states(res.Trace), StateRestconfOpenConfig, StateSSHAutodetect, StateSSHStructuredParse) {
		t.Fatalf("trace = %v", states(res.Trace))
	}
	d := res.Device
	if d.Hostname != "R1" || d.Dialect != topology.DialectIOSXE || d.Serial != "9ESGOBARV9D" {
		t.Fatalf("device facts = %+v", d)
	}
	if len(d.ChassisIDs) != 2 || d.ChassisIDs[0] != "5254.0019.a2c1" {
		t.Fatalf("chassis ids = %v", d.ChassisIDs)
	}
	if d.Role != "switch" {
		t.Fatalf("role = %q", d.Role)
	}
	if len(d.Neighbors) != 1 || d.Neighbors[0] != sw1 {
		t.Fatalf("neighbors = %+v", d.Neighbors)
	}
	if d.Routes != nil {
		t.Fatalf("routes collected without CollectRoutes: %+v", d.Routes)
	}
	if sess.closed != 1 {
		t.Fatalf("session closed %d times", sess.closed)
	}
}

func TestResolve_PatternMatchesStructuredShape(t *testing.T) {
	var indented strings.Builder
	for _, line := range strings.Split(xeLLDP, "\n") {
		if line != "" {
			indented.WriteString("  ")
		}
		indented.WriteString(line)
		indented.WriteString("\n")
	}
	sess := xeSession(indented.String())
	r := New(zerolog.Nop(), Deps{CLI: cliFor(sess)}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.1")
	if res.Path != PathSSHPattern {
		t.Fatalf("path = %q (trace %v)", res.Path, states(res.Trace))
	}
	if !sameStates(states(res.Trace), StateSSHAutodetect, StateSSHStructuredParse, StateSSHPatternParse) {
		t.Fatalf("trace = %v", states(res.Trace))
	}
	if res.Trace[1].Outcome != OutcomeNotStructured {
		t.Fatalf("structured outcome = %s", res.Trace[1].Outcome)
	}
	if len(res.Device.Neighbors) != 1 || res.Device.Neighbors[0] != sw1 {
		t.Fatalf("neighbors = %+v", res.Device.Neighbors)
	}
}

func TestResolve_UnparseableNeighborsLeavesEmptyList(t *testing.T) {
	sess := xeSession("this is not a neighbor table\n")
	r := New(zerolog.Nop(), Deps{CLI: cliFor(sess)}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.1")
	if res.Device.Status != topology.StatusOK || res.Err != nil {
		t.Fatalf("expected ok with empty neighbors, got %+v err=%v", res.Device, res.Err)
	}
	if res.Device.Neighbors == nil || len(res.Device.Neighbors) != 0 {
		t.Fatalf("neighbors = %#v", res.Device.Neighbors)
	}
	last := res.Trace[len(res.Trace)-1]
	if last.State != StateSSHPatternParse || last.Outcome != OutcomeParseFailed {
		t.Fatalf("last step = %+v", last)
	}
}

func TestResolve_CDPWhenNoLLDPNeighbors(t *testing.T) {
	sess := xeSession("")
	sess.outputs["show cdp neighbors detail"] = xeCDP
	r := New(zerolog.Nop(), Deps{CLI: cliFor(sess)}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.1")
	want := topology.Neighbor{Hostname: "SW2", LocalPort: "GigabitEthernet0/3", NeighborPort: "GigabitEthernet1/0/1", MgmtIPAddress: "10.0.0.20"}
	if len(res.Device.Neighbors) != 1 || res.Device.Neighbors[0] != want {
		t.Fatalf("neighbors = %+v", res.Device.Neighbors)
	}
}

func TestResolve_AuthenticationFailureIsTerminal(t *testing.T) {
	cli := &fakeCLI{dial: func(context.Context, int) (Session, error) {
		return nil, &topology.AuthenticationError{Address: "10.0.0.1", Err: errors.New("unable to authenticate")}
	}}
	walked := false
	sn := &fakeSNMP{collect: func(context.Context, string) (snmp.Result, error) {
		walked = true
		return snmp.Result{}, nil
	}}
	r := New(zerolog.Nop(), Deps{CLI: cli, SNMP: sn}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.1")
	if res.Device.Status != topology.StatusFailed || !topology.IsAuthentication(res.Err) {
		t.Fatalf("expected auth failure, got %+v err=%v", res.Device, res.Err)
	}
	if cli.calls != 1 {
		t.Fatalf("auth failure must not be retried, dialed %d times", cli.calls)
	}
	if walked {
		t.Fatalf("snmp must not run after an authentication failure")
	}
	if res.Device.Address != "10.0.0.1" || res.Device.Hostname != "" {
		t.Fatalf("failed placeholder = %+v", res.Device)
	}
}

func TestResolve_UnreachableRetriesThenFails(t *testing.T) {
	cli := &fakeCLI{dial: func(context.Context, int) (Session, error) { return nil, unreachable("10.0.0.9") }}
	r := New(zerolog.Nop(), Deps{CLI: cli}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.9")
	if res.Device.Status != topology.StatusFailed || !topology.IsConnectivity(res.Err) {
		t.Fatalf("expected connectivity failure, got %+v err=%v", res.Device, res.Err)
	}
	if cli.calls != 2 {
		t.Fatalf("expected one retry, dialed %d times", cli.calls)
	}
}

func TestResolve_SecondDialSucceeds(t *testing.T) {
	sess := xeSession(xeLLDP)
	cli := &fakeCLI{dial: func(_ context.Context, attempt int) (Session, error) {
		if attempt == 1 {
			return nil, unreachable("10.0.0.1")
		}
		return sess, nil
	}}
	r := New(zerolog.Nop(), Deps{CLI: cli}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.1")
	if res.Device.Status != topology.StatusOK || len(res.Device.Neighbors) != 1 {
		t.Fatalf("unexpected result %+v err=%v", res.Device, res.Err)
	}
}

func TestResolve_SNMPAfterSSHUnreachable(t *testing.T) {
	cli := &fakeCLI{dial: func(context.Context, int) (Session, error) { return nil, unreachable("10.0.0.5") }}
	sn := &fakeSNMP{collect: func(context.Context, string) (snmp.Result, error) {
		return snmp.Result{
			SysName:   "leaf5.dc.example",
			SysDescr:  "Cisco NX-OS(tm) nxos.9.3.3.bin, Software (nxos), Nexus 9000",
			Neighbors: []topology.Neighbor{sw1},
		}, nil
	}}
	r := New(zerolog.Nop(), Deps{CLI: cli, SNMP: sn}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.5")
	if res.Device.Status != topology.StatusOK || res.Path != PathSNMP {
		t.Fatalf("unexpected result %+v path=%s err=%v", res.Device, res.Path, res.Err)
	}
	if res.Device.Hostname != "leaf5" || res.Device.Dialect != topology.DialectNXOS {
		t.Fatalf("device = %+v", res.Device)
	}
	if !sameStates(states(res.Trace), StateSSHAutodetect, StateSNMPWalk) {
		t.Fatalf("trace = %v", states(res.Trace))
	}
}

func TestResolve_SessionDropIsFailure(t *testing.T) {
	sess := xeSession(xeLLDP)
	sess.errs = map[string]error{"show lldp neighbors detail": unreachable("10.0.0.1")}
	r := New(zerolog.Nop(), Deps{CLI: cliFor(sess)}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.1")
	if res.Device.Status != topology.StatusFailed {
		t.Fatalf("expected failure, got %+v", res.Device)
	}
	if sess.closed != 1 {
		t.Fatalf("session must be closed on failure, closed %d times", sess.closed)
	}
}

func TestResolve_DeviceTimeout(t *testing.T) {
	cli := &fakeCLI{dial: func(ctx context.Context, _ int) (Session, error) {
		<-ctx.Done()
		return nil, &topology.ConnectivityError{Address: "10.0.0.7", Err: ctx.Err()}
	}}
	r := New(zerolog.Nop(), Deps{CLI: cli}, Options{DeviceTimeout: 50 * time.Millisecond})

	start := time.Now()
	res := r.Resolve(context.Background(), "10.0.0.7")
	if res.Device.Status != topology.StatusFailed {
		t.Fatalf("expected failure, got %+v", res.Device)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", res.Err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("device timeout not enforced, took %s", elapsed)
	}
}

func TestResolve_VendorNativeBranch(t *testing.T) {
	rc := &fakeRESTCONF{
		native:   func(context.Context, string) ([]topology.Neighbor, error) { return []topology.Neighbor{sw1}, nil },
		hostname: func(context.Context, string) (string, error) { return "nx1", nil },
	}
	r := New(zerolog.Nop(), Deps{RESTCONF: rc}, Options{VendorNative: true})

	res := r.Resolve(context.Background(), "10.0.0.3")
	if res.Device.Status != topology.StatusOK || res.Path != PathRESTCONF {
		t.Fatalf("unexpected result %+v err=%v", res.Device, res.Err)
	}
	if !sameStates(states(res.Trace), StateRestconfOpenConfig, StateRestconfVendorNative) {
		t.Fatalf("trace = %v", states(res.Trace))
	}
}

func TestResolve_ReverseDNSWhenNoHostname(t *testing.T) {
	rc := &fakeRESTCONF{lldp: func(context.Context, string) ([]topology.Neighbor, error) { return nil, nil }}
	ptr := &fakePTR{names: []string{"core9.lab.example"}}
	r := New(zerolog.Nop(), Deps{RESTCONF: rc, PTR: ptr}, Options{})

	res := r.Resolve(context.Background(), "10.0.0.9")
	if res.Device.Hostname != "core9" {
		t.Fatalf("hostname = %q", res.Device.Hostname)
	}
	if res.Device.Neighbors == nil {
		t.Fatalf("neighbors must be an empty list, not nil")
	}

	ptr.calls = 0
	rc.hostname = func(context.Context, string) (string, error) { return "core9-real", nil }
	res = r.Resolve(context.Background(), "10.0.0.9")
	if res.Device.Hostname != "core9-real" || ptr.calls != 0 {
		t.Fatalf("device hostname must win without a lookup: %q calls=%d", res.Device.Hostname, ptr.calls)
	}
}

func TestResolve_CollectRoutesAndEnableFailure(t *testing.T) {
	sess := xeSession(xeLLDP)
	sess.enableErr = &topology.AuthenticationError{Address: "10.0.0.1", Err: errors.New("bad secret")}
	r := New(zerolog.Nop(), Deps{CLI: cliFor(sess)}, Options{CollectRoutes: true})

	res := r.Resolve(context.Background(), "10.0.0.1")
	if res.Device.Status != topology.StatusOK {
		t.Fatalf("enable failure must not fail the device: %+v err=%v", res.Device, res.Err)
	}
	if len(res.Device.Routes) != 2 {
		t.Fatalf("routes = %+v", res.Device.Routes)
	}
	if res.Device.Routes[0].Prefix != "10.0.0.0/24" || res.Device.Routes[1].Protocol != "ospf" {
		t.Fatalf("routes = %+v", res.Device.Routes)
	}
}
