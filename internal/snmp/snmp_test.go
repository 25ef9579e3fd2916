package snmp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gosnmp/gosnmp"

	"github.com/cmoses01/DyaGram/internal/topology"
)

type fakeWalker struct {
	get   map[string]any
	walks map[string][]gosnmp.SnmpPDU
	err   error
}

func (f *fakeWalker) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	if f.err != nil {
		return nil, f.err
	}
	pkt := &gosnmp.SnmpPacket{}
	for _, oid := range oids {
		v, ok := f.get[oid]
		if !ok {
			pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.NoSuchObject})
			continue
		}
		pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.OctetString, Value: v})
	}
	return pkt, nil
}

func (f *fakeWalker) BulkWalkAll(root string) ([]gosnmp.SnmpPDU, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.walks[root], nil
}

func octets(oid string, v any) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.OctetString, Value: v}
}

func TestCollect_LLDPTable(t *testing.T) {
	t.Parallel()

	w := &fakeWalker{
		get: map[string]any{
			oidSysName0:         []byte("core1"),
			oidSysDescr0:        []byte("Cisco IOS XE Software, Version 17.9.4"),
			oidLLDPLocChassisID: []byte{0x52, 0x54, 0x00, 0x19, 0xa2, 0xc1},
		},
		walks: map[string][]gosnmp.SnmpPDU{
			oidLLDPLocPortID: {
				octets(oidLLDPLocPortID+".1", []byte("Gi1")),
				octets(oidLLDPLocPortID+".2", []byte("Gi2")),
			},
			oidLLDPRemSysName: {
				octets(oidLLDPRemSysName+".0.2.1", []byte("dist2")),
				octets(oidLLDPRemSysName+".0.1.1", []byte("dist1")),
			},
			oidLLDPRemPortID: {
				octets(oidLLDPRemPortID+".0.1.1", []byte("Gi0/0/1")),
				octets(oidLLDPRemPortID+".0.2.1", []byte("Eth1/1")),
			},
			oidLLDPRemChassisID: {
				octets(oidLLDPRemChassisID+".0.1.1", []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}),
			},
		},
	}

	res, err := collect(context.Background(), "10.0.0.1", w)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.SysName != "core1" || !strings.Contains(res.SysDescr, "IOS XE") {
		t.Fatalf("unexpected system facts: %+v", res)
	}
	if len(res.ChassisIDs) != 1 || res.ChassisIDs[0] != "5254.0019.a2c1" {
		t.Fatalf("chassis ids = %v", res.ChassisIDs)
	}
	want := []topology.Neighbor{
		{Hostname: "dist1", LocalPort: "Gi1", NeighborPort: "Gi0/0/1", ChassisID: "aabb.ccdd.ee01"},
		{Hostname: "dist2", LocalPort: "Gi2", NeighborPort: "Eth1/1"},
	}
	if len(res.Neighbors) != len(want) {
		t.Fatalf("neighbors = %+v", res.Neighbors)
	}
	for i := range want {
		if res.Neighbors[i] != want[i] {
			t.Fatalf("neighbor %d = %+v, want %+v", i, res.Neighbors[i], want[i])
		}
	}
}

func TestCollect_FallsBackToCDP(t *testing.T) {
	t.Parallel()

	w := &fakeWalker{
		get: map[string]any{oidSysName0: []byte("leaf1")},
		walks: map[string][]gosnmp.SnmpPDU{
			oidIfName: {octets(oidIfName+".10", []byte("Eth1/49"))},
			oidCDPCacheDeviceID: {
				octets(oidCDPCacheDeviceID+".10.3", []byte("spine1(FDO1234)")),
			},
			oidCDPCacheDevicePort: {
				octets(oidCDPCacheDevicePort+".10.3", []byte("Ethernet1/1")),
			},
			oidCDPCacheAddress: {
				octets(oidCDPCacheAddress+".10.3", []byte{10, 1, 1, 2}),
			},
		},
	}

	res, err := collect(context.Background(), "10.0.0.2", w)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(res.Neighbors) != 1 {
		t.Fatalf("neighbors = %+v", res.Neighbors)
	}
	got := res.Neighbors[0]
	want := topology.Neighbor{Hostname: "spine1", LocalPort: "Eth1/49", NeighborPort: "Ethernet1/1", MgmtIPAddress: "10.1.1.2"}
	if got != want {
		t.Fatalf("neighbor = %+v, want %+v", got, want)
	}
}

func TestCollect_TransportErrorIsConnectivity(t *testing.T) {
	t.Parallel()

	_, err := collect(context.Background(), "10.0.0.3", &fakeWalker{err: errors.New("request timeout (after 1 retries)")})
	if !topology.IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestCollect_NoSystemGroupIsUnsupported(t *testing.T) {
	t.Parallel()

	_, err := collect(context.Background(), "10.0.0.4", &fakeWalker{})
	if !errors.Is(err, topology.ErrProtocolUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestCollect_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &fakeWalker{get: map[string]any{oidSysName0: []byte("r1")}}
	_, err := collect(ctx, "10.0.0.5", w)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLastOIDInts(t *testing.T) {
	t.Parallel()

	got, ok := lastOIDInts(".1.0.8802.1.1.2.1.4.1.1.9.0.7.2", 2)
	if !ok || got[0] != 7 || got[1] != 2 {
		t.Fatalf("got %v %v", got, ok)
	}
	if _, ok := lastOIDInts("1.3.x", 1); ok {
		t.Fatalf("expected non-numeric index to fail")
	}
	if _, ok := lastOIDInts("", 1); ok {
		t.Fatalf("expected empty oid to fail")
	}
}

func TestParseCDPAddress(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   []byte
		want string
		ok   bool
	}{
		{[]byte{192, 168, 1, 1}, "192.168.1.1", true},
		{[]byte{1, 4, 10, 0, 0, 9}, "10.0.0.9", true},
		{[]byte{9, 4, 10, 0, 0, 9}, "", false},
		{[]byte{1}, "", false},
	}
	for _, tc := range cases {
		got, ok := parseCDPAddress(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseCDPAddress(%v) = %q %v, want %q %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{})
	if c.cfg.Community != "public" || c.cfg.Version != "2c" || c.cfg.Port != 161 || c.cfg.MaxRepetitions != 10 {
		t.Fatalf("unexpected defaults: %+v", c.cfg)
	}
}
