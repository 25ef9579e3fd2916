package extract

import (
	"reflect"
	"testing"

	"github.com/cmoses01/DyaGram/internal/topology"
)

func TestParseRoutes_IOSXE(t *testing.T) {
	out := `Codes: L - local, C - connected, S - static, R - RIP, M - mobile, B - BGP
       D - EIGRP, EX - EIGRP external, O - OSPF, IA - OSPF inter area
Gateway of last resort is 10.10.20.254 to network 0.0.0.0

S*    0.0.0.0/0 [1/0] via 10.10.20.254, GigabitEthernet1
      10.0.0.0/8 is variably subnetted, 3 subnets, 2 masks
C        10.10.20.0/24 is directly connected, GigabitEthernet1
L        10.10.20.48/32 is directly connected, GigabitEthernet1
O IA     10.1.1.0/24 [110/2] via 10.0.0.2, 00:01:02, GigabitEthernet2
                     [110/2] via 10.0.0.3, 00:01:02, GigabitEthernet3

Routing Table: MGMT
Gateway of last resort is not set

C        192.168.1.0/24 is directly connected, GigabitEthernet4
`
	got := ParseRoutes(out)
	want := []topology.Route{
		{VRF: "default", Prefix: "0.0.0.0/0", Protocol: "static", NextHop: "10.10.20.254", Interface: "GigabitEthernet1"},
		{VRF: "default", Prefix: "10.10.20.0/24", Protocol: "connected", Interface: "GigabitEthernet1"},
		{VRF: "default", Prefix: "10.10.20.48/32", Protocol: "local", Interface: "GigabitEthernet1"},
		{VRF: "default", Prefix: "10.1.1.0/24", Protocol: "ospf", NextHop: "10.0.0.2", Interface: "GigabitEthernet2"},
		{VRF: "default", Prefix: "10.1.1.0/24", Protocol: "ospf", NextHop: "10.0.0.3", Interface: "GigabitEthernet3"},
		{VRF: "MGMT", Prefix: "192.168.1.0/24", Protocol: "connected", Interface: "GigabitEthernet4"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected\n%+v\ngot\n%+v", want, got)
	}
}

func TestParseRoutes_NXOS(t *testing.T) {
	out := `IP Route Table for VRF "default"
'*' denotes best ucast next-hop
'**' denotes best mcast next-hop

10.10.20.0/24, ubest/mbest: 1/0, attached
    *via 10.10.20.58, mgmt0, [0/0], 3d01h, direct
172.16.0.0/16, ubest/mbest: 2/0
    *via 10.0.0.1, [1/0], 00:10:11, static
    *via 10.0.0.5, Eth1/2, [110/41], 00:10:11, ospf-1, intra

IP Route Table for VRF "management"
0.0.0.0/0, ubest/mbest: 1/0
    *via 10.10.20.254, [1/0], 3d01h, static
`
	got := ParseRoutes(out)
	want := []topology.Route{
		{VRF: "default", Prefix: "10.10.20.0/24", Protocol: "connected", NextHop: "10.10.20.58", Interface: "mgmt0"},
		{VRF: "default", Prefix: "172.16.0.0/16", Protocol: "static", NextHop: "10.0.0.1"},
		{VRF: "default", Prefix: "172.16.0.0/16", Protocol: "ospf", NextHop: "10.0.0.5", Interface: "Eth1/2"},
		{VRF: "management", Prefix: "0.0.0.0/0", Protocol: "static", NextHop: "10.10.20.254"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected\n%+v\ngot\n%+v", want, got)
	}
}

func TestParseRoutes_IOSXR(t *testing.T) {
	out := `VRF: default

Codes: C - connected, S - static, R - RIP, B - BGP, (>) - Diversion path

Gateway of last resort is 10.10.20.254 to network 0.0.0.0

S*   0.0.0.0/0 [1/0] via 10.10.20.254, 3d01h
C    10.10.20.0/24 is directly connected, 3d01h, MgmtEth0/RP0/CPU0/0
`
	got := ParseRoutes(out)
	want := []topology.Route{
		{VRF: "default", Prefix: "0.0.0.0/0", Protocol: "static", NextHop: "10.10.20.254"},
		{VRF: "default", Prefix: "10.10.20.0/24", Protocol: "connected", Interface: "MgmtEth0/RP0/CPU0/0"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected\n%+v\ngot\n%+v", want, got)
	}
}
