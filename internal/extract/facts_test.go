package extract

import (
	"reflect"
	"testing"

	"github.com/cmoses01/DyaGram/internal/topology"
)

func TestFingerprint(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want topology.Dialect
	}{
		{"xr prompt", "SSH-2.0-Cisco-2.0\nRP/0/RP0/CPU0:xr-1#", topology.DialectIOSXR},
		{"nexus banner", "SSH-2.0-OpenSSH_8.3\nCisco Nexus Operating System (NX-OS) Software\ndist-sw01#", topology.DialectNXOS},
		{"xe banner", "SSH-2.0-Cisco-1.25\nCisco IOS-XE software\ncsr1000v-1#", topology.DialectIOSXE},
		{"bare prompt", "SSH-2.0-Cisco-1.25\nrouter>", topology.DialectUnknown},
	}
	for _, tc := range cases {
		if got := Fingerprint(tc.in); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestDetectVersion(t *testing.T) {
	cases := map[string]topology.Dialect{
		"Cisco IOS XE Software, Version 16.11.01a":               topology.DialectIOSXE,
		"Cisco IOS-XE software, Copyright (c) 2005-2019":         topology.DialectIOSXE,
		"Cisco Nexus Operating System (NX-OS) Software":          topology.DialectNXOS,
		"Cisco IOS XR Software, Version 6.5.3[Default]":          topology.DialectIOSXR,
		"Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M)": topology.DialectUnknown,
	}
	for in, want := range cases {
		if got := DetectVersion(in); got != want {
			t.Fatalf("DetectVersion(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseHostname(t *testing.T) {
	if got := ParseHostname("Building configuration...\nhostname csr1000v-1\n"); got != "csr1000v-1" {
		t.Fatalf("unexpected hostname %q", got)
	}
	if got := ParseHostname("% Invalid input detected"); got != "" {
		t.Fatalf("expected no hostname, got %q", got)
	}
}

func TestParseSerial(t *testing.T) {
	out := "cisco CSR1000V (VXE) processor (revision VXE) with 2392579K/3075K bytes of memory.\nProcessor board ID 9ESGOBARV9D\n"
	if got := ParseSerial(out); got != "9ESGOBARV9D" {
		t.Fatalf("unexpected serial %q", got)
	}
	if got := ParseSerial("Cisco IOS XR Software"); got != "" {
		t.Fatalf("expected empty serial, got %q", got)
	}
}

func TestParseChassisIDs(t *testing.T) {
	out := `GigabitEthernet1 is up, line protocol is up
  Hardware is CSR vNIC, address is 5254.0019.a2c1 (bia 5254.0019.a2c1)
GigabitEthernet2 is up, line protocol is up
  Hardware is CSR vNIC, address is 5254.0019.a2c1 (bia 5254.0019.a2c1)
GigabitEthernet3 is administratively down, line protocol is down
  Hardware is CSR vNIC, address is 5254.001E.0F0D (bia 5254.001E.0F0D)
`
	got := ParseChassisIDs(topology.DialectIOSXE, out)
	want := []string{"5254.0019.a2c1", "5254.001e.0f0d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	xr := "Global LLDP information:\n\tStatus: ACTIVE\n\tLLDP Chassis ID: 0226.5c5a.6b05\n\tLLDP Chassis ID Subtype: 4\n"
	if got := ParseChassisIDs(topology.DialectIOSXR, xr); !reflect.DeepEqual(got, []string{"0226.5c5a.6b05"}) {
		t.Fatalf("unexpected xr chassis ids %v", got)
	}
}
