package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cmoses01/DyaGram/internal/discovery"
	"github.com/cmoses01/DyaGram/internal/discoveryworker"
	"github.com/cmoses01/DyaGram/internal/state"
	"github.com/cmoses01/DyaGram/internal/topology"
)

func TestPrintRun_Unchanged(t *testing.T) {
	var buf bytes.Buffer
	printRun(&buf, discovery.Run{Result: state.ResultUnchanged})
	if got := buf.String(); got != "NO CHANGES IN STATE!\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestPrintRun_ChangedShowsBothSnapshots(t *testing.T) {
	baseline := topology.Snapshot{Devices: []topology.Device{{Hostname: "R1", Address: "10.0.0.1", Status: topology.StatusOK, Neighbors: []topology.Neighbor{}}}}
	added := topology.Neighbor{Hostname: "SW2", LocalPort: "Gi0/3", NeighborPort: "Gi0/1"}
	current := topology.Snapshot{Devices: []topology.Device{{Hostname: "R1", Address: "10.0.0.1", Status: topology.StatusOK, Neighbors: []topology.Neighbor{added}}}}

	var buf bytes.Buffer
	printRun(&buf, discovery.Run{
		Result:   state.ResultChanged,
		Changed:  true,
		Baseline: baseline,
		Current:  current,
		Diff:     topology.Compare(baseline, current),
		Failures: []discoveryworker.Failure{{Address: "10.0.0.9", State: "failed", Reason: "connection refused"}},
	})

	out := buf.String()
	for _, want := range []string{
		"CHANGES DETECTED!",
		"+ neighbor SW2 Gi0/3 <-> Gi0/1",
		"Baseline state:",
		"Current state:",
		"rerun with --accept",
		"10.0.0.9 (failed): connection refused",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"discover": false, "serve": false, "watch": false, "init": false, "site": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected %q command", name)
		}
	}
}
