package extract

import (
	"strings"

	"github.com/cmoses01/DyaGram/internal/topology"
)

// Protocol selects which neighbor discovery output is being parsed.
type Protocol string

const (
	ProtocolLLDP Protocol = "lldp"
	ProtocolCDP  Protocol = "cdp"
)

// NeighborCommand is the CLI command that lists p neighbors in detail.
func (g Grammar) NeighborCommand(p Protocol) string {
	if p == ProtocolCDP {
		return g.CDPCommand
	}
	return g.LLDPCommand
}

func (g Grammar) template(p Protocol) *Template {
	if p == ProtocolCDP {
		return g.CDPTemplate
	}
	return g.LLDPTemplate
}

func (g Grammar) blocks(p Protocol) BlockGrammar {
	if p == ProtocolCDP {
		return g.CDPBlocks
	}
	return g.LLDPBlocks
}

// Structured parses neighbor output with the dialect's template.
// ErrNotStructured is returned when the template does not fit the output.
func (g Grammar) Structured(p Protocol, output string) ([]topology.Neighbor, error) {
	records, err := g.template(p).Parse(output)
	if err != nil {
		return nil, err
	}
	out := make([]topology.Neighbor, 0, len(records))
	for _, r := range records {
		out = append(out, topology.Neighbor{
			Hostname:      r[valNeighbor],
			LocalPort:     r[valLocalIntf],
			NeighborPort:  r[valNeighborIntf],
			ChassisID:     r[valChassisID],
			MgmtIPAddress: r[valMgmtAddress],
		}.Normalize())
	}
	return out, nil
}

// Pattern parses neighbor output block by block. Non-empty output that holds
// no recognizable block yields a *ParseError.
func (g Grammar) Pattern(p Protocol, output string) ([]topology.Neighbor, ParseReport, error) {
	recs, report := ParseBlocks(g.blocks(p), output)
	if report.Blocks == 0 && strings.TrimSpace(output) != "" {
		return nil, report, &topology.ParseError{
			Dialect: g.Dialect,
			Command: g.NeighborCommand(p),
			Reason:  "no neighbor blocks found",
		}
	}
	return fieldsToNeighbors(recs), report, nil
}

// PatternAny tries every grammar in the table and keeps the one that yields
// the most neighbors. Used when the dialect is unknown.
func (t Table) PatternAny(p Protocol, output string) (topology.Dialect, []topology.Neighbor, ParseReport, error) {
	best := topology.DialectUnknown
	var bestNeighbors []topology.Neighbor
	var bestReport ParseReport
	for _, d := range t.Dialects() {
		g, _ := t.Lookup(d)
		ns, report, err := g.Pattern(p, output)
		if err != nil {
			continue
		}
		if best == topology.DialectUnknown || len(ns) > len(bestNeighbors) {
			best, bestNeighbors, bestReport = d, ns, report
		}
	}
	if best == topology.DialectUnknown && strings.TrimSpace(output) != "" {
		return best, nil, bestReport, &topology.ParseError{
			Dialect: topology.DialectUnknown,
			Reason:  "output matches no known dialect",
		}
	}
	return best, bestNeighbors, bestReport, nil
}

func fieldsToNeighbors(recs []map[Field]string) []topology.Neighbor {
	out := make([]topology.Neighbor, 0, len(recs))
	for _, r := range recs {
		out = append(out, topology.Neighbor{
			Hostname:      r[FieldSystemName],
			LocalPort:     r[FieldLocalInterface],
			NeighborPort:  r[FieldNeighborInterface],
			ChassisID:     r[FieldChassisID],
			MgmtIPAddress: r[FieldMgmtAddress],
		}.Normalize())
	}
	return out
}

// HasNeighbors reports whether output holds at least one p neighbor block.
func (g Grammar) HasNeighbors(p Protocol, output string) bool {
	anchor := g.blocks(p).Anchor
	return anchor != nil && anchor.MatchString(output)
}
