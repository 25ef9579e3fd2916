package extract

import (
	"regexp"

	"github.com/cmoses01/DyaGram/internal/topology"
)

// Field names a value pulled out of one neighbor block.
type Field string

const (
	FieldSystemName        Field = "system_name"
	FieldLocalInterface    Field = "local_interface"
	FieldNeighborInterface Field = "neighbor_interface"
	FieldChassisID         Field = "chassis_id"
	FieldMgmtAddress       Field = "mgmt_address"
)

// BlockGrammar describes how to cut command output into per-neighbor blocks
// and which expressions pull each field out of a block.
type BlockGrammar struct {
	// Anchor matches the first line of every block.
	Anchor *regexp.Regexp
	// Fields maps each field to an expression with one capture group.
	Fields map[Field]*regexp.Regexp
	// Required fields must be present for a block to produce a record.
	Required []Field
}

// Grammar is everything the CLI path needs to know about one dialect.
type Grammar struct {
	Dialect topology.Dialect

	VersionCommand  string
	HostnameCommand string
	ChassisCommand  string
	RouteCommand    string

	LLDPCommand  string
	LLDPTemplate *Template
	LLDPBlocks   BlockGrammar

	CDPCommand  string
	CDPTemplate *Template
	CDPBlocks   BlockGrammar
}

// Table is an immutable dialect to grammar mapping.
type Table struct {
	grammars map[topology.Dialect]Grammar
}

// NewTable builds a table from the given grammars, keyed by their dialect.
func NewTable(grammars ...Grammar) Table {
	m := make(map[topology.Dialect]Grammar, len(grammars))
	for _, g := range grammars {
		m[g.Dialect] = g
	}
	return Table{grammars: m}
}

// Lookup returns the grammar for d.
func (t Table) Lookup(d topology.Dialect) (Grammar, bool) {
	g, ok := t.grammars[d]
	return g, ok
}

// Dialects returns the dialects present in the table in detection order.
func (t Table) Dialects() []topology.Dialect {
	var out []topology.Dialect
	for _, d := range topology.Dialects() {
		if _, ok := t.grammars[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

var (
	reLine = func(label string) *regexp.Regexp {
		return regexp.MustCompile(`(?m)^[ \t]*` + label + `[ \t]*(.*?)[ \t]*$`)
	}
	reIPv4Line = func(label string) *regexp.Regexp {
		return regexp.MustCompile(`(?m)^[ \t]*` + label + `[ \t]*(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)
	}
)

var cdpBlocks = BlockGrammar{
	Anchor: regexp.MustCompile(`(?m)^[ \t]*Device ID:`),
	Fields: map[Field]*regexp.Regexp{
		FieldSystemName:        regexp.MustCompile(`(?m)^[ \t]*Device ID:[ \t]*([^\s(]+)`),
		FieldLocalInterface:    regexp.MustCompile(`(?m)^[ \t]*Interface:[ \t]*([^,\s]+),`),
		FieldNeighborInterface: regexp.MustCompile(`(?m)Port ID[^:]*:[ \t]*(\S+)`),
		FieldMgmtAddress:       regexp.MustCompile(`(?m)^[ \t]*M(?:gmt|anagement) address(?:\(es\))?:[ \t]*\n[ \t]*(?:IP|IPv4) [Aa]ddress:[ \t]*(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`),
	},
	Required: []Field{FieldSystemName, FieldLocalInterface, FieldNeighborInterface},
}

// DefaultTable returns the built-in grammars for the supported dialects.
func DefaultTable() Table {
	return NewTable(
		Grammar{
			Dialect:         topology.DialectIOSXE,
			VersionCommand:  "show version",
			HostnameCommand: "show running-config | include hostname",
			ChassisCommand:  "show interfaces | include bia",
			RouteCommand:    "show ip route vrf *",
			LLDPCommand:     "show lldp neighbors detail",
			LLDPTemplate:    MustTemplate(iosXELLDPTemplate),
			LLDPBlocks: BlockGrammar{
				Anchor: regexp.MustCompile(`(?m)^[ \t]*Local Intf:`),
				Fields: map[Field]*regexp.Regexp{
					FieldSystemName:        reLine(`System Name:`),
					FieldLocalInterface:    reLine(`Local Intf:`),
					FieldNeighborInterface: reLine(`Port id:`),
					FieldChassisID:         reLine(`Chassis id:`),
					FieldMgmtAddress:       reIPv4Line(`IP:`),
				},
				Required: []Field{FieldLocalInterface, FieldNeighborInterface},
			},
			CDPCommand:  "show cdp neighbors detail",
			CDPTemplate: MustTemplate(cdpTemplate),
			CDPBlocks:   cdpBlocks,
		},
		Grammar{
			Dialect:         topology.DialectNXOS,
			VersionCommand:  "show version",
			HostnameCommand: "show running-config | include hostname",
			ChassisCommand:  "show interface | include bia",
			RouteCommand:    "show ip route vrf all",
			LLDPCommand:     "show lldp neighbors detail",
			LLDPTemplate:    MustTemplate(nxosLLDPTemplate),
			LLDPBlocks: BlockGrammar{
				Anchor: regexp.MustCompile(`(?m)^[ \t]*Chassis id:`),
				Fields: map[Field]*regexp.Regexp{
					FieldSystemName:        reLine(`System Name:`),
					FieldLocalInterface:    reLine(`Local Port id:`),
					FieldNeighborInterface: reLine(`Port id:`),
					FieldChassisID:         reLine(`Chassis id:`),
					FieldMgmtAddress:       reIPv4Line(`Management Address:`),
				},
				Required: []Field{FieldLocalInterface, FieldNeighborInterface},
			},
			CDPCommand:  "show cdp neighbors detail",
			CDPTemplate: MustTemplate(cdpTemplate),
			CDPBlocks:   cdpBlocks,
		},
		Grammar{
			Dialect:         topology.DialectIOSXR,
			VersionCommand:  "show version",
			HostnameCommand: "show running-config hostname",
			ChassisCommand:  "show lldp",
			RouteCommand:    "show route vrf all",
			LLDPCommand:     "show lldp neighbors detail",
			LLDPTemplate:    MustTemplate(iosXRLLDPTemplate),
			LLDPBlocks: BlockGrammar{
				Anchor: regexp.MustCompile(`(?m)^[ \t]*Local Interface:`),
				Fields: map[Field]*regexp.Regexp{
					FieldSystemName:        reLine(`System Name:`),
					FieldLocalInterface:    reLine(`Local Interface:`),
					FieldNeighborInterface: reLine(`Port id:`),
					FieldChassisID:         reLine(`Chassis id:`),
					FieldMgmtAddress:       reIPv4Line(`IPv4 address:`),
				},
				Required: []Field{FieldLocalInterface, FieldNeighborInterface},
			},
			CDPCommand:  "show cdp neighbors detail",
			CDPTemplate: MustTemplate(cdpTemplate),
			CDPBlocks:   cdpBlocks,
		},
	)
}
