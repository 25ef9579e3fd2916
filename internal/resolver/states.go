package resolver

import (
	"errors"

	"github.com/cmoses01/DyaGram/internal/extract"
	"github.com/cmoses01/DyaGram/internal/topology"
)

// State is a step of the per-device protocol fallback chain.
type State string

const (
	StateRestconfOpenConfig   State = "restconf_openconfig"
	StateRestconfVendorNative State = "restconf_vendor_native"
	StateSSHAutodetect        State = "ssh_autodetect"
	StateSSHStructuredParse   State = "ssh_structured_parse"
	StateSSHPatternParse      State = "ssh_pattern_parse"
	StateSNMPWalk             State = "snmp_walk"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

func (s State) String() string { return string(s) }

// Outcome is the classified result of running one state.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnsupported
	OutcomeAuthFailed
	OutcomeUnreachable
	OutcomeNotStructured
	OutcomeParseFailed
	OutcomeError
)

var outcomeNames = map[Outcome]string{
	OutcomeOK:            "ok",
	OutcomeUnsupported:   "unsupported",
	OutcomeAuthFailed:    "auth_failed",
	OutcomeUnreachable:   "unreachable",
	OutcomeNotStructured: "not_structured",
	OutcomeParseFailed:   "parse_failed",
	OutcomeError:         "error",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Classify maps an error returned by a state onto an Outcome.
func Classify(err error) Outcome {
	var parseErr *topology.ParseError
	switch {
	case err == nil:
		return OutcomeOK
	case topology.IsAuthentication(err):
		return OutcomeAuthFailed
	case topology.IsConnectivity(err):
		return OutcomeUnreachable
	case errors.Is(err, extract.ErrNotStructured):
		return OutcomeNotStructured
	case errors.As(err, &parseErr):
		return OutcomeParseFailed
	case errors.Is(err, topology.ErrProtocolUnsupported):
		return OutcomeUnsupported
	default:
		return OutcomeError
	}
}

// Policy selects the optional edges of the chain.
type Policy struct {
	SkipRestconf bool
	VendorNative bool
	SNMP         bool
}

// Start is the first state a device enters.
func (p Policy) Start() State {
	if p.SkipRestconf {
		return StateSSHAutodetect
	}
	return StateRestconfOpenConfig
}

// Next is the transition function of the fallback chain.
func Next(p Policy, s State, o Outcome) State {
	switch s {
	case StateRestconfOpenConfig:
		if o == OutcomeOK {
			return StateDone
		}
		if p.VendorNative {
			return StateRestconfVendorNative
		}
		return StateSSHAutodetect

	case StateRestconfVendorNative:
		if o == OutcomeOK {
			return StateDone
		}
		return StateSSHAutodetect

	case StateSSHAutodetect:
		switch o {
		case OutcomeOK:
			return StateSSHStructuredParse
		case OutcomeAuthFailed:
			return StateFailed
		}
		if p.SNMP {
			return StateSNMPWalk
		}
		return StateFailed

	case StateSSHStructuredParse:
		switch o {
		case OutcomeOK:
			return StateDone
		case OutcomeAuthFailed, OutcomeUnreachable:
			return StateFailed
		}
		return StateSSHPatternParse

	case StateSSHPatternParse:
		switch o {
		case OutcomeAuthFailed, OutcomeUnreachable:
			return StateFailed
		}
		// Unparseable neighbor output leaves the device with no neighbors.
		return StateDone

	case StateSNMPWalk:
		if o == OutcomeOK {
			return StateDone
		}
		return StateFailed
	}
	return s
}
