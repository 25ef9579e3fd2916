// Package tagging infers the role of a discovered device from the signals
// collected while resolving it.
package tagging

import (
	"sort"
	"strings"

	"github.com/cmoses01/DyaGram/internal/topology"
)

type Suggestion struct {
	Role       string
	Confidence int
	Evidence   map[string]any
}

// Signals is what discovery learned about a device that hints at its role.
type Signals struct {
	Dialect  topology.Dialect
	Hostname string
	SysDescr string
	Routes   []topology.Route
}

// Role returns the most confident role for s. Devices with no usable signal
// are routers.
func Role(s Signals) string {
	merged := MergeSuggestions(
		SuggestFromDialect(s.Dialect),
		SuggestFromNames([]string{s.Hostname}),
		SuggestFromSNMP(s.SysDescr),
		SuggestFromRoutes(s.Routes),
	)
	if len(merged) == 0 {
		return RoleRouter
	}
	return merged[0].Role
}

func MergeSuggestions(groups ...[]Suggestion) []Suggestion {
	byRole := make(map[string]Suggestion)

	for _, group := range groups {
		for _, s := range group {
			role := NormalizeRole(s.Role)
			if !IsValidRole(role) || s.Confidence <= 0 {
				continue
			}

			existing, ok := byRole[role]
			if !ok || s.Confidence > existing.Confidence {
				s.Role = role
				byRole[role] = s
				continue
			}
			if s.Evidence != nil {
				if existing.Evidence == nil {
					existing.Evidence = map[string]any{}
				}
				for k, v := range s.Evidence {
					existing.Evidence[k] = v
				}
				byRole[role] = existing
			}
		}
	}

	out := make([]Suggestion, 0, len(byRole))
	for _, v := range byRole {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Role < out[j].Role
	})
	return out
}

// SuggestFromDialect encodes the platform default: the IOS-XE and NX-OS
// estates are campus and datacenter switching, IOS-XR is routing.
func SuggestFromDialect(d topology.Dialect) []Suggestion {
	evidence := map[string]any{"signal": "dialect", "dialect": string(d)}
	switch d {
	case topology.DialectNXOS, topology.DialectIOSXE:
		return []Suggestion{{Role: RoleSwitch, Confidence: 60, Evidence: evidence}}
	case topology.DialectIOSXR:
		return []Suggestion{{Role: RoleRouter, Confidence: 60, Evidence: evidence}}
	default:
		return nil
	}
}

func SuggestFromNames(names []string) []Suggestion {
	var out []Suggestion
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}

		tokens := tokenize(name)
		matches := func(set ...string) bool {
			for _, t := range tokens {
				for _, candidate := range set {
					if t == candidate {
						return true
					}
				}
			}
			return false
		}

		add := func(role, match string) {
			out = append(out, Suggestion{
				Role:       role,
				Confidence: 70,
				Evidence:   map[string]any{"signal": "name", "name": raw, "match": match},
			})
		}

		switch {
		case matches("ap", "wap"):
			add(RoleAccessPoint, "ap")
		case matches("wlc"):
			add(RoleWLC, "wlc")
		case matches("sw", "switch", "leaf", "spine", "tor", "access", "dist"):
			add(RoleSwitch, "switch")
		case matches("rtr", "router", "gw", "edge", "pe", "ce", "asbr", "wan"):
			add(RoleRouter, "router")
		case matches("fw", "firewall", "asa", "ftd"):
			add(RoleFirewall, "firewall")
		case matches("lb", "f5", "slb"):
			add(RoleLoadBalancer, "load_balancer")
		}
	}
	return out
}

func SuggestFromSNMP(sysDescr string) []Suggestion {
	descr := strings.ToLower(strings.TrimSpace(sysDescr))
	if descr == "" {
		return nil
	}

	add := func(role, match string, confidence int) Suggestion {
		return Suggestion{
			Role:       role,
			Confidence: confidence,
			Evidence: map[string]any{
				"signal":    "snmp",
				"match":     match,
				"sys_descr": truncate(sysDescr, 240),
			},
		}
	}

	var out []Suggestion
	switch {
	case strings.Contains(descr, "wireless lan controller"):
		out = append(out, add(RoleWLC, "wireless_controller", 92))
	case strings.Contains(descr, "access point"):
		out = append(out, add(RoleAccessPoint, "access_point", 90))
	case strings.Contains(descr, "switch"), strings.Contains(descr, "catalyst"), strings.Contains(descr, "nexus"):
		out = append(out, add(RoleSwitch, "switch", 90))
	case strings.Contains(descr, "router"), strings.Contains(descr, "isr"), strings.Contains(descr, "asr"), strings.Contains(descr, "csr1000v"):
		out = append(out, add(RoleRouter, "router", 88))
	}

	if strings.Contains(descr, "adaptive security appliance") || strings.Contains(descr, "firepower") {
		out = append(out, add(RoleFirewall, "firewall", 92))
	}
	return out
}

// SuggestFromRoutes treats a device that learns routes from a dynamic
// routing protocol as a router.
func SuggestFromRoutes(routes []topology.Route) []Suggestion {
	protocols := make(map[string]struct{})
	for _, r := range routes {
		switch r.Protocol {
		case "bgp", "ospf", "isis", "eigrp", "rip":
			protocols[r.Protocol] = struct{}{}
		}
	}
	if len(protocols) == 0 {
		return nil
	}
	seen := make([]string, 0, len(protocols))
	for p := range protocols {
		seen = append(seen, p)
	}
	sort.Strings(seen)
	confidence := 55
	if _, ok := protocols["bgp"]; ok {
		confidence = 65
	}
	return []Suggestion{{
		Role:       RoleRouter,
		Confidence: confidence,
		Evidence:   map[string]any{"signal": "routes", "protocols": seen},
	}}
}

func tokenize(value string) []string {
	var out []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, buf.String())
		buf.Reset()
	}

	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			buf.WriteRune(r)
		default:
			// Digits end a token too, so "sw01" yields "sw".
			flush()
		}
	}
	flush()
	return out
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 1 {
		return value[:1]
	}
	return value[:limit-1] + "…"
}
