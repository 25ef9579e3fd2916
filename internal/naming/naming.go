// Package naming picks the hostname recorded for a device from the names
// the different discovery paths reported.
package naming

import (
	"sort"
	"strings"
)

const (
	SourceRESTCONF   = "restconf"
	SourceCLI        = "cli"
	SourceSNMP       = "snmp"
	SourceReverseDNS = "reverse_dns"
)

// minScore is the quality bar a candidate must clear to become the hostname.
const minScore = 60

type Candidate struct {
	Name   string
	Source string
}

type scoredCandidate struct {
	Source string
	Name   string
	Score  int
}

// Normalize cleans a raw name reported by source. Names learned from the
// device's own configuration keep their spelling; names from SNMP and DNS are
// lowercased and reduced to their first label so they line up with the
// configured hostname.
func Normalize(source, rawName string) (name string, score int, ok bool) {
	source = strings.ToLower(strings.TrimSpace(source))
	name = strings.TrimSuffix(strings.TrimSpace(rawName), ".")
	if name == "" {
		return "", 0, false
	}

	switch source {
	case SourceReverseDNS, SourceSNMP:
		if looksGarbage(strings.ToLower(name)) {
			return "", -1, false
		}
		name = strings.ToLower(name)
		if i := strings.IndexByte(name, '.'); i > 0 && !strings.ContainsAny(name, " \t") {
			name = name[:i]
		}
	}

	score = scoreCandidate(source, name)
	if score < 0 {
		return name, score, false
	}
	return name, score, true
}

// Choose returns the best hostname among candidates.
func Choose(candidates []Candidate) (string, bool) {
	best := scoredCandidate{Score: -1_000_000}
	for _, c := range candidates {
		name, score, ok := Normalize(c.Source, c.Name)
		if !ok || score < minScore {
			continue
		}
		next := scoredCandidate{Source: c.Source, Name: name, Score: score}
		if better(next, best) {
			best = next
		}
	}
	if best.Score < minScore || best.Name == "" {
		return "", false
	}
	return best.Name, true
}

// Rank orders candidates best first. Rejected candidates sort last.
func Rank(candidates []Candidate) []Candidate {
	type ranked struct {
		orig  Candidate
		name  string
		score int
		ok    bool
	}
	list := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		name, score, ok := Normalize(c.Source, c.Name)
		list = append(list, ranked{orig: c, name: name, score: score, ok: ok})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].ok != list[j].ok {
			return list[i].ok
		}
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].name < list[j].name
	})
	out := make([]Candidate, 0, len(list))
	for _, r := range list {
		out = append(out, r.orig)
	}
	return out
}

func better(a, b scoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if len(a.Name) != len(b.Name) {
		return len(a.Name) < len(b.Name)
	}
	return a.Name < b.Name
}

func scoreCandidate(source, name string) int {
	base := 50
	switch source {
	case SourceRESTCONF:
		base = 98
	case SourceCLI:
		base = 96
	case SourceSNMP:
		base = 88
	case SourceReverseDNS:
		base = 80
	}

	if len(name) < 2 {
		base -= 50
	}
	if strings.ContainsAny(name, " \t") {
		base -= 40
	}
	if !looksHostname(name) {
		base -= 20
	}
	return base
}

func looksHostname(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func looksGarbage(normalized string) bool {
	if normalized == "" {
		return true
	}
	if strings.Contains(normalized, "in-addr.arpa") || strings.Contains(normalized, "ip6.arpa") {
		return true
	}
	switch normalized {
	case "localhost", "localhost.localdomain", "localdomain":
		return true
	}
	return false
}
