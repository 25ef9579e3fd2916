package extract

import (
	"regexp"
	"strings"

	"github.com/cmoses01/DyaGram/internal/topology"
)

var (
	xrPrompt     = regexp.MustCompile(`RP/\d+/[^:\s]+:[^\s#>]*[#>]`)
	hostnameLine = regexp.MustCompile(`(?m)^\s*hostname\s+(\S+)`)
	boardID      = regexp.MustCompile(`(?i)board id\s+(\S+)`)
	biaMAC       = regexp.MustCompile(`(?i)bia\s+([0-9a-f]{4}\.[0-9a-f]{4}\.[0-9a-f]{4})`)
	lldpChassis  = regexp.MustCompile(`(?i)chassis id:\s*([0-9a-f][0-9a-f.:\-]+)`)
)

// Fingerprint guesses a dialect from pre-session material: the SSH server
// version, the login banner and the first prompt. It returns
// DialectUnknown when nothing conclusive is present.
func Fingerprint(text string) topology.Dialect {
	switch {
	case xrPrompt.MatchString(text), strings.Contains(text, "IOS XR"), strings.Contains(text, "IOS-XR"):
		return topology.DialectIOSXR
	case strings.Contains(text, "Nexus"), strings.Contains(text, "NX-OS"):
		return topology.DialectNXOS
	case strings.Contains(text, "IOS-XE"), strings.Contains(text, "IOS XE"), strings.Contains(text, "Cisco IOS"):
		return topology.DialectIOSXE
	default:
		return topology.DialectUnknown
	}
}

// DetectVersion identifies the dialect from "show version" output.
func DetectVersion(showVersion string) topology.Dialect {
	switch {
	case strings.Contains(showVersion, "IOS-XE"), strings.Contains(showVersion, "IOS XE"):
		return topology.DialectIOSXE
	case strings.Contains(showVersion, "NX-OS"):
		return topology.DialectNXOS
	case strings.Contains(showVersion, "IOS XR"):
		return topology.DialectIOSXR
	default:
		return topology.DialectUnknown
	}
}

// ParseHostname reads the configured hostname from running-config output.
func ParseHostname(output string) string {
	m := hostnameLine.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseSerial extracts the processor board ID from "show version" output.
func ParseSerial(showVersion string) string {
	m := boardID.FindStringSubmatch(showVersion)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseChassisIDs returns the device's own chassis MAC addresses, in order of
// first appearance and without duplicates.
func ParseChassisIDs(d topology.Dialect, output string) []string {
	if d == topology.DialectIOSXR {
		m := lldpChassis.FindStringSubmatch(output)
		if m == nil {
			return nil
		}
		return []string{strings.ToLower(m[1])}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, m := range biaMAC.FindAllStringSubmatch(output, -1) {
		mac := strings.ToLower(m[1])
		if _, ok := seen[mac]; ok {
			continue
		}
		seen[mac] = struct{}{}
		out = append(out, mac)
	}
	return out
}
