package extract

import (
	"regexp"
	"strings"

	"github.com/cmoses01/DyaGram/internal/topology"
)

var (
	vrfHeaderIOS  = regexp.MustCompile(`^Routing Table:\s*(\S+)`)
	vrfHeaderNXOS = regexp.MustCompile(`^IP Route Table for VRF "([^"]+)"`)
	vrfHeaderXR   = regexp.MustCompile(`^VRF:\s*(\S+)`)

	// "O IA     10.1.1.0/24 [110/2] via 10.0.0.2, 00:01:02, Gi2"
	routeIOS = regexp.MustCompile(`^([A-Za-z*%+]{1,3}(?: [A-Z0-9]{1,2})?\*?)\s+(\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?)\s*(.*)$`)
	// "                 [110/2] via 10.0.0.3, 00:01:02, Gi3"
	routeIOSCont = regexp.MustCompile(`^\s+\[\d+/\d+\]\s+via\s+(.*)$`)
	// "10.10.20.0/24, ubest/mbest: 1/0, attached"
	routeNXOS    = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){3}/\d{1,2}),\s+ubest`)
	routeNXOSVia = regexp.MustCompile(`^\s+\*?via\s+(.*)$`)
	metricField  = regexp.MustCompile(`^\[\d+/\d+\]$`)
)

var protocolCodes = map[string]string{
	"C":      "connected",
	"L":      "local",
	"S":      "static",
	"O":      "ospf",
	"D":      "eigrp",
	"B":      "bgp",
	"R":      "rip",
	"i":      "isis",
	"direct": "connected",
}

// ParseRoutes reads routing table output from any supported dialect. Lines
// that are not routes (codes legend, subnet headers) are skipped.
func ParseRoutes(output string) []topology.Route {
	vrf := "default"
	var out []topology.Route
	var last *topology.Route
	// NX-OS prints the prefix on one line and each next hop below it.
	nxPrefix := ""

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r ")
		if name, ok := vrfHeader(line); ok {
			vrf, last, nxPrefix = name, nil, ""
			continue
		}

		if m := routeNXOS.FindStringSubmatch(line); m != nil {
			nxPrefix, last = m[1], nil
			continue
		}
		if nxPrefix != "" {
			if m := routeNXOSVia.FindStringSubmatch(line); m != nil {
				r := topology.Route{VRF: vrf, Prefix: nxPrefix}
				fillNXOSVia(&r, m[1])
				out = append(out, r)
				continue
			}
			nxPrefix = ""
		}

		if strings.HasPrefix(line, "Codes:") || strings.HasPrefix(line, "Gateway of last resort") {
			continue
		}
		if m := routeIOS.FindStringSubmatch(line); m != nil {
			r := topology.Route{VRF: vrf, Prefix: m[2], Protocol: protocolName(m[1])}
			fillIOSRest(&r, m[3])
			out = append(out, r)
			last = &out[len(out)-1]
			continue
		}
		if m := routeIOSCont.FindStringSubmatch(line); m != nil && last != nil {
			r := topology.Route{VRF: last.VRF, Prefix: last.Prefix, Protocol: last.Protocol}
			fillIOSRest(&r, "via "+m[1])
			out = append(out, r)
			last = &out[len(out)-1]
		}
	}
	return out
}

func vrfHeader(line string) (string, bool) {
	for _, re := range []*regexp.Regexp{vrfHeaderIOS, vrfHeaderNXOS, vrfHeaderXR} {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func protocolName(code string) string {
	code = strings.TrimSuffix(strings.TrimSpace(code), "*")
	first := strings.Fields(code)
	if len(first) == 0 {
		return ""
	}
	if name, ok := protocolCodes[first[0]]; ok {
		return name
	}
	return strings.ToLower(first[0])
}

func fillIOSRest(r *topology.Route, rest string) {
	fields := splitCSV(rest)
	if len(fields) == 0 {
		return
	}
	if strings.HasPrefix(fields[0], "is directly connected") {
		r.Interface = lastInterface(fields)
		return
	}
	head := fields[0]
	if i := strings.Index(head, "via "); i >= 0 {
		r.NextHop = strings.TrimSpace(head[i+4:])
	}
	if len(fields) > 1 {
		r.Interface = lastInterface(fields[1:])
	}
}

func fillNXOSVia(r *topology.Route, rest string) {
	fields := splitCSV(rest)
	if len(fields) == 0 {
		return
	}
	r.NextHop = fields[0]
	metricAt := -1
	for i, f := range fields {
		if metricField.MatchString(f) {
			metricAt = i
			break
		}
	}
	if metricAt > 1 {
		r.Interface = fields[1]
	}
	if metricAt >= 0 && metricAt+2 < len(fields) {
		proto := fields[metricAt+2]
		if i := strings.Index(proto, "-"); i > 0 {
			proto = proto[:i]
		}
		if name, ok := protocolCodes[proto]; ok {
			proto = name
		}
		r.Protocol = proto
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// lastInterface returns the trailing field when it names an interface rather
// than an age or metric.
func lastInterface(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	f := fields[len(fields)-1]
	if f == "" {
		return ""
	}
	c := f[0]
	if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
		if strings.HasPrefix(f, "is directly") {
			return ""
		}
		return f
	}
	return ""
}
