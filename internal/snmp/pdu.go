package snmp

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

func trimDot(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

func lastOIDInts(oid string, n int) ([]int, bool) {
	oid = trimDot(oid)
	if oid == "" || n <= 0 {
		return nil, false
	}
	parts := strings.Split(oid, ".")
	if len(parts) < n {
		return nil, false
	}
	out := make([]int, 0, n)
	for _, part := range parts[len(parts)-n:] {
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func pduBytes(p gosnmp.SnmpPDU) ([]byte, bool) {
	switch v := p.Value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

func pduString(p gosnmp.SnmpPDU) string {
	b, ok := pduBytes(p)
	if !ok {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// pduMAC renders a 6-byte octet string in Cisco dotted notation
// (aabb.ccdd.eeff). Other encodings are returned as trimmed text.
func pduMAC(p gosnmp.SnmpPDU) string {
	b, ok := pduBytes(p)
	if !ok || len(b) == 0 {
		return ""
	}
	if len(b) != 6 {
		return strings.TrimSpace(string(b))
	}
	hw := net.HardwareAddr(b)
	if hw.String() == "00:00:00:00:00:00" {
		return ""
	}
	return fmt.Sprintf("%02x%02x.%02x%02x.%02x%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

// parseCDPAddress decodes cdpCacheAddress. Agents send either the raw
// address bytes or a type(1) length(1) address(n) encoding.
func parseCDPAddress(b []byte) (string, bool) {
	switch len(b) {
	case 4, 16:
		return net.IP(b).String(), true
	}
	if len(b) < 6 {
		return "", false
	}
	typ, l := b[0], int(b[1])
	if l <= 0 || len(b) < 2+l {
		return "", false
	}
	addr := b[2 : 2+l]
	switch {
	case typ == 1 && l == 4, typ == 2 && l == 16:
		return net.IP(addr).String(), true
	}
	return "", false
}
