// Package snmp collects system facts and LLDP/CDP neighbor tables over SNMPv2c.
package snmp

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/cmoses01/DyaGram/internal/topology"
)

type Config struct {
	Community      string
	Version        string // "2c" (default) | "1"
	Port           uint16
	Timeout        time.Duration
	Retries        int
	MaxRepetitions uint32
}

// Client opens one SNMP session per collection.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.Community) == "" {
		cfg.Community = "public"
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "2c"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.MaxRepetitions == 0 {
		cfg.MaxRepetitions = 10
	}
	return &Client{cfg: cfg}
}

// Walker is the subset of *gosnmp.GoSNMP used for collection.
type Walker interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
}

// Result is everything one collection learned about a device.
type Result struct {
	SysName    string
	SysDescr   string
	ChassisIDs []string
	Neighbors  []topology.Neighbor
}

func (c *Client) connect(ctx context.Context, address string) (*gosnmp.GoSNMP, error) {
	var version gosnmp.SnmpVersion
	switch strings.ToLower(strings.TrimSpace(c.cfg.Version)) {
	case "2c", "v2c":
		version = gosnmp.Version2c
	case "1", "v1":
		version = gosnmp.Version1
	default:
		return nil, fmt.Errorf("unsupported snmp version %q", c.cfg.Version)
	}

	host, port := address, c.cfg.Port
	if h, p, err := net.SplitHostPort(address); err == nil {
		if n, err := strconv.ParseUint(p, 10, 16); err == nil {
			host, port = h, uint16(n)
		}
	}

	s := &gosnmp.GoSNMP{
		Context:        ctx,
		Target:         host,
		Port:           port,
		Community:      c.cfg.Community,
		Version:        version,
		Timeout:        c.cfg.Timeout,
		Retries:        c.cfg.Retries,
		MaxRepetitions: c.cfg.MaxRepetitions,
	}
	if err := s.Connect(); err != nil {
		return nil, &topology.ConnectivityError{Address: address, Err: err}
	}
	return s, nil
}

// Collect reads sysName, sysDescr, the local chassis ID and the LLDP and CDP
// neighbor tables of address.
func (c *Client) Collect(ctx context.Context, address string) (Result, error) {
	s, err := c.connect(ctx, address)
	if err != nil {
		return Result{}, err
	}
	defer s.Conn.Close()
	return collect(ctx, address, s)
}

const (
	oidSysDescr0 = "1.3.6.1.2.1.1.1.0"
	oidSysName0  = "1.3.6.1.2.1.1.5.0"

	oidIfDescr = "1.3.6.1.2.1.2.2.1.2"
	oidIfName  = "1.3.6.1.2.1.31.1.1.1.1"

	oidLLDPLocChassisID = "1.0.8802.1.1.2.1.3.2.0"
	oidLLDPLocPortID    = "1.0.8802.1.1.2.1.3.7.1.3"
	oidLLDPLocPortDesc  = "1.0.8802.1.1.2.1.3.7.1.4"

	oidLLDPRemChassisID = "1.0.8802.1.1.2.1.4.1.1.5"
	oidLLDPRemPortID    = "1.0.8802.1.1.2.1.4.1.1.7"
	oidLLDPRemPortDesc  = "1.0.8802.1.1.2.1.4.1.1.8"
	oidLLDPRemSysName   = "1.0.8802.1.1.2.1.4.1.1.9"

	oidCDPCacheAddress    = "1.3.6.1.4.1.9.9.23.1.2.1.1.4"
	oidCDPCacheDeviceID   = "1.3.6.1.4.1.9.9.23.1.2.1.1.6"
	oidCDPCacheDevicePort = "1.3.6.1.4.1.9.9.23.1.2.1.1.7"
)

func collect(ctx context.Context, address string, w Walker) (Result, error) {
	pkt, err := w.Get([]string{oidSysName0, oidSysDescr0, oidLLDPLocChassisID})
	if err != nil {
		return Result{}, &topology.ConnectivityError{Address: address, Err: err}
	}
	var res Result
	for _, v := range pkt.Variables {
		switch trimDot(v.Name) {
		case oidSysName0:
			res.SysName = pduString(v)
		case oidSysDescr0:
			res.SysDescr = pduString(v)
		case oidLLDPLocChassisID:
			if mac := pduMAC(v); mac != "" {
				res.ChassisIDs = []string{mac}
			}
		}
	}
	if res.SysName == "" && res.SysDescr == "" {
		return Result{}, fmt.Errorf("%w: %s answered without system group", topology.ErrProtocolUnsupported, address)
	}

	lldp, err := walkLLDP(ctx, address, w)
	if err != nil {
		return Result{}, err
	}
	res.Neighbors = lldp
	if len(res.Neighbors) == 0 {
		cdp, err := walkCDP(ctx, address, w)
		if err != nil {
			return Result{}, err
		}
		res.Neighbors = cdp
	}
	return res, nil
}

// walkIndexed walks base and hands each row's trailing n index components to fn.
func walkIndexed(ctx context.Context, address string, w Walker, base string, n int, fn func(idx []int, p gosnmp.SnmpPDU)) error {
	if err := ctx.Err(); err != nil {
		return &topology.ConnectivityError{Address: address, Err: err}
	}
	pdus, err := w.BulkWalkAll(base)
	if err != nil {
		return &topology.ConnectivityError{Address: address, Err: err}
	}
	for _, p := range pdus {
		idx, ok := lastOIDInts(p.Name, n)
		if !ok {
			continue
		}
		fn(idx, p)
	}
	return nil
}

type lldpKey struct {
	localPort int
	remIndex  int
}

func walkLLDP(ctx context.Context, address string, w Walker) ([]topology.Neighbor, error) {
	localPorts := make(map[int]string)
	if err := walkIndexed(ctx, address, w, oidLLDPLocPortID, 1, func(idx []int, p gosnmp.SnmpPDU) {
		localPorts[idx[0]] = pduString(p)
	}); err != nil {
		return nil, err
	}
	if err := walkIndexed(ctx, address, w, oidLLDPLocPortDesc, 1, func(idx []int, p gosnmp.SnmpPDU) {
		if localPorts[idx[0]] == "" {
			localPorts[idx[0]] = pduString(p)
		}
	}); err != nil {
		return nil, err
	}

	rows := make(map[lldpKey]*topology.Neighbor)
	row := func(idx []int) *topology.Neighbor {
		k := lldpKey{localPort: idx[0], remIndex: idx[1]}
		if n, ok := rows[k]; ok {
			return n
		}
		n := &topology.Neighbor{LocalPort: localPorts[idx[0]]}
		rows[k] = n
		return n
	}

	// Rows are indexed by timeMark.localPortNum.remIndex.
	walks := []struct {
		oid string
		fn  func(n *topology.Neighbor, p gosnmp.SnmpPDU)
	}{
		{oidLLDPRemSysName, func(n *topology.Neighbor, p gosnmp.SnmpPDU) { n.Hostname = pduString(p) }},
		{oidLLDPRemPortID, func(n *topology.Neighbor, p gosnmp.SnmpPDU) { n.NeighborPort = pduString(p) }},
		{oidLLDPRemPortDesc, func(n *topology.Neighbor, p gosnmp.SnmpPDU) {
			if n.NeighborPort == "" {
				n.NeighborPort = pduString(p)
			}
		}},
		{oidLLDPRemChassisID, func(n *topology.Neighbor, p gosnmp.SnmpPDU) { n.ChassisID = pduMAC(p) }},
	}
	for _, wk := range walks {
		fn := wk.fn
		if err := walkIndexed(ctx, address, w, wk.oid, 2, func(idx []int, p gosnmp.SnmpPDU) {
			fn(row(idx), p)
		}); err != nil {
			return nil, err
		}
	}
	return sortedNeighbors(rows), nil
}

type cdpKey struct {
	ifIndex   int
	deviceIdx int
}

func walkCDP(ctx context.Context, address string, w Walker) ([]topology.Neighbor, error) {
	ifNames := make(map[int]string)
	if err := walkIndexed(ctx, address, w, oidIfName, 1, func(idx []int, p gosnmp.SnmpPDU) {
		ifNames[idx[0]] = pduString(p)
	}); err != nil {
		return nil, err
	}
	if len(ifNames) == 0 {
		if err := walkIndexed(ctx, address, w, oidIfDescr, 1, func(idx []int, p gosnmp.SnmpPDU) {
			ifNames[idx[0]] = pduString(p)
		}); err != nil {
			return nil, err
		}
	}

	rows := make(map[cdpKey]*topology.Neighbor)
	row := func(idx []int) *topology.Neighbor {
		k := cdpKey{ifIndex: idx[0], deviceIdx: idx[1]}
		if n, ok := rows[k]; ok {
			return n
		}
		local := ifNames[idx[0]]
		if local == "" {
			local = strconv.Itoa(idx[0])
		}
		n := &topology.Neighbor{LocalPort: local}
		rows[k] = n
		return n
	}

	if err := walkIndexed(ctx, address, w, oidCDPCacheDeviceID, 2, func(idx []int, p gosnmp.SnmpPDU) {
		name := pduString(p)
		// Strip the serial suffix NX-OS appends: "switch(FOC1234)".
		if i := strings.IndexByte(name, '('); i > 0 {
			name = name[:i]
		}
		row(idx).Hostname = name
	}); err != nil {
		return nil, err
	}
	if err := walkIndexed(ctx, address, w, oidCDPCacheDevicePort, 2, func(idx []int, p gosnmp.SnmpPDU) {
		row(idx).NeighborPort = pduString(p)
	}); err != nil {
		return nil, err
	}
	if err := walkIndexed(ctx, address, w, oidCDPCacheAddress, 2, func(idx []int, p gosnmp.SnmpPDU) {
		if b, ok := pduBytes(p); ok {
			if ip, ok := parseCDPAddress(b); ok {
				row(idx).MgmtIPAddress = ip
			}
		}
	}); err != nil {
		return nil, err
	}
	return sortedNeighbors(rows), nil
}

// sortedNeighbors drops rows without a remote identity and orders the rest by
// local port then hostname, so repeated walks produce identical lists.
func sortedNeighbors[K comparable](rows map[K]*topology.Neighbor) []topology.Neighbor {
	out := make([]topology.Neighbor, 0, len(rows))
	for _, n := range rows {
		if n.Hostname == "" && n.ChassisID == "" {
			continue
		}
		out = append(out, n.Normalize())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocalPort != out[j].LocalPort {
			return out[i].LocalPort < out[j].LocalPort
		}
		if out[i].Hostname != out[j].Hostname {
			return out[i].Hostname < out[j].Hostname
		}
		return out[i].NeighborPort < out[j].NeighborPort
	})
	return out
}
