package topology

import (
	"sort"
	"strings"
)

// Dialect identifies the network OS family a device runs.
type Dialect string

const (
	DialectIOSXE   Dialect = "ios_xe"
	DialectNXOS    Dialect = "nx_os"
	DialectIOSXR   Dialect = "ios_xr"
	DialectUnknown Dialect = "unknown"
)

// Dialects lists the known dialects in detection order.
func Dialects() []Dialect {
	return []Dialect{DialectIOSXE, DialectNXOS, DialectIOSXR}
}

// ParseDialect maps loose spellings ("cisco_xe", "nxos", "IOS-XR") onto a Dialect.
func ParseDialect(s string) Dialect {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	v = strings.TrimPrefix(v, "cisco_")
	switch v {
	case "ios_xe", "xe", "iosxe", "ios":
		return DialectIOSXE
	case "nx_os", "nxos", "nexus":
		return DialectNXOS
	case "ios_xr", "xr", "iosxr":
		return DialectIOSXR
	default:
		return DialectUnknown
	}
}

func (d Dialect) Known() bool {
	switch d {
	case DialectIOSXE, DialectNXOS, DialectIOSXR:
		return true
	default:
		return false
	}
}

func (d Dialect) String() string { return string(d) }

// Status reports whether discovery of a device completed.
type Status string

const (
	StatusPending Status = "pending"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Neighbor is one adjacency reported by a device.
type Neighbor struct {
	Hostname      string `json:"hostname"`
	LocalPort     string `json:"local_port"`
	NeighborPort  string `json:"neighbor_port"`
	ChassisID     string `json:"chassis_id"`
	MgmtIPAddress string `json:"mgmt_ip_address,omitempty"`
}

// Normalize trims whitespace left over from text extraction.
func (n Neighbor) Normalize() Neighbor {
	n.Hostname = strings.TrimSpace(n.Hostname)
	n.LocalPort = strings.TrimSpace(n.LocalPort)
	n.NeighborPort = strings.TrimSpace(n.NeighborPort)
	n.ChassisID = strings.TrimSpace(n.ChassisID)
	n.MgmtIPAddress = strings.TrimSpace(n.MgmtIPAddress)
	return n
}

func (n Neighbor) key() string {
	return n.LocalPort + "\x00" + n.Hostname + "\x00" + n.NeighborPort
}

// Route is one entry of a device routing table.
type Route struct {
	VRF       string `json:"vrf"`
	Prefix    string `json:"prefix"`
	Protocol  string `json:"protocol"`
	NextHop   string `json:"next_hop,omitempty"`
	Interface string `json:"interface,omitempty"`
}

// Device is the topology of a single inventory address.
type Device struct {
	Hostname   string     `json:"hostname"`
	Address    string     `json:"address"`
	Serial     string     `json:"serial,omitempty"`
	ChassisIDs []string   `json:"chassis_ids,omitempty"`
	Role       string     `json:"role,omitempty"`
	Dialect    Dialect    `json:"dialect,omitempty"`
	Status     Status     `json:"status"`
	Neighbors  []Neighbor `json:"neighbors"`
	Routes     []Route    `json:"routes,omitempty"`
}

// Key identifies a device across snapshots.
func (d Device) Key() string {
	if d.Address != "" {
		return d.Address
	}
	return d.Hostname
}

// Snapshot is the assembled topology of a site.
type Snapshot struct {
	Devices []Device `json:"devices"`
}

// Device returns the device with the given key.
func (s Snapshot) Device(key string) (Device, bool) {
	for _, d := range s.Devices {
		if d.Key() == key {
			return d, true
		}
	}
	return Device{}, false
}

// Failed returns the addresses of devices that could not be discovered.
func (s Snapshot) Failed() []string {
	var out []string
	for _, d := range s.Devices {
		if d.Status == StatusFailed {
			out = append(out, d.Address)
		}
	}
	return out
}

// SortDevices orders devices by hostname, ties broken by address.
func SortDevices(devices []Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].Hostname != devices[j].Hostname {
			return devices[i].Hostname < devices[j].Hostname
		}
		return devices[i].Address < devices[j].Address
	})
}

// SortRoutes orders routes by VRF, prefix, next hop and interface.
func SortRoutes(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if a.VRF != b.VRF {
			return a.VRF < b.VRF
		}
		if a.Prefix != b.Prefix {
			return a.Prefix < b.Prefix
		}
		if a.NextHop != b.NextHop {
			return a.NextHop < b.NextHop
		}
		return a.Interface < b.Interface
	})
}
