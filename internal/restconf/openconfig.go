package restconf

import (
	"context"
	"errors"
	"strings"

	"github.com/cmoses01/DyaGram/internal/topology"
)

const (
	PathLLDPInterfaces = "openconfig-lldp:lldp/interfaces/"
	PathSystemName     = "openconfig-system:system/config/name"
	PathNXOSName       = "Cisco-NX-OS-device:System/name"
	PathInterfaces     = "openconfig-interfaces:interfaces"
	PathXELLDPEntries  = "Cisco-IOS-XE-lldp-oper:lldp-entries"
)

type lldpNeighborState struct {
	SystemName        string `json:"system-name"`
	PortID            string `json:"port-id"`
	ChassisID         string `json:"chassis-id"`
	ManagementAddress string `json:"management-address"`
}

type lldpInterface struct {
	Name      string `json:"name"`
	Neighbors struct {
		Neighbor []struct {
			ID    string            `json:"id"`
			State lldpNeighborState `json:"state"`
		} `json:"neighbor"`
	} `json:"neighbors"`
}

type lldpInterfaces struct {
	Interface []lldpInterface `json:"interface"`
}

// Devices answer with or without the module prefix on the top-level key.
type lldpDocument struct {
	Plain    *lldpInterfaces `json:"interfaces"`
	Prefixed *lldpInterfaces `json:"openconfig-lldp:interfaces"`
}

// LLDPNeighbors reads LLDP adjacencies from the OpenConfig LLDP model. Every
// neighbor of every interface becomes one record.
func (c *Client) LLDPNeighbors(ctx context.Context, address string) ([]topology.Neighbor, error) {
	var doc lldpDocument
	if err := c.Get(ctx, address, PathLLDPInterfaces, &doc); err != nil {
		return nil, err
	}
	ifaces := doc.Prefixed
	if ifaces == nil {
		ifaces = doc.Plain
	}
	if ifaces == nil {
		return nil, &topology.ParseError{Command: PathLLDPInterfaces, Reason: "response has no interfaces container"}
	}

	out := make([]topology.Neighbor, 0, len(ifaces.Interface))
	for _, iface := range ifaces.Interface {
		for _, n := range iface.Neighbors.Neighbor {
			out = append(out, topology.Neighbor{
				Hostname:      n.State.SystemName,
				LocalPort:     iface.Name,
				NeighborPort:  n.State.PortID,
				ChassisID:     n.State.ChassisID,
				MgmtIPAddress: n.State.ManagementAddress,
			}.Normalize())
		}
	}
	return out, nil
}

// Hostname reads the configured system name, trying OpenConfig first and the
// NX-OS device model second.
func (c *Client) Hostname(ctx context.Context, address string) (string, error) {
	var oc map[string]any
	err := c.Get(ctx, address, PathSystemName, &oc)
	if err == nil {
		if name := firstString(oc, "openconfig-system:name", "name", "hostname"); name != "" {
			return name, nil
		}
	}
	if topology.IsAuthentication(err) {
		return "", err
	}

	var nx map[string]any
	nxErr := c.Get(ctx, address, PathNXOSName, &nx)
	if nxErr != nil {
		if err != nil {
			return "", errors.Join(err, nxErr)
		}
		return "", nxErr
	}
	if name := firstString(nx, "Cisco-NX-OS-device:name", "name"); name != "" {
		return name, nil
	}
	return "", &topology.ParseError{Command: PathNXOSName, Reason: "no name in response"}
}

type interfacesDocument struct {
	Plain    *ocInterfaces `json:"interfaces"`
	Prefixed *ocInterfaces `json:"openconfig-interfaces:interfaces"`
}

type ocInterfaces struct {
	Interface []struct {
		Name     string `json:"name"`
		Ethernet struct {
			State struct {
				HWMACAddress string `json:"hw-mac-address"`
			} `json:"state"`
		} `json:"openconfig-if-ethernet:ethernet"`
		EthernetPlain struct {
			State struct {
				HWMACAddress string `json:"hw-mac-address"`
			} `json:"state"`
		} `json:"ethernet"`
	} `json:"interface"`
}

// ChassisIDs returns the distinct burned-in MAC addresses of the device's
// Ethernet interfaces, in interface order.
func (c *Client) ChassisIDs(ctx context.Context, address string) ([]string, error) {
	var doc interfacesDocument
	if err := c.Get(ctx, address, PathInterfaces, &doc); err != nil {
		return nil, err
	}
	ifaces := doc.Prefixed
	if ifaces == nil {
		ifaces = doc.Plain
	}
	if ifaces == nil {
		return nil, nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, iface := range ifaces.Interface {
		mac := iface.Ethernet.State.HWMACAddress
		if mac == "" {
			mac = iface.EthernetPlain.State.HWMACAddress
		}
		mac = strings.ToLower(strings.TrimSpace(mac))
		if mac == "" {
			continue
		}
		if _, ok := seen[mac]; ok {
			continue
		}
		seen[mac] = struct{}{}
		out = append(out, mac)
	}
	return out, nil
}

type xeLLDPEntries struct {
	Entries *struct {
		Entry []struct {
			DeviceID            string `json:"device-id"`
			LocalInterface      string `json:"local-interface"`
			ConnectingInterface string `json:"connecting-interface"`
		} `json:"lldp-entry"`
	} `json:"Cisco-IOS-XE-lldp-oper:lldp-entries"`
}

// NativeLLDPNeighbors reads LLDP adjacencies from the IOS-XE operational
// model. The model does not carry chassis IDs.
func (c *Client) NativeLLDPNeighbors(ctx context.Context, address string) ([]topology.Neighbor, error) {
	var doc xeLLDPEntries
	if err := c.Get(ctx, address, PathXELLDPEntries, &doc); err != nil {
		return nil, err
	}
	if doc.Entries == nil {
		return nil, &topology.ParseError{Command: PathXELLDPEntries, Reason: "response has no lldp-entries container"}
	}
	out := make([]topology.Neighbor, 0, len(doc.Entries.Entry))
	for _, e := range doc.Entries.Entry {
		out = append(out, topology.Neighbor{
			Hostname:     e.DeviceID,
			LocalPort:    e.LocalInterface,
			NeighborPort: e.ConnectingInterface,
		}.Normalize())
	}
	return out, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
