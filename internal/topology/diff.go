package topology

import (
	"reflect"
	"sort"
)

// Equal reports whether two snapshots describe the same topology. Nil and
// empty lists compare equal and device order is irrelevant.
func Equal(a, b Snapshot) bool {
	return reflect.DeepEqual(canonical(a), canonical(b))
}

func canonical(s Snapshot) Snapshot {
	devices := make([]Device, 0, len(s.Devices))
	for _, d := range s.Devices {
		devices = append(devices, canonicalDevice(d))
	}
	SortDevices(devices)
	return Snapshot{Devices: devices}
}

func canonicalDevice(d Device) Device {
	if len(d.ChassisIDs) == 0 {
		d.ChassisIDs = nil
	}
	if len(d.Routes) == 0 {
		d.Routes = nil
	}
	if len(d.Neighbors) == 0 {
		d.Neighbors = nil
	} else {
		ns := make([]Neighbor, len(d.Neighbors))
		for i, n := range d.Neighbors {
			ns[i] = n.Normalize()
		}
		d.Neighbors = ns
	}
	return d
}

// DeviceChange describes how one device differs between two snapshots.
type DeviceChange struct {
	Key              string     `json:"key"`
	Hostname         string     `json:"hostname"`
	Fields           []string   `json:"fields,omitempty"`
	AddedNeighbors   []Neighbor `json:"added_neighbors,omitempty"`
	RemovedNeighbors []Neighbor `json:"removed_neighbors,omitempty"`
}

// Diff is the comparison of a baseline snapshot against a fresh one.
type Diff struct {
	Changed  bool           `json:"changed"`
	Added    []Device       `json:"added,omitempty"`
	Removed  []Device       `json:"removed,omitempty"`
	Modified []DeviceChange `json:"modified,omitempty"`
}

// Compare computes the difference from prev to cur. Changed agrees with !Equal.
func Compare(prev, cur Snapshot) Diff {
	prevByKey := indexDevices(prev)
	curByKey := indexDevices(cur)

	var diff Diff
	for _, key := range sortedKeys(curByKey) {
		c := curByKey[key]
		p, ok := prevByKey[key]
		if !ok {
			diff.Added = append(diff.Added, c)
			continue
		}
		if change, changed := compareDevice(key, p, c); changed {
			diff.Modified = append(diff.Modified, change)
		}
	}
	for _, key := range sortedKeys(prevByKey) {
		if _, ok := curByKey[key]; !ok {
			diff.Removed = append(diff.Removed, prevByKey[key])
		}
	}
	diff.Changed = !Equal(prev, cur)
	return diff
}

func indexDevices(s Snapshot) map[string]Device {
	out := make(map[string]Device, len(s.Devices))
	for _, d := range s.Devices {
		out[d.Key()] = canonicalDevice(d)
	}
	return out
}

func sortedKeys(m map[string]Device) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func compareDevice(key string, p, c Device) (DeviceChange, bool) {
	change := DeviceChange{Key: key, Hostname: c.Hostname}
	if p.Hostname != c.Hostname {
		change.Fields = append(change.Fields, "hostname")
	}
	if p.Serial != c.Serial {
		change.Fields = append(change.Fields, "serial")
	}
	if !reflect.DeepEqual(p.ChassisIDs, c.ChassisIDs) {
		change.Fields = append(change.Fields, "chassis_ids")
	}
	if p.Role != c.Role {
		change.Fields = append(change.Fields, "role")
	}
	if p.Dialect != c.Dialect {
		change.Fields = append(change.Fields, "dialect")
	}
	if p.Status != c.Status {
		change.Fields = append(change.Fields, "status")
	}
	if !reflect.DeepEqual(p.Routes, c.Routes) {
		change.Fields = append(change.Fields, "routes")
	}

	prevNeighbors := make(map[string]Neighbor, len(p.Neighbors))
	for _, n := range p.Neighbors {
		prevNeighbors[n.key()] = n
	}
	curNeighbors := make(map[string]Neighbor, len(c.Neighbors))
	for _, n := range c.Neighbors {
		curNeighbors[n.key()] = n
		old, ok := prevNeighbors[n.key()]
		if !ok || old != n {
			change.AddedNeighbors = append(change.AddedNeighbors, n)
		}
	}
	for _, n := range p.Neighbors {
		cur, ok := curNeighbors[n.key()]
		if !ok || cur != n {
			change.RemovedNeighbors = append(change.RemovedNeighbors, n)
		}
	}
	if !reflect.DeepEqual(p.Neighbors, c.Neighbors) && len(change.AddedNeighbors) == 0 && len(change.RemovedNeighbors) == 0 {
		change.Fields = append(change.Fields, "neighbor_order")
	}

	changed := len(change.Fields) > 0 || len(change.AddedNeighbors) > 0 || len(change.RemovedNeighbors) > 0
	return change, changed
}
