package topology

import "sync"

// Assembler collects per-device results from concurrent workers. A single
// goroutine owns the device map; workers only send messages.
type Assembler struct {
	updates chan Device
	done    chan struct{}
	devices map[string]Device
	once    sync.Once
	result  Snapshot
}

// NewAssembler starts the collecting goroutine. buffer sizes the inbound queue.
func NewAssembler(buffer int) *Assembler {
	if buffer < 0 {
		buffer = 0
	}
	a := &Assembler{
		updates: make(chan Device, buffer),
		done:    make(chan struct{}),
		devices: make(map[string]Device),
	}
	go a.loop()
	return a
}

func (a *Assembler) loop() {
	defer close(a.done)
	for d := range a.updates {
		key := d.Address
		prev, ok := a.devices[key]
		if !ok {
			a.devices[key] = d
			continue
		}
		a.devices[key] = merge(prev, d)
	}
}

// merge overlays fields set on next onto prev. Status always follows next.
func merge(prev, next Device) Device {
	out := prev
	out.Status = next.Status
	if next.Hostname != "" {
		out.Hostname = next.Hostname
	}
	if next.Serial != "" {
		out.Serial = next.Serial
	}
	if next.ChassisIDs != nil {
		out.ChassisIDs = next.ChassisIDs
	}
	if next.Role != "" {
		out.Role = next.Role
	}
	if next.Dialect != "" {
		out.Dialect = next.Dialect
	}
	if next.Neighbors != nil {
		out.Neighbors = next.Neighbors
	}
	if next.Routes != nil {
		out.Routes = next.Routes
	}
	return out
}

// Claim registers a placeholder for address as soon as a worker picks it up.
// A placeholder that never receives a result is reported as failed.
func (a *Assembler) Claim(address string) {
	a.updates <- Device{Address: address, Status: StatusPending}
}

// Submit records the outcome for d.Address.
func (a *Assembler) Submit(d Device) {
	a.updates <- d
}

// Finalize stops intake and returns the sorted snapshot. Callers must ensure
// every sender has returned first. Repeated calls return the same snapshot.
func (a *Assembler) Finalize() Snapshot {
	a.once.Do(func() {
		close(a.updates)
		<-a.done
		devices := make([]Device, 0, len(a.devices))
		for _, d := range a.devices {
			if d.Status == StatusPending || d.Status == "" {
				d.Status = StatusFailed
			}
			if d.Neighbors == nil {
				d.Neighbors = []Neighbor{}
			}
			devices = append(devices, d)
		}
		SortDevices(devices)
		a.result = Snapshot{Devices: devices}
	})
	return a.result
}
