package discoveryworker

import "time"

const (
	PresetFast   = "fast"
	PresetNormal = "normal"
	PresetDeep   = "deep"
)

// Settings are the knobs a preset adjusts for one run.
type Settings struct {
	Workers       int
	DeviceTimeout time.Duration
	SkipRestconf  bool
	VendorNative  bool
	CollectRoutes bool
	SNMP          bool
}

func minDuration(a, b time.Duration) time.Duration {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ApplyPreset returns s adjusted for preset. Fast goes straight to the CLI
// with a short timeout and no optional collection. Deep turns on routes,
// the vendor-native RESTCONF branch and the SNMP fallback, and allows slow
// devices more time. Normal keeps the configured values.
func ApplyPreset(s Settings, preset string) Settings {
	switch CanonicalPreset(preset) {
	case PresetFast:
		s.DeviceTimeout = minDuration(s.DeviceTimeout, 30*time.Second)
		s.SkipRestconf = true
		s.VendorNative = false
		s.CollectRoutes = false
		s.SNMP = false
	case PresetDeep:
		s.DeviceTimeout = maxDuration(s.DeviceTimeout, 3*time.Minute)
		s.Workers = maxInt(s.Workers, 10)
		s.VendorNative = true
		s.CollectRoutes = true
		s.SNMP = true
	}
	return s
}
