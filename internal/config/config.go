// Package config reads runtime settings from an optional YAML file overlaid
// by DYAGRAM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cmoses01/DyaGram/internal/topology"
)

const (
	DefaultWorkers       = 10
	MaxWorkers           = 64
	DefaultDeviceTimeout = 90 * time.Second
	DefaultHTTPAddr      = ":8081"
)

// Credentials are shared by every protocol a device is queried with.
type Credentials struct {
	Username     string
	Password     string
	EnableSecret string
}

// Config is the complete runtime configuration. It is built once at startup
// and passed by value afterwards.
type Config struct {
	Credentials Credentials

	Workers         int
	DeviceTimeout   time.Duration
	Preset          string
	FallbackDialect topology.Dialect
	VendorNative    bool
	CollectRoutes   bool

	RestconfPort int
	InsecureTLS  bool
	SSHPort      int

	SNMPCommunity string
	SNMPVersion   string

	DNSServer string

	Workspace     string
	InventoryFile string
	StateBackend  string
	StateDSN      string

	LogLevel string
	HTTPAddr string
}

// Lookup matches os.LookupEnv.
type Lookup func(key string) (string, bool)

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load builds a Config from lookup. Credentials are read but not required;
// see RequireCredentials.
func Load(lookup Lookup) (Config, error) {
	env := envReader{lookup: lookup}

	cfg := Config{
		Credentials: Credentials{
			Username:     env.str("DYAGRAM_USERNAME", ""),
			Password:     env.str("DYAGRAM_PASSWORD", ""),
			EnableSecret: env.str("DYAGRAM_ENABLE_SECRET", ""),
		},
		Workers:         clamp(env.int("DYAGRAM_WORKERS", DefaultWorkers), 1, MaxWorkers),
		DeviceTimeout:   env.duration("DYAGRAM_DEVICE_TIMEOUT", DefaultDeviceTimeout),
		Preset:          strings.ToLower(env.str("DYAGRAM_PRESET", "normal")),
		FallbackDialect: topology.ParseDialect(env.str("DYAGRAM_FALLBACK_DIALECT", "ios_xe")),
		VendorNative:    env.bool("DYAGRAM_VENDOR_NATIVE", false),
		CollectRoutes:   env.bool("DYAGRAM_COLLECT_ROUTES", false),
		RestconfPort:    env.int("DYAGRAM_RESTCONF_PORT", 443),
		InsecureTLS:     env.bool("DYAGRAM_INSECURE_TLS", true),
		SSHPort:         env.int("DYAGRAM_SSH_PORT", 22),
		SNMPCommunity:   env.str("DYAGRAM_SNMP_COMMUNITY", ""),
		SNMPVersion:     env.str("DYAGRAM_SNMP_VERSION", "2c"),
		DNSServer:       env.str("DYAGRAM_DNS_SERVER", ""),
		Workspace:       env.str("DYAGRAM_WORKSPACE", "."),
		InventoryFile:   env.str("DYAGRAM_INVENTORY", "inventory.yml"),
		StateBackend:    strings.ToLower(env.str("DYAGRAM_STATE_BACKEND", "file")),
		StateDSN:        env.str("DYAGRAM_STATE_DSN", ""),
		LogLevel:        env.str("DYAGRAM_LOG_LEVEL", "info"),
		HTTPAddr:        env.str("DYAGRAM_HTTP_ADDR", DefaultHTTPAddr),
	}
	if env.err != nil {
		return Config{}, env.err
	}

	// The enable secret defaults to the login password.
	if cfg.Credentials.EnableSecret == "" {
		cfg.Credentials.EnableSecret = cfg.Credentials.Password
	}
	if !cfg.FallbackDialect.Known() {
		return Config{}, fmt.Errorf("DYAGRAM_FALLBACK_DIALECT: unsupported dialect")
	}
	switch cfg.StateBackend {
	case "file", "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("DYAGRAM_STATE_BACKEND: unknown backend %q", cfg.StateBackend)
	}
	if cfg.StateBackend == "postgres" && cfg.StateDSN == "" {
		return Config{}, fmt.Errorf("DYAGRAM_STATE_DSN is required for the postgres backend")
	}
	return cfg, nil
}

// File is the on-disk form of the configuration. Every field is optional and
// environment variables take precedence over it.
type File struct {
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	EnableSecret  string `yaml:"enable_secret"`
	Workers       int    `yaml:"workers"`
	DeviceTimeout string `yaml:"device_timeout"`
	Preset        string `yaml:"preset"`

	FallbackDialect string `yaml:"fallback_dialect"`
	VendorNative    *bool  `yaml:"vendor_native"`
	CollectRoutes   *bool  `yaml:"collect_routes"`

	Restconf struct {
		Port        int   `yaml:"port"`
		InsecureTLS *bool `yaml:"insecure_tls"`
	} `yaml:"restconf"`
	SSH struct {
		Port int `yaml:"port"`
	} `yaml:"ssh"`
	SNMP struct {
		Community string `yaml:"community"`
		Version   string `yaml:"version"`
	} `yaml:"snmp"`
	DNSServer string `yaml:"dns_server"`

	Workspace string `yaml:"workspace"`
	Inventory string `yaml:"inventory"`
	State     struct {
		Backend string `yaml:"backend"`
		DSN     string `yaml:"dsn"`
	} `yaml:"state"`

	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
}

// LoadFromPath reads the YAML file at path and overlays the environment from
// lookup. An empty path loads from lookup alone.
func LoadFromPath(path string, lookup Lookup) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Load(lookup)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return Load(f.overlay(lookup))
}

// overlay returns a Lookup that consults the environment first and the file
// second, so both share one parsing and validation path.
func (f File) overlay(env Lookup) Lookup {
	values := f.values()
	return func(key string) (string, bool) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}
}

func (f File) values() map[string]string {
	out := make(map[string]string)
	set := func(key, v string) {
		if strings.TrimSpace(v) != "" {
			out[key] = v
		}
	}
	setInt := func(key string, v int) {
		if v != 0 {
			out[key] = strconv.Itoa(v)
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			out[key] = strconv.FormatBool(*v)
		}
	}

	set("DYAGRAM_USERNAME", f.Username)
	set("DYAGRAM_PASSWORD", f.Password)
	set("DYAGRAM_ENABLE_SECRET", f.EnableSecret)
	setInt("DYAGRAM_WORKERS", f.Workers)
	set("DYAGRAM_DEVICE_TIMEOUT", f.DeviceTimeout)
	set("DYAGRAM_PRESET", f.Preset)
	set("DYAGRAM_FALLBACK_DIALECT", f.FallbackDialect)
	setBool("DYAGRAM_VENDOR_NATIVE", f.VendorNative)
	setBool("DYAGRAM_COLLECT_ROUTES", f.CollectRoutes)
	setInt("DYAGRAM_RESTCONF_PORT", f.Restconf.Port)
	setBool("DYAGRAM_INSECURE_TLS", f.Restconf.InsecureTLS)
	setInt("DYAGRAM_SSH_PORT", f.SSH.Port)
	set("DYAGRAM_SNMP_COMMUNITY", f.SNMP.Community)
	set("DYAGRAM_SNMP_VERSION", f.SNMP.Version)
	set("DYAGRAM_DNS_SERVER", f.DNSServer)
	set("DYAGRAM_WORKSPACE", f.Workspace)
	set("DYAGRAM_INVENTORY", f.Inventory)
	set("DYAGRAM_STATE_BACKEND", f.State.Backend)
	set("DYAGRAM_STATE_DSN", f.State.DSN)
	set("DYAGRAM_LOG_LEVEL", f.LogLevel)
	set("DYAGRAM_HTTP_ADDR", f.HTTPAddr)
	return out
}

// RequireCredentials fails with topology.ErrMissingCredentials unless both a
// username and a password are configured.
func (c Config) RequireCredentials() error {
	var missing []string
	if c.Credentials.Username == "" {
		missing = append(missing, "DYAGRAM_USERNAME")
	}
	if c.Credentials.Password == "" {
		missing = append(missing, "DYAGRAM_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", topology.ErrMissingCredentials, strings.Join(missing, " and "))
	}
	return nil
}

// SNMPEnabled reports whether the SNMP fallback has a community to use.
func (c Config) SNMPEnabled() bool {
	return c.SNMPCommunity != ""
}

type envReader struct {
	lookup Lookup
	err    error
}

func (e *envReader) str(key, fallback string) string {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return fallback
	}
	return v
}

func (e *envReader) int(key string, fallback int) int {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return fallback
	}
	return n
}

func (e *envReader) bool(key string, fallback bool) bool {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return fallback
	}
	return b
}

// duration accepts Go durations ("90s") or a plain number of seconds.
func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			e.fail(key, fmt.Errorf("must be positive"))
			return fallback
		}
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return fallback
	}
	if d <= 0 {
		e.fail(key, fmt.Errorf("must be positive"))
		return fallback
	}
	return d
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
