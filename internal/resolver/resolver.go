// Package resolver walks one device through the protocol fallback chain and
// produces its topology entry.
package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cmoses01/DyaGram/internal/extract"
	"github.com/cmoses01/DyaGram/internal/naming"
	"github.com/cmoses01/DyaGram/internal/session"
	"github.com/cmoses01/DyaGram/internal/snmp"
	"github.com/cmoses01/DyaGram/internal/tagging"
	"github.com/cmoses01/DyaGram/internal/topology"
)

// Discovery paths, reported per device for metrics.
const (
	PathRESTCONF    = "restconf"
	PathSSHTemplate = "ssh_template"
	PathSSHPattern  = "ssh_pattern"
	PathSNMP        = "snmp"
	PathNone        = "none"
)

type RESTCONF interface {
	LLDPNeighbors(ctx context.Context, address string) ([]topology.Neighbor, error)
	NativeLLDPNeighbors(ctx context.Context, address string) ([]topology.Neighbor, error)
	Hostname(ctx context.Context, address string) (string, error)
	ChassisIDs(ctx context.Context, address string) ([]string, error)
}

// Session is an interactive CLI session owned by one resolution.
type Session interface {
	Run(ctx context.Context, cmd string) (string, error)
	Enable(ctx context.Context) error
	Fingerprint() string
	Close() error
}

type CLI interface {
	Dial(ctx context.Context, address string) (Session, error)
}

type SNMP interface {
	Collect(ctx context.Context, address string) (snmp.Result, error)
}

type PTR interface {
	LookupAddr(ctx context.Context, address string) ([]string, error)
}

// SSH adapts a session.Dialer to CLI.
func SSH(d *session.Dialer) CLI { return sshDialer{d: d} }

type sshDialer struct{ d *session.Dialer }

func (s sshDialer) Dial(ctx context.Context, address string) (Session, error) {
	sess, err := s.d.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Deps are the protocol clients a Resolver may use. A nil RESTCONF skips the
// structured API states, a nil SNMP disables the SNMP branch and a nil PTR
// disables reverse DNS naming.
type Deps struct {
	RESTCONF RESTCONF
	CLI      CLI
	SNMP     SNMP
	PTR      PTR
}

type Options struct {
	Table           extract.Table
	FallbackDialect topology.Dialect
	DeviceTimeout   time.Duration
	SkipRestconf    bool
	VendorNative    bool
	CollectRoutes   bool
}

// Step records one state visited during a resolution.
type Step struct {
	State   State
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// Result is the outcome of resolving one device.
type Result struct {
	Device topology.Device
	Path   string
	Trace  []Step
	// Err is the error that ended the device in StateFailed.
	Err error
}

type Resolver struct {
	log    zerolog.Logger
	deps   Deps
	opts   Options
	policy Policy
}

func New(log zerolog.Logger, deps Deps, opts Options) *Resolver {
	if len(opts.Table.Dialects()) == 0 {
		opts.Table = extract.DefaultTable()
	}
	if !opts.FallbackDialect.Known() {
		opts.FallbackDialect = topology.DialectIOSXE
	}
	if opts.DeviceTimeout <= 0 {
		opts.DeviceTimeout = 90 * time.Second
	}
	return &Resolver{
		log:  log,
		deps: deps,
		opts: opts,
		policy: Policy{
			SkipRestconf: opts.SkipRestconf || deps.RESTCONF == nil,
			VendorNative: opts.VendorNative,
			SNMP:         deps.SNMP != nil,
		},
	}
}

// Policy reports the fallback edges in effect.
func (r *Resolver) Policy() Policy { return r.policy }

// Resolve discovers address. It never returns an error: failures end the
// device in StateFailed and are described by Result.Err.
func (r *Resolver) Resolve(ctx context.Context, address string) Result {
	ctx, cancel := context.WithTimeout(ctx, r.opts.DeviceTimeout)
	defer cancel()

	d := &device{
		r:       r,
		address: address,
		log:     r.log.With().Str("device", address).Logger(),
		dev:     topology.Device{Address: address},
		path:    PathNone,
	}
	defer d.close()

	var res Result
	state := r.policy.Start()
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			res.Err = &topology.ConnectivityError{Address: address, Err: err}
			res.Trace = append(res.Trace, Step{State: state, Outcome: OutcomeUnreachable, Err: res.Err})
			state = StateFailed
			break
		}

		start := time.Now()
		err := d.step(ctx, state)
		outcome := Classify(err)
		next := Next(r.policy, state, outcome)
		res.Trace = append(res.Trace, Step{State: state, Outcome: outcome, Err: err, Elapsed: time.Since(start)})

		level := zerolog.DebugLevel
		if err != nil && (next == StateFailed || state == StateSSHPatternParse) {
			level = zerolog.WarnLevel
		}
		d.log.WithLevel(level).
			Str("state", state.String()).
			Str("outcome", outcome.String()).
			Str("next", next.String()).
			Err(err).
			Msg("resolver transition")

		if next == StateFailed {
			res.Err = err
		}
		state = next
	}

	if state == StateFailed {
		res.Device = topology.Device{Address: address, Status: topology.StatusFailed, Neighbors: []topology.Neighbor{}}
		res.Path = PathNone
		return res
	}

	d.finish(ctx)
	res.Device = d.dev
	res.Path = d.path
	return res
}

// device is the mutable state of one resolution.
type device struct {
	r       *Resolver
	address string
	log     zerolog.Logger

	dev      topology.Device
	names    []naming.Candidate
	sysDescr string
	path     string

	sess    Session
	grammar extract.Grammar
	proto   extract.Protocol
	output  string
}

func (d *device) step(ctx context.Context, s State) error {
	switch s {
	case StateRestconfOpenConfig:
		return d.restconf(ctx, d.r.deps.RESTCONF.LLDPNeighbors)
	case StateRestconfVendorNative:
		return d.restconf(ctx, d.r.deps.RESTCONF.NativeLLDPNeighbors)
	case StateSSHAutodetect:
		return d.autodetect(ctx)
	case StateSSHStructuredParse:
		return d.structured(ctx)
	case StateSSHPatternParse:
		return d.pattern()
	case StateSNMPWalk:
		return d.snmpWalk(ctx)
	}
	return errors.New("resolver: no handler for state " + s.String())
}

func (d *device) restconf(ctx context.Context, neighbors func(context.Context, string) ([]topology.Neighbor, error)) error {
	rc := d.r.deps.RESTCONF
	ns, err := neighbors(ctx, d.address)
	if err != nil {
		return err
	}
	d.dev.Neighbors = ns
	d.path = PathRESTCONF

	if name, err := rc.Hostname(ctx, d.address); err == nil {
		d.names = append(d.names, naming.Candidate{Name: name, Source: naming.SourceRESTCONF})
	} else {
		d.log.Debug().Err(err).Msg("restconf hostname unavailable")
	}
	if ids, err := rc.ChassisIDs(ctx, d.address); err == nil {
		d.dev.ChassisIDs = ids
	} else {
		d.log.Debug().Err(err).Msg("restconf chassis ids unavailable")
	}
	return nil
}

func (d *device) autodetect(ctx context.Context) error {
	cli := d.r.deps.CLI
	if cli == nil {
		return &topology.ConnectivityError{Address: d.address, Err: errors.New("no CLI transport configured")}
	}

	sess, err := cli.Dial(ctx, d.address)
	if err != nil {
		if topology.IsAuthentication(err) {
			return err
		}
		d.log.Warn().Err(err).Msg("ssh connect failed; retrying with fallback dialect")
		sess, err = cli.Dial(ctx, d.address)
		if err != nil {
			return err
		}
	}
	d.sess = sess

	dialect := extract.Fingerprint(sess.Fingerprint())
	if !dialect.Known() {
		d.log.Debug().Str("fallback", d.r.opts.FallbackDialect.String()).Msg("dialect fingerprint inconclusive")
		dialect = d.r.opts.FallbackDialect
	}

	if err := sess.Enable(ctx); err != nil {
		if topology.IsConnectivity(err) {
			return err
		}
		d.log.Warn().Err(err).Msg("privilege elevation failed; continuing unprivileged")
	}

	g := d.grammarFor(dialect)
	version, err := d.command(ctx, g.VersionCommand)
	if err != nil {
		return err
	}
	if detected := extract.DetectVersion(version); detected.Known() {
		dialect = detected
		g = d.grammarFor(dialect)
	}
	d.grammar = g
	d.dev.Dialect = dialect
	d.log = d.log.With().Str("dialect", dialect.String()).Logger()
	if serial := extract.ParseSerial(version); serial != "" {
		d.dev.Serial = serial
	}

	hostOut, err := d.command(ctx, g.HostnameCommand)
	if err != nil {
		return err
	}
	if name := extract.ParseHostname(hostOut); name != "" {
		d.names = append(d.names, naming.Candidate{Name: name, Source: naming.SourceCLI})
	}

	chassisOut, err := d.command(ctx, g.ChassisCommand)
	if err != nil {
		return err
	}
	if ids := extract.ParseChassisIDs(dialect, chassisOut); len(ids) > 0 {
		d.dev.ChassisIDs = ids
	}

	if d.r.opts.CollectRoutes && g.RouteCommand != "" {
		routeOut, err := d.command(ctx, g.RouteCommand)
		if err != nil {
			return err
		}
		routes := extract.ParseRoutes(routeOut)
		topology.SortRoutes(routes)
		d.dev.Routes = routes
	}
	return nil
}

func (d *device) grammarFor(dialect topology.Dialect) extract.Grammar {
	if g, ok := d.r.opts.Table.Lookup(dialect); ok {
		return g
	}
	g, _ := d.r.opts.Table.Lookup(d.r.opts.FallbackDialect)
	return g
}

// command runs cmd, treating a command the device rejects as empty output.
func (d *device) command(ctx context.Context, cmd string) (string, error) {
	out, err := d.sess.Run(ctx, cmd)
	if errors.Is(err, topology.ErrProtocolUnsupported) {
		d.log.Debug().Str("command", cmd).Err(err).Msg("command not supported")
		return "", nil
	}
	return out, err
}

func (d *device) structured(ctx context.Context) error {
	g := d.grammar
	proto := extract.ProtocolLLDP
	out, err := d.command(ctx, g.NeighborCommand(proto))
	if err != nil {
		return err
	}
	if !g.HasNeighbors(proto, out) && g.CDPCommand != "" {
		cdpOut, err := d.command(ctx, g.NeighborCommand(extract.ProtocolCDP))
		if err != nil {
			return err
		}
		if g.HasNeighbors(extract.ProtocolCDP, cdpOut) {
			d.log.Debug().Msg("no lldp neighbors; using cdp")
			proto, out = extract.ProtocolCDP, cdpOut
		}
	}
	d.proto, d.output = proto, out

	if strings.TrimSpace(out) == "" {
		d.dev.Neighbors = []topology.Neighbor{}
		d.path = PathSSHTemplate
		return nil
	}
	ns, err := g.Structured(proto, out)
	if err != nil {
		return err
	}
	d.dev.Neighbors = ns
	d.path = PathSSHTemplate
	return nil
}

func (d *device) pattern() error {
	ns, report, err := d.grammar.Pattern(d.proto, d.output)
	if err != nil {
		var dialect topology.Dialect
		var anyErr error
		dialect, ns, report, anyErr = d.r.opts.Table.PatternAny(d.proto, d.output)
		if anyErr != nil || len(ns) == 0 {
			d.dev.Neighbors = []topology.Neighbor{}
			d.path = PathNone
			return err
		}
		d.log.Info().Str("matched_dialect", dialect.String()).Msg("neighbor output matched another dialect grammar")
	}
	if report.Rejected > 0 {
		d.log.Warn().Int("rejected", report.Rejected).Int("blocks", report.Blocks).Msg("neighbor blocks missing required fields")
	}
	d.dev.Neighbors = ns
	d.path = PathSSHPattern
	return nil
}

func (d *device) snmpWalk(ctx context.Context) error {
	res, err := d.r.deps.SNMP.Collect(ctx, d.address)
	if err != nil {
		return err
	}
	d.dev.Neighbors = res.Neighbors
	if len(d.dev.ChassisIDs) == 0 {
		d.dev.ChassisIDs = res.ChassisIDs
	}
	if res.SysName != "" {
		d.names = append(d.names, naming.Candidate{Name: res.SysName, Source: naming.SourceSNMP})
	}
	d.sysDescr = res.SysDescr
	if !d.dev.Dialect.Known() {
		if dialect := extract.Fingerprint(res.SysDescr); dialect.Known() {
			d.dev.Dialect = dialect
		}
	}
	d.path = PathSNMP
	return nil
}

// finish fills in hostname and role once discovery succeeded.
func (d *device) finish(ctx context.Context) {
	if _, ok := naming.Choose(d.names); !ok && d.r.deps.PTR != nil {
		names, err := d.r.deps.PTR.LookupAddr(ctx, d.address)
		if err != nil {
			d.log.Debug().Err(err).Msg("reverse dns lookup failed")
		}
		for _, n := range names {
			d.names = append(d.names, naming.Candidate{Name: n, Source: naming.SourceReverseDNS})
		}
	}
	if name, ok := naming.Choose(d.names); ok {
		d.dev.Hostname = name
	}

	d.dev.Role = tagging.Role(tagging.Signals{
		Dialect:  d.dev.Dialect,
		Hostname: d.dev.Hostname,
		SysDescr: d.sysDescr,
		Routes:   d.dev.Routes,
	})
	if d.dev.Neighbors == nil {
		d.dev.Neighbors = []topology.Neighbor{}
	}
	d.dev.Status = topology.StatusOK
}

func (d *device) close() {
	if d.sess == nil {
		return
	}
	if err := d.sess.Close(); err != nil {
		d.log.Debug().Err(err).Msg("session close")
	}
	d.sess = nil
}
