// Package discovery runs one discovery cycle for a site: resolve every
// inventory address, assemble the snapshot and reconcile it with the stored
// baseline.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cmoses01/DyaGram/internal/config"
	"github.com/cmoses01/DyaGram/internal/discoveryworker"
	"github.com/cmoses01/DyaGram/internal/inventory"
	"github.com/cmoses01/DyaGram/internal/metrics"
	"github.com/cmoses01/DyaGram/internal/state"
	"github.com/cmoses01/DyaGram/internal/topology"
)

// Run is the result of one discovery cycle.
type Run struct {
	ID         string                    `json:"id"`
	Site       string                    `json:"site"`
	Preset     string                    `json:"preset"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Result     string                    `json:"result"`
	Changed    bool                      `json:"changed"`
	Accepted   bool                      `json:"accepted"`
	Baseline   topology.Snapshot         `json:"baseline"`
	Current    topology.Snapshot         `json:"current"`
	Diff       topology.Diff             `json:"diff"`
	Failures   []discoveryworker.Failure `json:"failures,omitempty"`
	Paths      map[string]int            `json:"paths"`
}

// InventorySource returns the inventory to discover. It is called at the
// start of every run so edits to the inventory file are picked up.
type InventorySource func() (inventory.Inventory, error)

// ResolverFactory builds the per-run resolver for the effective settings.
type ResolverFactory func(s discoveryworker.Settings) discoveryworker.Resolver

type Options struct {
	Inventory InventorySource
	Store     state.Store
	Metrics   *metrics.Metrics
	// Resolvers defaults to NewResolverFactory(log, cfg).
	Resolvers ResolverFactory
}

type Engine struct {
	log       zerolog.Logger
	cfg       config.Config
	inventory InventorySource
	store     state.Store
	metrics   *metrics.Metrics
	resolvers ResolverFactory

	// runMu serializes runs so reconcile always sees the latest baseline.
	runMu sync.Mutex

	mu   sync.RWMutex
	last map[string]Run
}

func New(log zerolog.Logger, cfg config.Config, opts Options) *Engine {
	inv := opts.Inventory
	if inv == nil {
		path := cfg.InventoryFile
		inv = func() (inventory.Inventory, error) { return inventory.Load(path) }
	}
	store := opts.Store
	if store == nil {
		store = state.NewFileStore(cfg.Workspace)
	}
	resolvers := opts.Resolvers
	if resolvers == nil {
		resolvers = NewResolverFactory(log, cfg)
	}
	return &Engine{
		log:       log,
		cfg:       cfg,
		inventory: inv,
		store:     store,
		metrics:   opts.Metrics,
		resolvers: resolvers,
		last:      make(map[string]Run),
	}
}

// Settings returns the run settings for preset derived from the configuration.
func (e *Engine) Settings(preset string) discoveryworker.Settings {
	return discoveryworker.ApplyPreset(discoveryworker.Settings{
		Workers:       e.cfg.Workers,
		DeviceTimeout: e.cfg.DeviceTimeout,
		VendorNative:  e.cfg.VendorNative,
		CollectRoutes: e.cfg.CollectRoutes,
		SNMP:          e.cfg.SNMPEnabled(),
	}, preset)
}

// Discover runs one cycle for site. Errors are startup-level: missing
// credentials, an unknown site or a state store failure. Per-device
// failures are reported in Run.Failures.
func (e *Engine) Discover(ctx context.Context, site, preset string, accept bool) (Run, error) {
	return e.discover(ctx, uuid.NewString(), site, preset, accept)
}

// Execute runs a queued request.
func (e *Engine) Execute(ctx context.Context, req discoveryworker.Request) error {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := e.discover(ctx, id, req.Site, req.Preset, req.Accept)
	return err
}

func (e *Engine) discover(ctx context.Context, id, site, preset string, accept bool) (Run, error) {
	if err := e.cfg.RequireCredentials(); err != nil {
		return Run{}, err
	}
	inv, err := e.inventory()
	if err != nil {
		return Run{}, err
	}
	addresses, err := inv.Addresses(site)
	if err != nil {
		return Run{}, err
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	preset = discoveryworker.CanonicalPreset(preset)
	settings := e.Settings(preset)
	log := e.log.With().Str("run_id", id).Str("site", site).Logger()
	log.Info().
		Str("preset", preset).
		Int("devices", len(addresses)).
		Int("workers", settings.Workers).
		Dur("device_timeout", settings.DeviceTimeout).
		Msg("discovery run started")

	run := Run{ID: id, Site: site, Preset: preset, StartedAt: time.Now().UTC()}
	e.metrics.IncDiscoveryRun()

	pool := discoveryworker.NewPool(log, e.resolvers(settings), discoveryworker.PoolOptions{Workers: settings.Workers}, e.metrics)
	report := pool.Run(ctx, addresses)
	e.metrics.ObserveDiscoveryRunDuration(report.Duration)

	run.Current = report.Snapshot
	run.Failures = report.Failures
	run.Paths = report.Paths

	// A canceled run has placeholder entries for devices it never reached;
	// comparing it would report them as drift.
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("discovery run canceled; baseline left untouched")
		return run, fmt.Errorf("discovery of site %q canceled: %w", site, err)
	}

	rec, err := state.Reconcile(ctx, e.store, site, report.Snapshot, accept)
	if err != nil {
		log.Error().Err(err).Msg("state reconcile failed")
		return run, err
	}
	e.metrics.IncStateChange(rec.Result)

	run.Result = rec.Result
	run.Changed = rec.Changed
	run.Accepted = rec.Accepted
	run.Baseline = rec.Baseline
	run.Diff = rec.Diff
	run.FinishedAt = time.Now().UTC()

	e.mu.Lock()
	e.last[site] = run
	e.mu.Unlock()

	log.Info().
		Str("result", rec.Result).
		Bool("accepted", rec.Accepted).
		Int("failed", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("discovery run finished")
	return run, nil
}

// LastRun returns the most recent completed run of site.
func (e *Engine) LastRun(site string) (Run, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.last[site]
	return r, ok
}

// Baseline returns the stored baseline snapshot of site.
func (e *Engine) Baseline(ctx context.Context, site string) (topology.Snapshot, bool, error) {
	return e.store.Load(ctx, site)
}

// History returns saved snapshots when the store keeps them.
func (e *Engine) History(ctx context.Context, site string, limit int) ([]state.Entry, bool, error) {
	h, ok := e.store.(state.Historian)
	if !ok {
		return nil, false, nil
	}
	entries, err := h.History(ctx, site, limit)
	return entries, true, err
}
