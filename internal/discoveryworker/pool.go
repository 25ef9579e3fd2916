package discoveryworker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cmoses01/DyaGram/internal/metrics"
	"github.com/cmoses01/DyaGram/internal/resolver"
	"github.com/cmoses01/DyaGram/internal/topology"
)

// Resolver discovers a single device. *resolver.Resolver satisfies this.
type Resolver interface {
	Resolve(ctx context.Context, address string) resolver.Result
}

// Failure explains why a device ended up failed in a run.
type Failure struct {
	Address string `json:"address"`
	State   string `json:"state,omitempty"`
	Reason  string `json:"reason"`
}

// Report is the outcome of one pass over a device list.
type Report struct {
	Snapshot topology.Snapshot
	Failures []Failure
	// Paths counts devices by the discovery path that produced them.
	Paths    map[string]int
	Duration time.Duration
}

type PoolOptions struct {
	Workers int
}

// Pool resolves a batch of devices with a bounded number of workers and
// assembles the results into a snapshot.
type Pool struct {
	log      zerolog.Logger
	resolver Resolver
	workers  int
	metrics  *metrics.Metrics
}

func NewPool(log zerolog.Logger, r Resolver, opts PoolOptions, m *metrics.Metrics) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = 10
	}
	return &Pool{log: log, resolver: r, workers: workers, metrics: m}
}

type outcome struct {
	path    string
	failure *Failure
}

// Run resolves every address once. Duplicate addresses are dropped. It
// returns after every device has been resolved or abandoned because ctx
// ended; abandoned devices are reported as failed.
func (p *Pool) Run(ctx context.Context, addresses []string) Report {
	start := time.Now()
	addresses = dedupe(p.log, addresses)

	asm := topology.NewAssembler(p.workers * 2)
	for _, addr := range addresses {
		asm.Claim(addr)
	}

	workers := p.workers
	if workers > len(addresses) {
		workers = len(addresses)
	}

	jobs := make(chan string, workers*2)
	results := make([][]outcome, workers)
	wg := sync.WaitGroup{}

	worker := func(id int) {
		defer wg.Done()
		for addr := range jobs {
			results[id] = append(results[id], p.discover(ctx, asm, addr))
		}
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker(i)
	}

	sent := 0
send:
	for _, addr := range addresses {
		select {
		case <-ctx.Done():
			break send
		case jobs <- addr:
			sent++
		}
	}
	close(jobs)
	wg.Wait()

	report := Report{
		Snapshot: asm.Finalize(),
		Paths:    make(map[string]int),
	}
	for _, rs := range results {
		for _, o := range rs {
			report.Paths[o.path]++
			if o.failure != nil {
				report.Failures = append(report.Failures, *o.failure)
			}
		}
	}
	if sent < len(addresses) {
		reason := "discovery run canceled before the device was attempted"
		if err := ctx.Err(); err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		for _, addr := range addresses[sent:] {
			report.Paths[resolver.PathNone]++
			report.Failures = append(report.Failures, Failure{Address: addr, Reason: reason})
		}
	}
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Address < report.Failures[j].Address })
	report.Duration = time.Since(start)
	return report
}

// discover resolves one device. A panic inside the resolver fails only that
// device.
func (p *Pool) discover(ctx context.Context, asm *topology.Assembler, addr string) (out outcome) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().Str("device", addr).Interface("panic", rec).Msg("device discovery panicked")
			asm.Submit(topology.Device{Address: addr, Status: topology.StatusFailed})
			p.metrics.ObserveDevice(resolver.PathNone, string(topology.StatusFailed), time.Since(start))
			out = outcome{
				path:    resolver.PathNone,
				failure: &Failure{Address: addr, Reason: fmt.Sprintf("panic: %v", rec)},
			}
		}
	}()

	res := p.resolver.Resolve(ctx, addr)
	if res.Device.Address == "" {
		res.Device.Address = addr
	}
	asm.Submit(res.Device)

	status := res.Device.Status
	if status == "" {
		status = topology.StatusFailed
	}
	p.metrics.ObserveDevice(res.Path, string(status), time.Since(start))

	out = outcome{path: res.Path}
	if status == topology.StatusFailed {
		f := &Failure{Address: addr, Reason: "unknown error"}
		if res.Err != nil {
			f.Reason = res.Err.Error()
		}
		if n := len(res.Trace); n > 0 {
			f.State = res.Trace[n-1].State.String()
		}
		p.log.Warn().Str("device", addr).Str("state", f.State).Str("reason", f.Reason).Msg("device discovery failed")
		out.failure = f
		return out
	}
	p.log.Info().
		Str("device", addr).
		Str("hostname", res.Device.Hostname).
		Str("path", res.Path).
		Int("neighbors", len(res.Device.Neighbors)).
		Msg("device discovered")
	return out
}

func dedupe(log zerolog.Logger, addresses []string) []string {
	out := make([]string, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, raw := range addresses {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; ok {
			log.Warn().Str("device", addr).Msg("duplicate inventory address skipped")
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
