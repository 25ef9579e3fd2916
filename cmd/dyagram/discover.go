package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cmoses01/DyaGram/internal/config"
	"github.com/cmoses01/DyaGram/internal/discovery"
	"github.com/cmoses01/DyaGram/internal/inventory"
	"github.com/cmoses01/DyaGram/internal/logging"
	"github.com/cmoses01/DyaGram/internal/state"
	"github.com/cmoses01/DyaGram/internal/topology"
)

type runFlags struct {
	site    string
	preset  string
	accept  bool
	verbose bool
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.site, "site", "s", "", "Site to discover (defaults to the current site)")
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "Run preset: fast, normal or deep")
	cmd.Flags().BoolVar(&f.accept, "accept", false, "Replace the baseline when changes are detected")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Show per-device progress")
}

// cliLogger keeps the terminal quiet unless -v is given.
func cliLogger(verbose bool) zerolog.Logger {
	if verbose {
		return logging.NewConsole("debug")
	}
	return logging.NewConsole("warn")
}

// openEngine builds the engine for a CLI run. The caller closes the store.
func openEngine(ctx context.Context, log zerolog.Logger, cfg config.Config) (*discovery.Engine, state.Store, error) {
	// Credentials are checked before anything touches the network.
	if err := cfg.RequireCredentials(); err != nil {
		return nil, nil, err
	}
	store, err := state.Open(ctx, cfg.StateBackend, cfg.StateDSN, cfg.Workspace)
	if err != nil {
		return nil, nil, err
	}
	e := discovery.New(log, cfg, discovery.Options{Store: store})
	return e, store, nil
}

func newDiscoverCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery cycle and compare it with the saved baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			site, err := resolveSite(cfg, f.site)
			if err != nil {
				return err
			}
			preset := f.preset
			if preset == "" {
				preset = cfg.Preset
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := cliLogger(f.verbose)
			engine, store, err := openEngine(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := engine.Discover(ctx, site, preset, f.accept)
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func printRun(w io.Writer, run discovery.Run) {
	switch run.Result {
	case state.ResultBootstrap:
		fmt.Fprintf(w, "Baseline saved for site %q (%d devices).\n", run.Site, len(run.Current.Devices))
	case state.ResultUnchanged:
		fmt.Fprintln(w, "NO CHANGES IN STATE!")
	case state.ResultChanged:
		fmt.Fprintln(w, "CHANGES DETECTED!")
		printDiff(w, run.Diff)
		fmt.Fprintln(w, "\nBaseline state:")
		printSnapshot(w, run.Baseline)
		fmt.Fprintln(w, "\nCurrent state:")
		printSnapshot(w, run.Current)
		if run.Accepted {
			fmt.Fprintln(w, "\nCurrent state accepted as the new baseline.")
		} else {
			fmt.Fprintln(w, "\nBaseline kept; rerun with --accept to replace it.")
		}
	}

	if len(run.Failures) > 0 {
		fmt.Fprintf(w, "\n%d device(s) could not be discovered:\n", len(run.Failures))
		for _, f := range run.Failures {
			if f.State != "" {
				fmt.Fprintf(w, "  %s (%s): %s\n", f.Address, f.State, f.Reason)
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", f.Address, f.Reason)
		}
	}
}

func printDiff(w io.Writer, d topology.Diff) {
	for _, dev := range d.Added {
		fmt.Fprintf(w, "  + device %s %s\n", dev.Key(), dev.Hostname)
	}
	for _, dev := range d.Removed {
		fmt.Fprintf(w, "  - device %s %s\n", dev.Key(), dev.Hostname)
	}
	for _, c := range d.Modified {
		fmt.Fprintf(w, "  ~ device %s %s\n", c.Key, c.Hostname)
		for _, field := range c.Fields {
			fmt.Fprintf(w, "      changed %s\n", field)
		}
		for _, n := range c.AddedNeighbors {
			fmt.Fprintf(w, "      + neighbor %s %s <-> %s\n", n.Hostname, n.LocalPort, n.NeighborPort)
		}
		for _, n := range c.RemovedNeighbors {
			fmt.Fprintf(w, "      - neighbor %s %s <-> %s\n", n.Hostname, n.LocalPort, n.NeighborPort)
		}
	}
}

func printSnapshot(w io.Writer, snap topology.Snapshot) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(snap)
}

func newWatchCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun discovery whenever the inventory file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			site, err := resolveSite(cfg, f.site)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := cliLogger(f.verbose)
			engine, store, err := openEngine(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			runOnce := func(ctx context.Context) {
				run, err := engine.Discover(ctx, site, f.preset, f.accept)
				if err != nil {
					if ctx.Err() == nil {
						fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
					}
					return
				}
				printRun(out, run)
			}

			runOnce(ctx)
			w := inventory.NewWatcher(log, cfg.InventoryFile, inventory.DefaultDebounce, runOnce)
			if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}
