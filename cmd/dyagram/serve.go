package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmoses01/DyaGram/internal/discovery"
	"github.com/cmoses01/DyaGram/internal/discoveryworker"
	"github.com/cmoses01/DyaGram/internal/httpapi"
	"github.com/cmoses01/DyaGram/internal/inventory"
	"github.com/cmoses01/DyaGram/internal/logging"
	"github.com/cmoses01/DyaGram/internal/metrics"
	"github.com/cmoses01/DyaGram/internal/state"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API and run queued discoveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}

			logger := logging.New(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := state.Open(ctx, cfg.StateBackend, cfg.StateDSN, cfg.Workspace)
			if err != nil {
				return err
			}
			defer store.Close()

			m := metrics.New()
			invPath := cfg.InventoryFile
			inv := func() (inventory.Inventory, error) { return inventory.Load(invPath) }
			engine := discovery.New(logger, cfg, discovery.Options{
				Inventory: inv,
				Store:     store,
				Metrics:   m,
			})

			queue := discoveryworker.NewQueue()
			worker := discoveryworker.NewWorker(logger, queue, engine, discoveryworker.WorkerOptions{Wake: queue.Wake()})
			go worker.Run(ctx)

			opts := httpapi.Options{
				Runs:      engine,
				Queue:     queue,
				Inventory: inv,
				Metrics:   m,
			}
			if p, ok := store.(httpapi.Pinger); ok {
				opts.Ready = p
			}
			h := httpapi.NewHandler(logger, opts)
			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           h.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", cfg.HTTPAddr).Msg("dyagram listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			logger.Info().Msg("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides DYAGRAM_HTTP_ADDR)")
	return cmd
}
