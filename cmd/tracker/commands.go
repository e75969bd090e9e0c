package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"smart-money-tracker/internal/api"
	"smart-money-tracker/internal/config"
	"smart-money-tracker/internal/observability"
	"smart-money-tracker/internal/orchestrator"
	"smart-money-tracker/internal/storage/migrations"
	pgstore "smart-money-tracker/internal/storage/postgres"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var chains []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one cycle per chain and print the summaries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags, nil)
			if err != nil {
				return err
			}
			if len(chains) == 0 {
				chains = cfg.Chains
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var summaries []*orchestrator.Summary
			var errs []error
			for _, chain := range chains {
				s, err := a.orch.RunCycle(ctx, chain)
				if errors.Is(err, orchestrator.ErrMissingDeliveryTarget) {
					return err
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("chain %s: %w", chain, err))
				}
				if s != nil {
					summaries = append(summaries, s)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summaries); err != nil {
				return err
			}
			if a.dryRun != nil {
				for _, m := range a.dryRun.Sent() {
					fmt.Fprintf(cmd.ErrOrStderr(), "--- %s #%d ---\n%s\n", m.Channel, m.Handle, m.Text)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringSliceVar(&chains, "chain", nil, "Chains to run (default: config chains)")
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve cycle invocations, health and metrics over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr: cfg.Server.Addr,
				Handler: api.NewServer(api.Options{
					Runner:       a.orch,
					Chains:       cfg.Chains,
					Metrics:      observability.Handler(),
					Logger:       logger,
					CycleTimeout: cfg.Pipeline.PlatformTimeout,
				}),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: cfg.Pipeline.PlatformTimeout + 10*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			if cfg.Pipeline.Interval > 0 {
				go newTicker(a).run(ctx)
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", srv.Addr).Strs("chains", cfg.Chains).Msg("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				logger.Info().Msg("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// ticker runs a cycle for every chain on an interval and applies retention
// once per sweep interval.
type ticker struct {
	runner       api.Runner
	chains       []string
	every        time.Duration
	sweepEvery   time.Duration
	cycleTimeout time.Duration
	logger       zerolog.Logger
	now          func() time.Time
	lastSweep    time.Time
}

func newTicker(a *app) *ticker {
	p := a.cfg.Pipeline
	return &ticker{
		runner:       a.orch,
		chains:       a.cfg.Chains,
		every:        p.Interval,
		sweepEvery:   p.SweepInterval,
		cycleTimeout: p.PlatformTimeout,
		logger:       a.logger,
		now:          time.Now,
	}
}

func (t *ticker) run(ctx context.Context) {
	tk := time.NewTicker(t.every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}
		t.tick(ctx)
	}
}

func (t *ticker) tick(ctx context.Context) {
	for _, chain := range t.chains {
		cctx, cancel := context.WithTimeout(ctx, t.cycleTimeout)
		if _, err := t.runner.RunCycle(cctx, chain); err != nil {
			t.logger.Error().Err(err).Str("chain", chain).Msg("scheduled cycle failed")
		}
		cancel()
	}

	if t.sweepEvery <= 0 || t.now().Sub(t.lastSweep) < t.sweepEvery {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, t.cycleTimeout)
	defer cancel()
	removed, err := t.runner.Sweep(sctx)
	if err != nil {
		t.logger.Error().Err(err).Msg("scheduled sweep failed")
		return
	}
	t.lastSweep = t.now()
	t.logger.Info().Interface("removed", removed).Msg("scheduled sweep complete")
}

func newSweepCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Apply record retention and flush",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags, func(c *config.Config) {
				c.Delivery.DryRun = true
			})
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.orch.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().Interface("removed", removed).Msg("sweep complete")
			return nil
		},
	}
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres substrate and ClickHouse archive migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags, func(c *config.Config) {
				c.Delivery.DryRun = true
			})
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			ran := false
			if cfg.Store.Backend == config.BackendPostgres {
				pool, err := pgstore.NewPool(ctx, cfg.Store.Postgres.DSN, pgstore.WithMaxConns(cfg.Store.Postgres.MaxConns))
				if err != nil {
					return err
				}
				defer pool.Close()
				applied, err := migrations.RunPostgres(ctx, pool, logger)
				if err != nil {
					return err
				}
				logger.Info().Strs("applied", applied).Msg("postgres migrations complete")
				ran = true
			}
			if cfg.Archive.DSN != "" {
				conn, err := migrations.RunClickHouse(ctx, cfg.Archive.DSN, logger)
				if err != nil {
					return err
				}
				conn.Close()
				logger.Info().Msg("clickhouse migrations complete")
				ran = true
			}
			if !ran {
				logger.Warn().Msg("nothing to migrate: store backend is not postgres and no archive dsn is set")
			}
			return nil
		},
	}
}
