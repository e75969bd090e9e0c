package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"smart-money-tracker/internal/classifier"
	"smart-money-tracker/internal/config"
	"smart-money-tracker/internal/dedup"
	"smart-money-tracker/internal/delivery"
	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/observability"
	"smart-money-tracker/internal/orchestrator"
	"smart-money-tracker/internal/records"
	"smart-money-tracker/internal/storage"
	chstore "smart-money-tracker/internal/storage/clickhouse"
	"smart-money-tracker/internal/storage/memory"
	"smart-money-tracker/internal/storage/migrations"
	pgstore "smart-money-tracker/internal/storage/postgres"
	tgstore "smart-money-tracker/internal/storage/telegram"
	"smart-money-tracker/internal/telegram"
	"smart-money-tracker/internal/upstream"
)

// app holds the wired components for one process.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	orch    *orchestrator.Orchestrator
	dryRun  *delivery.MemorySink // set in dry-run mode
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// market joins the market-data client with a security client that may use a
// different base URL.
type market struct {
	*upstream.Client
	security *upstream.Client
}

func (m market) FetchSecurity(ctx context.Context, chainID, token string) (domain.SecurityReport, error) {
	return m.security.FetchSecurity(ctx, chainID, token)
}

// newApp wires every component from the configuration.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(cfg.Server.MetricsNamespace),
	}

	mkt := newMarket(cfg.Upstream, a.metrics, logger)
	scorer := classifier.NewScorer(classifier.ScorerOptions{
		Market:  mkt,
		Limiter: paceLimiter(cfg.Pipeline.HistoryPace),
		Logger:  logger,
	})

	ledger, err := a.newLedger(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	warm, err := a.newWarmTier()
	if err != nil {
		a.Close()
		return nil, err
	}

	archive, err := a.newArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	dispatcher := a.newDispatcher()
	logger.Info().
		Strs("targets", dispatcher.Targets()).
		Bool("dry_run", cfg.Delivery.DryRun).
		Str("store", cfg.Store.Backend).
		Msg("delivery configured")

	p := cfg.Pipeline
	a.orch = orchestrator.New(orchestrator.Options{
		Market:       mkt,
		Scorer:       scorer,
		Delivery:     dispatcher,
		Ledger:       ledger,
		Warm:         warm,
		Archive:      archive,
		Metrics:      a.metrics,
		Logger:       logger,
		Trend:        p.Trend,
		PageSize:     p.PageSize,
		MinWallets:   p.MinWallets,
		MinScore:     p.MinScore,
		MaxTokens:    p.MaxTokens,
		WalletPace:   p.WalletPace,
		TimeBudget:   p.TimeBudget(),
		FlushTimeout: p.FlushTimeout,
	})
	return a, nil
}

func newMarket(uc config.UpstreamConfig, metrics *observability.Metrics, logger zerolog.Logger) market {
	limit := rate.Inf
	if uc.RequestsPerSecond > 0 {
		limit = rate.Limit(uc.RequestsPerSecond)
	}

	// One limiter and one breaker budget per provider host.
	build := func(baseURL string) *upstream.Client {
		return upstream.NewClient(baseURL,
			upstream.WithTimeout(uc.Timeout),
			upstream.WithMaxRetries(uc.MaxRetries),
			upstream.WithAPIKey(uc.APIKey),
			upstream.WithLimiter(rate.NewLimiter(limit, max(uc.Burst, 1))),
			upstream.WithBreaker(gobreaker.Settings{
				Name:    baseURL,
				Timeout: uc.BreakerCooldown,
				ReadyToTrip: func(c gobreaker.Counts) bool {
					return c.ConsecutiveFailures >= max(uc.BreakerFailures, 1)
				},
			}),
			upstream.WithObserver(metrics.UpstreamObserver()),
			upstream.WithLogger(logger),
		)
	}

	m := market{Client: build(uc.MarketURL)}
	m.security = m.Client
	if uc.SecurityURL != uc.MarketURL {
		m.security = build(uc.SecurityURL)
	}
	return m
}

func paceLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

func (a *app) newLedger(ctx context.Context) (*records.Ledger, error) {
	sc := a.cfg.Store
	var sub storage.Substrate
	switch sc.Backend {
	case config.BackendTelegram:
		opts := []telegram.ClientOption{telegram.WithLogger(a.logger)}
		if a.cfg.Delivery.APIURL != "" {
			opts = append(opts, telegram.WithBaseURL(a.cfg.Delivery.APIURL))
		}
		api := telegram.NewClient(sc.Telegram.BotToken, opts...)
		sub = tgstore.NewSubstrate(api, sc.Telegram.Channels, sc.Telegram.Scratch, sc.MaxPayload)
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, sc.Postgres.DSN, pgstore.WithMaxConns(sc.Postgres.MaxConns))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		sub = pgstore.NewSubstrate(pool, sc.MaxPayload)
	default:
		sub = memory.NewSubstrate(sc.MaxPayload)
	}

	return records.NewLedger(records.Options{
		Substrate: sub,
		Logger:    a.logger,
		Observer:  a.metrics.StoreObserver(),
	}), nil
}

func (a *app) newWarmTier() (dedup.WarmTier, error) {
	dc := a.cfg.Dedup
	switch dc.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     dc.Redis.Addr,
			Password: dc.Redis.Password,
			DB:       dc.Redis.DB,
		})
		a.closers = append(a.closers, func() { client.Close() })
		return dedup.NewRedisWarmTier(client, dc.Redis.Prefix, dc.TTL, dc.MaxKeys), nil
	case config.BackendFile:
		tier, err := dedup.NewFileWarmTier(dc.File.Path, dc.TTL)
		if err != nil {
			return nil, fmt.Errorf("file warm tier: %w", err)
		}
		return tier, nil
	default:
		return dedup.NewMemoryWarmTier(dc.TTL), nil
	}
}

func (a *app) newArchive(ctx context.Context) (storage.SignalArchive, error) {
	if a.cfg.Archive.DSN == "" {
		return nil, nil
	}
	conn, err := migrations.RunClickHouse(ctx, a.cfg.Archive.DSN, a.logger)
	if err != nil {
		return nil, fmt.Errorf("outcome archive: %w", err)
	}
	a.closers = append(a.closers, func() { conn.Close() })
	return chstore.NewSignalArchive(conn), nil
}

func (a *app) newDispatcher() *delivery.Dispatcher {
	dc := a.cfg.Delivery

	var sink delivery.Sink
	if dc.DryRun {
		a.dryRun = delivery.NewMemorySink()
		sink = a.dryRun
	} else {
		opts := []telegram.ClientOption{telegram.WithLogger(a.logger)}
		if dc.APIURL != "" {
			opts = append(opts, telegram.WithBaseURL(dc.APIURL))
		}
		sink = delivery.NewTelegramSink(telegram.NewClient(dc.BotToken, opts...))
	}

	primary := dc.Primary.Channel
	if dc.DryRun && primary == "" {
		primary = "dry-run"
	}
	opts := delivery.Options{
		Primary: delivery.Target{
			Name:    "primary",
			Sink:    sink,
			Channel: primary,
			Variant: delivery.VariantDetailed,
			Images:  dc.Primary.Images,
		},
		Secondary: delivery.Target{
			Name:    "secondary",
			Sink:    sink,
			Channel: dc.Secondary.Channel,
			Variant: delivery.VariantRedacted,
			Images:  dc.Secondary.Images,
		},
		Logger: a.logger,
	}
	if dc.RenderURL != "" {
		opts.Renderer = delivery.NewHTTPRenderer(dc.RenderURL, dc.RenderTimeout)
	}
	return delivery.NewDispatcher(opts)
}
