package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"smart-money-tracker/internal/records"
)

// ErrMissingDeliveryTarget is returned when no primary channel is configured
// and the run is not a dry run.
var ErrMissingDeliveryTarget = errors.New("delivery: primary channel is required")

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Chains) == 0 {
		errs = append(errs, errors.New("chains: at least one chain is required"))
	}
	if c.Upstream.MarketURL == "" {
		errs = append(errs, errors.New("upstream.market_url is required"))
	}
	if c.Upstream.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("upstream.requests_per_second must not be negative"))
	}

	p := c.Pipeline
	if p.MinWallets < 0 {
		errs = append(errs, errors.New("pipeline.min_wallets must not be negative"))
	}
	if p.MinScore < -2 || p.MinScore > 2 {
		errs = append(errs, fmt.Errorf("pipeline.min_score %.2f is outside [-2, 2]", p.MinScore))
	}
	if p.PlatformTimeout > 0 && p.SafetyMargin >= p.PlatformTimeout {
		errs = append(errs, errors.New("pipeline.safety_margin must be shorter than platform_timeout"))
	}
	if p.SweepInterval < 0 {
		errs = append(errs, errors.New("pipeline.sweep_interval must not be negative"))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendTelegram:
		if c.Store.Telegram.BotToken == "" {
			errs = append(errs, errors.New("store.telegram.bot_token is required"))
		}
		for _, part := range []string{records.PartitionIndex, records.PartitionSignal, records.PartitionToken, records.PartitionWallet} {
			if c.Store.Telegram.Channels[part] == "" {
				errs = append(errs, fmt.Errorf("store.telegram.channels.%s is required", part))
			}
		}
		if c.Store.Telegram.Scratch == "" {
			errs = append(errs, errors.New("store.telegram.scratch is required"))
		}
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of telegram, postgres, memory", c.Store.Backend))
	}

	switch c.Dedup.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Dedup.Redis.Addr == "" {
			errs = append(errs, errors.New("dedup.redis.addr is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("dedup.backend %q is not one of redis, file, memory", c.Dedup.Backend))
	}

	if !c.Delivery.DryRun {
		if c.Delivery.Primary.Channel == "" {
			errs = append(errs, ErrMissingDeliveryTarget)
		}
		if c.Delivery.BotToken == "" {
			errs = append(errs, errors.New("delivery.bot_token is required"))
		}
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of auto, console, json", c.Log.Format))
	}

	return errors.Join(errs...)
}
