package config

import (
	"time"

	"smart-money-tracker/internal/address"
)

// Default values for optional configuration fields.
const (
	DefaultTimeout           = 15 * time.Second
	DefaultMaxRetries        = 3
	DefaultRequestsPerSecond = 2
	DefaultBurst             = 1
	DefaultBreakerFailures   = 5
	DefaultBreakerCooldown   = 30 * time.Second
	DefaultTrend             = "1"
	DefaultPageSize          = 20
	DefaultMinWallets        = 3
	DefaultMaxTokens         = 10
	DefaultWalletPace        = 300 * time.Millisecond
	DefaultPlatformTimeout   = 5 * time.Minute
	DefaultSafetyMargin      = 30 * time.Second
	DefaultFlushTimeout      = 30 * time.Second
	DefaultSweepInterval     = 6 * time.Hour
	DefaultStoreBackend      = BackendMemory
	DefaultDedupBackend      = BackendMemory
	DefaultDedupTTL          = 6 * time.Hour
	DefaultDedupMaxKeys      = 1000
	DefaultDedupFile         = "/tmp/smart-money-tracker/seen.jsonl"
	DefaultRenderTimeout     = 10 * time.Second
	DefaultServerAddr        = ":8080"
	DefaultMetricsNamespace  = "smart_money_tracker"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "auto"
)

func (c *Config) applyDefaults() {
	if len(c.Chains) == 0 {
		c.Chains = []string{address.ChainSolana}
	}

	// Upstream defaults
	u := &c.Upstream
	if u.SecurityURL == "" {
		u.SecurityURL = u.MarketURL
	}
	if u.Timeout == 0 {
		u.Timeout = DefaultTimeout
	}
	if u.MaxRetries == 0 {
		u.MaxRetries = DefaultMaxRetries
	}
	if u.RequestsPerSecond == 0 {
		u.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if u.Burst == 0 {
		u.Burst = DefaultBurst
	}
	if u.BreakerFailures == 0 {
		u.BreakerFailures = DefaultBreakerFailures
	}
	if u.BreakerCooldown == 0 {
		u.BreakerCooldown = DefaultBreakerCooldown
	}

	// Pipeline defaults
	p := &c.Pipeline
	if p.Trend == "" {
		p.Trend = DefaultTrend
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.MinWallets == 0 {
		p.MinWallets = DefaultMinWallets
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.WalletPace == 0 {
		p.WalletPace = DefaultWalletPace
	}
	if p.PlatformTimeout == 0 {
		p.PlatformTimeout = DefaultPlatformTimeout
	}
	if p.SafetyMargin == 0 {
		p.SafetyMargin = DefaultSafetyMargin
	}
	if p.FlushTimeout == 0 {
		p.FlushTimeout = DefaultFlushTimeout
	}
	if p.SweepInterval == 0 {
		p.SweepInterval = DefaultSweepInterval
	}

	// Store defaults
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Store.Telegram.BotToken == "" {
		c.Store.Telegram.BotToken = c.Delivery.BotToken
	}

	// Dedup defaults
	d := &c.Dedup
	if d.Backend == "" {
		d.Backend = DefaultDedupBackend
	}
	if d.TTL == 0 {
		d.TTL = DefaultDedupTTL
	}
	if d.MaxKeys == 0 {
		d.MaxKeys = DefaultDedupMaxKeys
	}
	if d.File.Path == "" {
		d.File.Path = DefaultDedupFile
	}

	// Delivery defaults
	if c.Delivery.RenderTimeout == 0 {
		c.Delivery.RenderTimeout = DefaultRenderTimeout
	}

	// Server and logging defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.MetricsNamespace == "" {
		c.Server.MetricsNamespace = DefaultMetricsNamespace
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
