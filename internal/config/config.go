// Package config loads the tracker configuration from a YAML file, the
// environment and an optional .env file.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Chains   []string       `yaml:"chains"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// UpstreamConfig holds market-data and security provider settings.
type UpstreamConfig struct {
	MarketURL         string        `yaml:"market_url"`
	SecurityURL       string        `yaml:"security_url"` // defaults to MarketURL
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	BreakerFailures   uint32        `yaml:"breaker_failures"` // consecutive failures before opening
	BreakerCooldown   time.Duration `yaml:"breaker_cooldown"`
}

// PipelineConfig holds per-cycle selection and pacing.
type PipelineConfig struct {
	Trend           string        `yaml:"trend"`
	PageSize        int           `yaml:"page_size"`
	MinWallets      int           `yaml:"min_wallets"`
	MinScore        float64       `yaml:"min_score"`
	MaxTokens       int           `yaml:"max_tokens"`
	WalletPace      time.Duration `yaml:"wallet_pace"`
	HistoryPace     time.Duration `yaml:"history_pace"`
	PlatformTimeout time.Duration `yaml:"platform_timeout"`
	SafetyMargin    time.Duration `yaml:"safety_margin"`
	FlushTimeout    time.Duration `yaml:"flush_timeout"` // end-of-cycle persistence, runs past the budget
	Interval        time.Duration `yaml:"interval"`      // serve mode ticker, 0 = invocation only

	// SweepInterval is how often the serve mode ticker applies retention.
	// Without a ticker retention only runs through `tracker sweep` or
	// POST /sweep, which must then be scheduled externally.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TimeBudget is the wall-clock ceiling for one cycle.
func (p PipelineConfig) TimeBudget() time.Duration {
	if p.PlatformTimeout <= 0 {
		return 0
	}
	return max(p.PlatformTimeout-p.SafetyMargin, 0)
}

// Store backends.
const (
	BackendTelegram = "telegram"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendFile     = "file"
)

// StoreConfig selects the record substrate.
type StoreConfig struct {
	Backend    string         `yaml:"backend"`
	MaxPayload int            `yaml:"max_payload"`
	Telegram   TelegramStore  `yaml:"telegram"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

// TelegramStore maps partitions to channels.
type TelegramStore struct {
	BotToken string            `yaml:"bot_token"` // defaults to Delivery.BotToken
	Channels map[string]string `yaml:"channels"`  // partition -> chat id
	Scratch  string            `yaml:"scratch"`   // chat used to read records back
}

// PostgresConfig holds a Postgres connection.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"` // 0 = pgx default
}

// DedupConfig selects the warm dedup tier.
type DedupConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	MaxKeys int           `yaml:"max_keys"`
	Redis   RedisConfig   `yaml:"redis"`
	File    FileConfig    `yaml:"file"`
}

// RedisConfig holds a Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// FileConfig locates the file-backed warm tier.
type FileConfig struct {
	Path string `yaml:"path"`
}

// DeliveryConfig holds the alert sinks.
type DeliveryConfig struct {
	BotToken      string        `yaml:"bot_token"`
	APIURL        string        `yaml:"api_url"`
	Primary       TargetConfig  `yaml:"primary"`
	Secondary     TargetConfig  `yaml:"secondary"`
	RenderURL     string        `yaml:"render_url"` // card image service, empty = text only
	RenderTimeout time.Duration `yaml:"render_timeout"`
	DryRun        bool          `yaml:"dry_run"` // deliver to an in-memory sink
}

// TargetConfig is one delivery channel.
type TargetConfig struct {
	Channel string `yaml:"channel"`
	Images  bool   `yaml:"images"`
}

// ArchiveConfig holds the optional ClickHouse outcome archive.
type ArchiveConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig holds the serve-mode HTTP listener.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto | console | json
}
