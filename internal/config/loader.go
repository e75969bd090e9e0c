package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and expands ${VAR} environment variables.
// An empty path starts from an empty config.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadAndValidate loads .env files, the config file and the environment
// overlay, applies defaults and validates.
// Priority order: environment > .env file > YAML file > defaults
func LoadAndValidate(path string, envFiles ...string) (*Config, error) {
	return LoadWith(path, envFiles, nil)
}

// LoadWith is LoadAndValidate with an override applied after the
// environment overlay and before defaults, used for command-line flags.
func LoadWith(path string, envFiles []string, override func(*Config)) (*Config, error) {
	if err := LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Environment variables that override the file.
const (
	EnvChains           = "TRACKER_CHAINS"
	EnvMarketURL        = "TRACKER_MARKET_URL"
	EnvSecurityURL      = "TRACKER_SECURITY_URL"
	EnvAPIKey           = "TRACKER_API_KEY"
	EnvMinWallets       = "TRACKER_MIN_WALLETS"
	EnvMinScore         = "TRACKER_MIN_SCORE"
	EnvStoreBackend     = "TRACKER_STORE_BACKEND"
	EnvDedupBackend     = "TRACKER_DEDUP_BACKEND"
	EnvBotToken         = "TELEGRAM_BOT_TOKEN"
	EnvPrimaryChannel   = "TELEGRAM_PRIMARY_CHANNEL"
	EnvSecondaryChannel = "TELEGRAM_SECONDARY_CHANNEL"
	EnvPostgresDSN      = "POSTGRES_DSN"
	EnvRedisAddr        = "REDIS_ADDR"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvClickHouseDSN    = "CLICKHOUSE_DSN"
	EnvLogLevel         = "LOG_LEVEL"
)

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvChains); v != "" {
		c.Chains = nil
		for _, ch := range strings.Split(v, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				c.Chains = append(c.Chains, ch)
			}
		}
	}
	setString(&c.Upstream.MarketURL, EnvMarketURL)
	setString(&c.Upstream.SecurityURL, EnvSecurityURL)
	setString(&c.Upstream.APIKey, EnvAPIKey)
	setString(&c.Store.Backend, EnvStoreBackend)
	setString(&c.Store.Postgres.DSN, EnvPostgresDSN)
	setString(&c.Dedup.Backend, EnvDedupBackend)
	setString(&c.Dedup.Redis.Addr, EnvRedisAddr)
	setString(&c.Dedup.Redis.Password, EnvRedisPassword)
	setString(&c.Delivery.BotToken, EnvBotToken)
	setString(&c.Delivery.Primary.Channel, EnvPrimaryChannel)
	setString(&c.Delivery.Secondary.Channel, EnvSecondaryChannel)
	setString(&c.Archive.DSN, EnvClickHouseDSN)
	setString(&c.Log.Level, EnvLogLevel)

	if v := os.Getenv(EnvMinWallets); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMinWallets, err)
		}
		c.Pipeline.MinWallets = n
	}
	if v := os.Getenv(EnvMinScore); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMinScore, err)
		}
		c.Pipeline.MinScore = f
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
