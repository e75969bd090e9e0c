package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
upstream:
  market_url: https://market.example
delivery:
  bot_token: 123:abc
  primary:
    channel: "-1001"
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
chains: ["501", "1"]
upstream:
  market_url: https://market.example
  timeout: 5s
pipeline:
  min_wallets: 2
  min_score: 0.5
  platform_timeout: 60s
  safety_margin: 10s
store:
  backend: telegram
  telegram:
    channels:
      index: "-100"
      signal: "-101"
      token: "-102"
      wallet: "-103"
    scratch: "-104"
`
	cfg, err := Load(writeTempFile(t, "config.yaml", yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Chains) != 2 || cfg.Chains[1] != "1" {
		t.Errorf("Chains = %v, want [501 1]", cfg.Chains)
	}
	if cfg.Upstream.Timeout != 5*time.Second {
		t.Errorf("Upstream.Timeout = %v, want 5s", cfg.Upstream.Timeout)
	}
	if cfg.Pipeline.MinScore != 0.5 {
		t.Errorf("Pipeline.MinScore = %v, want 0.5", cfg.Pipeline.MinScore)
	}
	if got := cfg.Pipeline.TimeBudget(); got != 50*time.Second {
		t.Errorf("TimeBudget = %v, want 50s", got)
	}
	if cfg.Store.Telegram.Channels["wallet"] != "-103" {
		t.Errorf("wallet channel = %q, want -103", cfg.Store.Telegram.Channels["wallet"])
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("SMT_TEST_BOT_TOKEN", "999:secret")

	yaml := `
delivery:
  bot_token: ${SMT_TEST_BOT_TOKEN}
`
	cfg, err := Load(writeTempFile(t, "config.yaml", yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Delivery.BotToken != "999:secret" {
		t.Errorf("Delivery.BotToken = %q, want 999:secret", cfg.Delivery.BotToken)
	}
}

func TestLoadAndValidate_Defaults(t *testing.T) {
	cfg, err := LoadAndValidate(writeTempFile(t, "config.yaml", minimalYAML), filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if len(cfg.Chains) != 1 || cfg.Chains[0] != "501" {
		t.Errorf("Chains = %v, want [501]", cfg.Chains)
	}
	if cfg.Upstream.SecurityURL != "https://market.example" {
		t.Errorf("SecurityURL = %q, want market url", cfg.Upstream.SecurityURL)
	}
	if cfg.Pipeline.MinWallets != DefaultMinWallets {
		t.Errorf("MinWallets = %d, want %d", cfg.Pipeline.MinWallets, DefaultMinWallets)
	}
	if got := cfg.Pipeline.TimeBudget(); got != DefaultPlatformTimeout-DefaultSafetyMargin {
		t.Errorf("TimeBudget = %v", got)
	}
	if cfg.Pipeline.SweepInterval != DefaultSweepInterval || cfg.Pipeline.FlushTimeout != DefaultFlushTimeout {
		t.Errorf("SweepInterval/FlushTimeout = %v/%v", cfg.Pipeline.SweepInterval, cfg.Pipeline.FlushTimeout)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Dedup.Backend != BackendMemory {
		t.Errorf("backends = %s/%s, want memory/memory", cfg.Store.Backend, cfg.Dedup.Backend)
	}
	if cfg.Store.Telegram.BotToken != "123:abc" {
		t.Errorf("store bot token should default to the delivery token, got %q", cfg.Store.Telegram.BotToken)
	}
}

func TestLoadAndValidate_EnvOverridesFile(t *testing.T) {
	t.Setenv(EnvChains, "1, 56,")
	t.Setenv(EnvMinScore, "0.25")
	t.Setenv(EnvPrimaryChannel, "-2002")
	t.Setenv(EnvDedupBackend, "redis")
	t.Setenv(EnvRedisAddr, "localhost:6379")

	cfg, err := LoadAndValidate(writeTempFile(t, "config.yaml", minimalYAML), filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if strings.Join(cfg.Chains, ",") != "1,56" {
		t.Errorf("Chains = %v, want [1 56]", cfg.Chains)
	}
	if cfg.Pipeline.MinScore != 0.25 {
		t.Errorf("MinScore = %v, want 0.25", cfg.Pipeline.MinScore)
	}
	if cfg.Delivery.Primary.Channel != "-2002" {
		t.Errorf("Primary.Channel = %q, want -2002", cfg.Delivery.Primary.Channel)
	}
	if cfg.Dedup.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Dedup.Redis.Addr)
	}
}

func TestLoadAndValidate_BadEnvNumber(t *testing.T) {
	t.Setenv(EnvMinWallets, "three")

	_, err := LoadAndValidate(writeTempFile(t, "config.yaml", minimalYAML), filepath.Join(t.TempDir(), "missing.env"))
	if err == nil || !strings.Contains(err.Error(), EnvMinWallets) {
		t.Fatalf("expected %s parse error, got %v", EnvMinWallets, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "SMT_TEST_DOTENV_CHANNEL"
	t.Cleanup(func() { os.Unsetenv(key) })

	env := writeTempFile(t, ".env", key+"=-3003\n")
	if err := LoadDotEnv(env); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv(key); got != "-3003" {
		t.Errorf("%s = %q, want -3003", key, got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestValidate_MissingDeliveryTarget(t *testing.T) {
	cfg := &Config{Upstream: UpstreamConfig{MarketURL: "https://market.example"}}
	cfg.applyDefaults()

	err := cfg.Validate()
	if !errors.Is(err, ErrMissingDeliveryTarget) {
		t.Fatalf("expected ErrMissingDeliveryTarget, got %v", err)
	}

	cfg.Delivery.DryRun = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("dry run needs no delivery target, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown store", func(c *Config) { c.Store.Backend = "s3" }, "store.backend"},
		{"telegram channels", func(c *Config) { c.Store.Backend = BackendTelegram }, "store.telegram.channels.index"},
		{"postgres dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, "store.postgres.dsn"},
		{"redis addr", func(c *Config) { c.Dedup.Backend = BackendRedis }, "dedup.redis.addr"},
		{"min score range", func(c *Config) { c.Pipeline.MinScore = 3 }, "min_score"},
		{"safety margin", func(c *Config) { c.Pipeline.SafetyMargin = c.Pipeline.PlatformTimeout }, "safety_margin"},
		{"sweep interval", func(c *Config) { c.Pipeline.SweepInterval = -time.Minute }, "sweep_interval"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Upstream: UpstreamConfig{MarketURL: "https://market.example"},
				Delivery: DeliveryConfig{BotToken: "t", Primary: TargetConfig{Channel: "-1"}},
			}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestTimeBudget(t *testing.T) {
	if got := (PipelineConfig{}).TimeBudget(); got != 0 {
		t.Errorf("unset platform timeout should be unbounded, got %v", got)
	}
	if got := (PipelineConfig{PlatformTimeout: time.Second, SafetyMargin: 2 * time.Second}).TimeBudget(); got != 0 {
		t.Errorf("budget must not go negative, got %v", got)
	}
}

func TestLoadWith_Override(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "upstream:\n  market_url: https://market.example\n")
	missing := []string{filepath.Join(t.TempDir(), "missing.env")}

	if _, err := LoadWith(path, missing, nil); !errors.Is(err, ErrMissingDeliveryTarget) {
		t.Fatalf("expected ErrMissingDeliveryTarget without override, got %v", err)
	}

	cfg, err := LoadWith(path, missing, func(c *Config) {
		c.Delivery.DryRun = true
		c.Log.Level = "debug"
	})
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}
