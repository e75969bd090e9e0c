package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-money-tracker/internal/config"
	"smart-money-tracker/internal/orchestrator"
)

// newApp registers metrics on the default registry, so it is built once here.
func TestNewApp_DryRunCycle(t *testing.T) {
	market := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/signals", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":"0","data":[]}`))
	}))
	defer market.Close()

	cfg := &config.Config{
		Chains:   []string{"501"},
		Upstream: config.UpstreamConfig{MarketURL: market.URL, SecurityURL: market.URL},
		Delivery: config.DeliveryConfig{DryRun: true},
		Server:   config.ServerConfig{MetricsNamespace: "tracker_app_test"},
	}

	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.dryRun)

	summary, err := a.orch.RunCycle(context.Background(), "501")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Fetched)
	assert.False(t, summary.Degraded)
	assert.True(t, a.orch.StoreAvailable())
}

func TestNewMarket_SeparateSecurityClient(t *testing.T) {
	same := newMarket(config.UpstreamConfig{MarketURL: "http://a", SecurityURL: "http://a"}, nil, zerolog.Nop())
	assert.Same(t, same.Client, same.security)

	split := newMarket(config.UpstreamConfig{MarketURL: "http://a", SecurityURL: "http://b"}, nil, zerolog.Nop())
	assert.NotSame(t, split.Client, split.security)
}

func TestNewLogger_Level(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, zerolog.WarnLevel, newLogger(config.LogConfig{Level: "warn", Format: "json"}, f).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(config.LogConfig{}, f).GetLevel())
}

func TestPaceLimiter(t *testing.T) {
	assert.Nil(t, paceLimiter(0))
	assert.NotNil(t, paceLimiter(1))
}

type countingRunner struct {
	cycles []string
	sweeps int
}

func (r *countingRunner) RunCycle(_ context.Context, chainID string) (*orchestrator.Summary, error) {
	r.cycles = append(r.cycles, chainID)
	return &orchestrator.Summary{ChainID: chainID}, nil
}

func (r *countingRunner) Sweep(context.Context) (map[string]int, error) {
	r.sweeps++
	return map[string]int{}, nil
}

func (r *countingRunner) StoreAvailable() bool { return true }

func TestTicker_SweepsOncePerInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	runner := &countingRunner{}
	tk := &ticker{
		runner:       runner,
		chains:       []string{"501", "1"},
		every:        time.Minute,
		sweepEvery:   6 * time.Hour,
		cycleTimeout: time.Minute,
		logger:       zerolog.Nop(),
		now:          func() time.Time { return now },
	}

	tk.tick(context.Background())
	assert.Equal(t, []string{"501", "1"}, runner.cycles)
	assert.Equal(t, 1, runner.sweeps, "first tick sweeps")

	now = now.Add(time.Hour)
	tk.tick(context.Background())
	assert.Equal(t, 1, runner.sweeps)

	now = now.Add(5 * time.Hour)
	tk.tick(context.Background())
	assert.Equal(t, 2, runner.sweeps)
	assert.Len(t, runner.cycles, 6)

	tk.sweepEvery = 0
	now = now.Add(24 * time.Hour)
	tk.tick(context.Background())
	assert.Equal(t, 2, runner.sweeps, "disabled")
}
