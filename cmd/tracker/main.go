// Command tracker polls smart-money activity, scores the wallets behind each
// signal and delivers qualifying alerts.
//
// Usage:
//
//	tracker run    [--config file] [--chain id]   one cycle per chain, summary on stdout
//	tracker serve  [--config file]                HTTP invocation endpoint + optional ticker
//	tracker sweep  [--config file]                apply record retention
//	tracker migrate [--config file]               apply Postgres/ClickHouse migrations
package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"smart-money-tracker/internal/config"
)

const version = "v0.4.0"

type rootFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
	dryRun     bool
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var flags rootFlags
	rootCmd := &cobra.Command{
		Use:           "tracker",
		Short:         "Smart-money entry tracker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("TRACKER_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, ".env files to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "Deliver to an in-memory sink instead of Telegram")

	rootCmd.AddCommand(
		newRunCmd(&flags),
		newServeCmd(&flags),
		newSweepCmd(&flags),
		newMigrateCmd(&flags),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the global logger.
func loadConfig(flags *rootFlags, override func(*config.Config)) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadWith(flags.configPath, flags.envFiles, func(c *config.Config) {
		if flags.logLevel != "" {
			c.Log.Level = flags.logLevel
		}
		if flags.dryRun {
			c.Delivery.DryRun = true
		}
		if override != nil {
			override(c)
		}
	})
	if err != nil {
		return nil, log.Logger, err
	}

	logger := newLogger(cfg.Log, os.Stderr)
	log.Logger = logger
	return cfg, logger, nil
}

// newLogger builds a console logger on a terminal and JSON lines otherwise,
// unless the format is forced.
func newLogger(lc config.LogConfig, out *os.File) zerolog.Logger {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var w io.Writer = out
	switch lc.Format {
	case "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	case "json":
	default:
		if term.IsTerminal(int(out.Fd())) {
			w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "tracker").Logger()
}
