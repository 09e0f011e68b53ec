package cmd

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/internal/metrics"
	"github.com/rustyeddy/daytrader/internal/util"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Daily trading-decision engine and strategy research tool",
	Long: `Trader turns OHLCV bars into one auditable trading decision per day.

It provides tools for:
  - Backtesting an ensemble of strategies under session and risk rules
  - Emitting the daily decision (entry, stop, target, size or skip reason)
  - Walk-forward parameter optimisation
  - Monte Carlo robustness analysis
  - Querying the SQLite trade and decision journal

Settings come from --config (YAML or JSON), then .env and TRADER_* variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

var (
	cfgFile     string
	envFiles    []string
	logLevel    string
	metricsAddr string
	logJSON     bool

	log           zerolog.Logger
	metricsServer *http.Server
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "trader.yaml", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides log_level)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write JSON log lines instead of console output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	log = newLogger(logLevel)
	serveMetrics(metricsAddr)
	return nil
}

func serveMetrics(addr string) {
	if addr == "" || metricsServer != nil {
		return
	}
	metricsServer = metrics.Serve(addr, log)
	log.Info().Str("addr", addr).Msg("metrics server started")
}

func newLogger(level string) zerolog.Logger {
	if logJSON {
		return util.NewLogger(level)
	}
	return util.NewConsoleLogger(os.Stderr, level)
}

func teardown(*cobra.Command, []string) {
	if metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(ctx)
}

// loadConfig reads --config. A missing default file falls back to the
// built-in defaults plus environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFromFile(cfgFile)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		log.Debug().Str("config", cfgFile).Msg("config file not found, using defaults")
	} else if err != nil {
		return nil, err
	}
	if logLevel == "" {
		log = newLogger(cfg.LogLevel)
	}
	serveMetrics(cfg.MetricsAddr)
	return cfg, nil
}
