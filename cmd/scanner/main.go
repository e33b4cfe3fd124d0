package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"BreakoutScanner/internal/collector"
	"BreakoutScanner/internal/config"
	"BreakoutScanner/internal/features"
	"BreakoutScanner/internal/metrics"
	"BreakoutScanner/internal/scanner"
	"BreakoutScanner/internal/scorer"
	"BreakoutScanner/internal/strategy"
)

var (
	cfgPath string
	logJSON bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd := &cobra.Command{
		Use:   "scanner",
		Short: "Stock breakout scanner",
		Long: `Scans tickers for likely breakouts.

Each ticker is fetched, turned into a feature vector, scored by the
configured horizon model and mapped to BUY, WATCH or HOLD with target
and stop-loss prices.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside development.
			_ = godotenv.Load()
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", envOr("CONFIG_PATH", "configs/config.yaml"), "config file")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log JSON instead of console output")

	rootCmd.AddCommand(newScanCmd(), newServeCmd(), newEvaluateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig reads and validates the config, then configures logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if !logJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
		})
	}
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	switch cfg.DataSource.Provider {
	case "polygon":
		return collector.NewPolygonFetcher(cfg.DataSource.APIKey)
	case "mock":
		return &collector.MockFetcher{Price: 100}
	default:
		return collector.NewYahooFetcher(cfg.DataSource.BaseURL, cfg.Proxy)
	}
}

// pipeline holds the wired scan components.
type pipeline struct {
	collector *collector.Collector
	extractor *features.Extractor
	scorer    *scorer.Handle
	orch      *scanner.Orchestrator
}

// buildPipeline loads the model artifacts and wires the orchestrator. Artifact
// failures stop the process before any scan starts.
func buildPipeline(cfg *config.Config, reg *metrics.Registry) (*pipeline, error) {
	var obs collector.Observer
	var opts []scanner.Option
	if reg != nil {
		obs = reg
		opts = append(opts, scanner.WithObserver(reg))
	}

	fetcher := newFetcher(cfg)
	log.Info().Str("provider", fetcher.Name()).Msg("data source")
	col := collector.NewCollector(fetcher, cfg.Collector, obs)

	ext, err := features.NewExtractor(cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	handle, err := scorer.LoadArtifacts(cfg.Model.Horizons, cfg.Model.DefaultHorizon)
	if err != nil {
		return nil, err
	}
	log.Info().Strs("horizons", handle.Names()).Str("default", handle.Default()).Msg("model artifacts loaded")

	pol, err := strategy.NewPolicy(cfg.Decision)
	if err != nil {
		return nil, fmt.Errorf("decision: %w", err)
	}
	orch, err := scanner.New(col, ext, handle, pol, opts...)
	if err != nil {
		return nil, err
	}
	return &pipeline{collector: col, extractor: ext, scorer: handle, orch: orch}, nil
}
