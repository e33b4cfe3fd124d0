package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"BreakoutScanner/internal/labeling"
	"BreakoutScanner/internal/universe"
)

type evalFlags struct {
	tickers      string
	horizon      string
	lookback     int
	thresholdPct float64
	jsonOut      bool
}

func newEvaluateCmd() *cobra.Command {
	f := &evalFlags{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Calibrate horizon thresholds on historical data",
		Long: `Label each historical bar with whether the close broke out within the
horizon, score the bar on the history available up to it, and report the
threshold that maximizes F1 next to the configured one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.tickers, "tickers", "", "comma separated tickers (default universe when empty)")
	cmd.Flags().StringVar(&f.horizon, "horizon", "", "single horizon to evaluate (all when empty)")
	cmd.Flags().IntVar(&f.lookback, "lookback", 500, "bars of history per ticker")
	cmd.Flags().Float64Var(&f.thresholdPct, "threshold-pct", 0.10, "breakout gain over the horizon")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print reports as JSON")
	return cmd
}

func runEvaluate(ctx context.Context, f *evalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := buildPipeline(cfg, nil)
	if err != nil {
		return err
	}
	tickers, err := universe.Resolve(universe.Split(f.tickers), "")
	if err != nil {
		return err
	}

	names := p.scorer.Names()
	if f.horizon != "" {
		names = []string{f.horizon}
	}

	session := p.collector.NewSession()
	var reports []*labeling.Report
	for _, name := range names {
		hz, err := p.scorer.Horizon(name)
		if err != nil {
			return err
		}
		rep, err := labeling.Evaluate(ctx, session, p.extractor, hz, tickers, labeling.EvalConfig{
			ThresholdPct: f.thresholdPct,
			Lookback:     f.lookback,
		})
		if errors.Is(err, labeling.ErrNoPositives) {
			log.Warn().Str("horizon", name).Msg("no breakouts in sample, skipping")
			continue
		}
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	}

	if f.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "HORIZON\tCURRENT\tBEST\tF1\tPRECISION\tRECALL\tSAMPLES\tPOSITIVES\tTICKERS\n")
	for _, r := range reports {
		c := r.Calibration
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%d\t%d\t%d\n",
			r.Horizon, r.Current, c.Threshold, c.F1, c.Precision, c.Recall, c.Samples, c.Positives, r.Tickers)
	}
	return tw.Flush()
}
