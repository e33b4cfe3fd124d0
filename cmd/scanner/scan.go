package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"BreakoutScanner/internal/export"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/recorder"
	"BreakoutScanner/internal/scanner"
	"BreakoutScanner/internal/universe"
)

type scanFlags struct {
	tickers     string
	watchlist   string
	horizon     string
	concurrency int
	csvPath     string
	xlsxPath    string
	jsonOut     bool
	record      bool
	saveList    string
}

func newScanCmd() *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan batch and print the ranked results",
		Long: `Run one scan batch over --tickers, the --watchlist file, or the
configured universe, and print results ranked by breakout score.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.tickers, "tickers", "", "comma separated tickers")
	cmd.Flags().StringVar(&f.watchlist, "watchlist", "", "watchlist file (one ticker per line or YAML list)")
	cmd.Flags().StringVar(&f.horizon, "horizon", "", "scoring horizon (default from config)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "worker pool size (default from config)")
	cmd.Flags().StringVar(&f.csvPath, "csv", "", "write results to a CSV file")
	cmd.Flags().StringVar(&f.xlsxPath, "xlsx", "", "write results to an XLSX file")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the batch as JSON")
	cmd.Flags().BoolVar(&f.record, "record", false, "store the batch in the configured database")
	cmd.Flags().StringVar(&f.saveList, "save-watchlist", "", "write the resolved tickers to a watchlist file")
	return cmd
}

func runScan(parent context.Context, f *scanFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := buildPipeline(cfg, nil)
	if err != nil {
		return err
	}

	explicit := universe.Split(f.tickers)
	if len(explicit) == 0 {
		explicit = cfg.Scan.Tickers
	}
	watchlist := f.watchlist
	if watchlist == "" && len(universe.Split(f.tickers)) == 0 {
		watchlist = cfg.Scan.Watchlist
	}
	tickers, err := universe.Resolve(explicit, watchlist)
	if err != nil {
		return err
	}
	if f.saveList != "" {
		if err := universe.SaveWatchlist(f.saveList, tickers); err != nil {
			return err
		}
		log.Info().Str("path", f.saveList).Int("tickers", len(tickers)).Msg("watchlist saved")
	}
	concurrency := f.concurrency
	if concurrency <= 0 {
		concurrency = cfg.Scan.Concurrency
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress scanner.ProgressFunc
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progress = func(p float64) {
			fmt.Fprintf(os.Stderr, "\rScanning %d tickers... %3.0f%%", len(tickers), p*100)
			if p >= 1 {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	batch, err := p.orch.Scan(ctx, scanner.Request{
		Tickers:     tickers,
		Horizon:     f.horizon,
		Concurrency: concurrency,
	}, progress)
	if err != nil && batch == nil {
		return err
	}
	if err != nil {
		fmt.Fprintln(os.Stderr)
		log.Warn().Err(err).Msg("scan interrupted, showing completed tickers")
	}

	if f.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batch); err != nil {
			return err
		}
	} else {
		printBatch(os.Stdout, batch)
	}

	if f.csvPath != "" {
		if err := writeFile(f.csvPath, func(w io.Writer) error { return export.WriteCSV(w, batch, false) }); err != nil {
			return err
		}
		log.Info().Str("path", f.csvPath).Msg("csv written")
	}
	if f.xlsxPath != "" {
		if err := writeFile(f.xlsxPath, func(w io.Writer) error { return export.WriteXLSX(w, batch) }); err != nil {
			return err
		}
		log.Info().Str("path", f.xlsxPath).Msg("xlsx written")
	}

	if f.record && err == nil && cfg.Database.Driver != "" {
		rec, rerr := recorder.NewSQLRecorder(cfg.Database.Driver, cfg.Database.DSN)
		if rerr != nil {
			return rerr
		}
		defer rec.Close()
		if rerr := rec.RecordBatch(ctx, batch); rerr != nil {
			return rerr
		}
	}

	if err != nil {
		return err
	}
	if len(batch.Results) == 0 {
		return errors.New("no ticker could be scanned")
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func printBatch(w io.Writer, batch *model.ScanBatch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TICKER\tPRICE\tSCORE\tDECISION\tTARGET\tSTOP\tRSI\tVOL RATIO\tMOMENTUM\n")
	for _, r := range batch.Results {
		fmt.Fprintf(tw, "%s\t%.2f\t%.3f\t%s\t%.2f\t%.2f\t%.1f\t%.2f\t%+.2f%%\n",
			r.Ticker, r.CurrentPrice, r.BreakoutScore, r.Decision, r.TargetPrice, r.StopLoss,
			r.Indicators.RSI, r.Indicators.VolumeRatio, r.Indicators.Momentum*100)
	}
	tw.Flush()

	if len(batch.Failures) > 0 {
		fmt.Fprintf(w, "\nFailed (%d):\n", len(batch.Failures))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, f := range batch.Failures {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Ticker, f.Kind, f.Stage, f.Message)
		}
		tw.Flush()
	}
	fmt.Fprintf(w, "\nbatch %s | horizon %s | %d scored, %d failed | %s\n",
		batch.ID, batch.Horizon, len(batch.Results), len(batch.Failures),
		batch.CompletedAt.Sub(batch.StartedAt).Round(time.Millisecond))
}
