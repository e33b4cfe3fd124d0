package labeling

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"BreakoutScanner/internal/features"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/scorer"
)

// SeriesSource fetches the history used for calibration. collector.Session satisfies it.
type SeriesSource interface {
	Fetch(ctx context.Context, ticker string, window int) (*model.PriceSeries, error)
}

// EvalConfig controls a calibration run.
type EvalConfig struct {
	HorizonDays  int
	ThresholdPct float64
	Lookback     int
}

// Report is the calibration result of one horizon.
type Report struct {
	Horizon     string      `json:"horizon"`
	Current     float64     `json:"current_threshold"`
	Calibration Calibration `json:"calibration"`
	Tickers     int         `json:"tickers"`
	Skipped     []string    `json:"skipped,omitempty"`
}

// Evaluate scores every labelled bar of every ticker on its own truncated prefix, so
// features never see the bars the label looks at, and tunes the horizon threshold.
func Evaluate(ctx context.Context, src SeriesSource, ext *features.Extractor, hz *scorer.Horizon, tickers []string, cfg EvalConfig) (*Report, error) {
	if cfg.HorizonDays <= 0 {
		days, ok := HorizonDays[hz.Name]
		if !ok {
			return nil, fmt.Errorf("no trading-day window for horizon %s", hz.Name)
		}
		cfg.HorizonDays = days
	}
	if cfg.ThresholdPct <= 0 {
		cfg.ThresholdPct = 0.10
	}

	rep := &Report{Horizon: hz.Name, Current: hz.Threshold}
	var probs []float64
	var truth []bool
	for _, t := range tickers {
		series, err := src.Fetch(ctx, t, cfg.Lookback)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Str("ticker", t).Err(err).Msg("calibration fetch failed")
			rep.Skipped = append(rep.Skipped, t)
			continue
		}
		labels, err := LabelSeries(series, cfg.HorizonDays, cfg.ThresholdPct)
		if err != nil {
			return nil, err
		}
		used := 0
		for i := ext.MinBars() - 1; i < series.Len(); i++ {
			if labels[i] == Unlabeled {
				continue
			}
			fv, _, err := ext.Extract(series.Truncate(i + 1))
			if err != nil {
				continue
			}
			p, err := hz.Score(fv)
			if err != nil {
				return nil, err
			}
			probs = append(probs, p)
			truth = append(truth, labels[i] == Positive)
			used++
		}
		if used == 0 {
			rep.Skipped = append(rep.Skipped, t)
			continue
		}
		rep.Tickers++
	}

	cal, err := TuneThreshold(probs, truth)
	if err != nil {
		return nil, fmt.Errorf("tune %s: %w", hz.Name, err)
	}
	rep.Calibration = cal
	return rep, nil
}
