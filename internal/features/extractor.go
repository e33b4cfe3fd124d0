// Package features turns a PriceSeries into the model's fixed-order feature vector.
package features

import (
	"errors"
	"fmt"
	"math"

	"BreakoutScanner/internal/calculator"
	"BreakoutScanner/internal/model"
)

// Config holds the window lengths used by the extractor.
type Config struct {
	ReturnWindow          int  `yaml:"return_window"`
	VolatilityWindow      int  `yaml:"volatility_window"`
	VolumeWindow          int  `yaml:"volume_window"`
	RSIPeriod             int  `yaml:"rsi_period"`
	MomentumWindow        int  `yaml:"momentum_window"`
	RangeWindow           int  `yaml:"range_window"`

	// VolumeIncludesCurrent selects the volume-spike baseline. False (the default)
	// divides volume[t] by the mean of volume[t-k..t-1], so a spike is not diluted by
	// itself and k flat bars followed by 2.5x volume read as 2.5. True uses the
	// trailing mean of volume[t-k+1..t] instead.
	VolumeIncludesCurrent bool `yaml:"volume_includes_current"`
}

// DefaultConfig returns the windows the shipped models were trained with.
func DefaultConfig() Config {
	return Config{
		ReturnWindow:     5,
		VolatilityWindow: 20,
		VolumeWindow:     5,
		RSIPeriod:        14,
		MomentumWindow:   5,
		RangeWindow:      20,
	}
}

// Extractor computes feature vectors. It is stateless and safe for concurrent use.
type Extractor struct {
	cfg Config
}

// NewExtractor validates the windows and returns an Extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	for name, w := range map[string]int{
		"return_window":     cfg.ReturnWindow,
		"volatility_window": cfg.VolatilityWindow,
		"volume_window":     cfg.VolumeWindow,
		"rsi_period":        cfg.RSIPeriod,
		"momentum_window":   cfg.MomentumWindow,
		"range_window":      cfg.RangeWindow,
	} {
		if w <= 0 {
			return nil, fmt.Errorf("features.%s must be positive", name)
		}
	}
	if cfg.VolatilityWindow < 2 {
		return nil, fmt.Errorf("features.volatility_window must be at least 2")
	}
	return &Extractor{cfg: cfg}, nil
}

// MinBars returns the shortest series Extract accepts.
func (e *Extractor) MinBars() int {
	need := []int{
		e.cfg.ReturnWindow + 1,
		e.cfg.VolatilityWindow + 1,
		e.cfg.RSIPeriod + 1,
		e.cfg.MomentumWindow + 1,
		e.cfg.VolumeWindow,
	}
	if !e.cfg.VolumeIncludesCurrent {
		need = append(need, e.cfg.VolumeWindow+1)
	}
	m := 2
	for _, n := range need {
		if n > m {
			m = n
		}
	}
	return m
}

// Extract computes the feature vector for the last bar of the series, using only
// bars up to and including it.
func (e *Extractor) Extract(series *model.PriceSeries) (model.FeatureVector, model.Indicators, error) {
	var fv model.FeatureVector
	if series == nil || series.Len() < e.MinBars() {
		have := 0
		if series != nil {
			have = series.Len()
		}
		return fv, model.Indicators{}, model.FeatureError(model.ReasonInsufficientWindow,
			fmt.Errorf("need %d bars, have %d", e.MinBars(), have))
	}

	closes := series.Closes()
	volumes := series.Volumes()
	for i := range closes {
		if !finite(closes[i]) || !finite(volumes[i]) {
			return fv, model.Indicators{}, model.FeatureError(model.ReasonDegenerateInput,
				fmt.Errorf("non-finite value at bar %d", i))
		}
	}

	returns, err := calculator.PctReturns(closes)
	if err != nil {
		return fv, model.Indicators{}, mapErr("returns", err)
	}
	fv[model.FeatureReturn1] = returns[len(returns)-1]

	if fv[model.FeatureAvgReturn], err = calculator.Mean(returns, e.cfg.ReturnWindow); err != nil {
		return fv, model.Indicators{}, mapErr("avg return", err)
	}

	vol, err := calculator.StdDev(returns, e.cfg.VolatilityWindow)
	if err != nil {
		return fv, model.Indicators{}, mapErr("volatility", err)
	}
	if vol == 0 {
		return fv, model.Indicators{}, model.FeatureError(model.ReasonDegenerateInput, errors.New("zero volatility"))
	}
	fv[model.FeatureVolatility] = vol

	if fv[model.FeatureVolumeRatio], err = calculator.VolumeRatio(volumes, e.cfg.VolumeWindow, e.cfg.VolumeIncludesCurrent); err != nil {
		return fv, model.Indicators{}, mapErr("volume ratio", err)
	}
	if fv[model.FeatureRSI], err = calculator.CalculateRSI(series.Bars, e.cfg.RSIPeriod); err != nil {
		return fv, model.Indicators{}, mapErr("rsi", err)
	}
	if fv[model.FeatureMomentum], err = calculator.Momentum(closes, e.cfg.MomentumWindow); err != nil {
		return fv, model.Indicators{}, mapErr("momentum", err)
	}

	for i, v := range fv {
		if !finite(v) {
			return fv, model.Indicators{}, model.FeatureError(model.ReasonDegenerateInput,
				fmt.Errorf("%s is not finite", model.FeatureNames[i]))
		}
	}

	ind := model.IndicatorsFrom(fv)
	if sma, err := calculator.CalculateSMA(closes, e.cfg.RangeWindow); err == nil {
		ind.SMA20 = sma
	}
	if h, l, err := calculator.CalculateHighLow(series.Bars, e.cfg.RangeWindow); err == nil {
		ind.HighN, ind.LowN = h, l
		ind.RangePos = calculator.RangePosition(closes[len(closes)-1], h, l)
	}
	return fv, ind, nil
}

func mapErr(what string, err error) error {
	if errors.Is(err, calculator.ErrInsufficientData) {
		return model.FeatureError(model.ReasonInsufficientWindow, fmt.Errorf("%s: %w", what, err))
	}
	return model.FeatureError(model.ReasonDegenerateInput, fmt.Errorf("%s: %w", what, err))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
