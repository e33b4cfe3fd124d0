package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"BreakoutScanner/internal/model"
)

// Mode selects how target prices are derived.
type Mode string

const (
	// ModeFixed uses fixed percentage offsets from the current price.
	ModeFixed Mode = "fixed"
	// ModeScoreScaled scales the target offset by the breakout probability.
	ModeScoreScaled Mode = "score_scaled"
)

// Config holds the decision constants.
type Config struct {
	Mode      Mode    `yaml:"mode"`
	TargetPct float64 `yaml:"target_pct"`
	StopPct   float64 `yaml:"stop_pct"`
	WatchBand float64 `yaml:"watch_band"`
}

// DefaultConfig returns +10% target, -5% stop, WATCH within 0.15 below the threshold.
func DefaultConfig() Config {
	return Config{Mode: ModeFixed, TargetPct: 0.10, StopPct: 0.05, WatchBand: 0.15}
}

// tier maps a probability margin over the threshold to an action.
type tier struct {
	MinMargin float64
	Action    model.Action
}

// Policy maps probabilities to decisions and price levels. Safe for concurrent use.
type Policy struct {
	cfg   Config
	tiers []tier
}

// NewPolicy validates cfg and builds the tier table.
func NewPolicy(cfg Config) (*Policy, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeFixed
	}
	if cfg.Mode != ModeFixed && cfg.Mode != ModeScoreScaled {
		return nil, fmt.Errorf("decision.mode %q is not fixed or score_scaled", cfg.Mode)
	}
	if cfg.TargetPct <= 0 {
		return nil, fmt.Errorf("decision.target_pct must be positive")
	}
	if cfg.StopPct <= 0 || cfg.StopPct >= 1 {
		return nil, fmt.Errorf("decision.stop_pct must be in (0,1)")
	}
	if cfg.WatchBand < 0 {
		return nil, fmt.Errorf("decision.watch_band must not be negative")
	}
	return &Policy{
		cfg: cfg,
		tiers: []tier{
			{0, model.ActionBuy},
			{-cfg.WatchBand, model.ActionWatch},
		},
	}, nil
}

// mapAction picks the first tier whose margin the probability reaches.
// A probability exactly at the threshold is a BUY.
func (p *Policy) mapAction(probability, threshold float64) model.Action {
	margin := probability - threshold
	for _, t := range p.tiers {
		if margin >= t.MinMargin {
			return t.Action
		}
	}
	return model.ActionHold
}

// Decide returns the action, target price and stop-loss for one ticker.
func (p *Policy) Decide(probability, currentPrice, threshold float64) (model.TradeSignal, error) {
	if math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) || currentPrice <= 0 {
		return model.TradeSignal{}, model.DecisionError(model.ReasonInvalidPrice,
			fmt.Errorf("current price %v", currentPrice))
	}
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return model.TradeSignal{}, model.DecisionError("invalid probability",
			fmt.Errorf("probability %v", probability))
	}

	targetPct := p.cfg.TargetPct
	if p.cfg.Mode == ModeScoreScaled {
		targetPct *= probability
	}
	price := decimal.NewFromFloat(currentPrice)
	target := roundLevel(price, price.Mul(decimal.NewFromFloat(1+targetPct)))
	stop := roundLevel(price, price.Mul(decimal.NewFromFloat(1-p.cfg.StopPct)))

	return model.TradeSignal{
		Action:      p.mapAction(probability, threshold),
		Probability: probability,
		Threshold:   threshold,
		TargetPrice: target,
		StopLoss:    stop,
	}, nil
}

// roundLevel rounds to cents for prices of a dollar or more and to four places below
// that. A rounding that lands on the price itself or on zero is dropped.
func roundLevel(price, level decimal.Decimal) float64 {
	places := int32(2)
	if price.LessThan(decimal.NewFromInt(1)) {
		places = 4
	}
	rounded := level.Round(places)
	if rounded.Sign() <= 0 || (!level.Equal(price) && rounded.Equal(price)) {
		rounded = level
	}
	f, _ := rounded.Float64()
	return f
}
