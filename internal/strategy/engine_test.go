package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScanner/internal/model"
)

func newPolicy(t *testing.T, cfg Config) *Policy {
	t.Helper()
	p, err := NewPolicy(cfg)
	require.NoError(t, err)
	return p
}

func TestDecide_ThresholdIsInclusive(t *testing.T) {
	p := newPolicy(t, DefaultConfig())

	sig, err := p.Decide(0.5, 100, 0.5)
	require.NoError(t, err)
	assert.Equal(t, model.ActionBuy, sig.Action)
	assert.Equal(t, 110.0, sig.TargetPrice)
	assert.Equal(t, 95.0, sig.StopLoss)
	assert.Equal(t, 0.5, sig.Probability)
	assert.Equal(t, 0.5, sig.Threshold)
}

func TestDecide_Tiers(t *testing.T) {
	p := newPolicy(t, DefaultConfig())

	tests := []struct {
		name string
		prob float64
		want model.Action
	}{
		{"well above", 0.91, model.ActionBuy},
		{"just below", 0.49, model.ActionWatch},
		{"inside band", 0.40, model.ActionWatch},
		{"below band", 0.30, model.ActionHold},
		{"zero", 0, model.ActionHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := p.Decide(tt.prob, 50, 0.5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sig.Action)
		})
	}
}

func TestDecide_NoWatchBand(t *testing.T) {
	p := newPolicy(t, Config{Mode: ModeFixed, TargetPct: 0.1, StopPct: 0.05})

	sig, err := p.Decide(0.49, 50, 0.5)
	require.NoError(t, err)
	assert.Equal(t, model.ActionHold, sig.Action)
}

func TestDecide_LevelsBracketPrice(t *testing.T) {
	p := newPolicy(t, DefaultConfig())

	for _, price := range []float64{0.37, 1, 12.345, 187.21, 4321.99} {
		sig, err := p.Decide(0.7, price, 0.5)
		require.NoError(t, err)
		assert.Greater(t, sig.TargetPrice, sig.StopLoss, "price %v", price)
		assert.GreaterOrEqual(t, sig.TargetPrice, price)
		assert.LessOrEqual(t, sig.StopLoss, price)
	}
}

func TestDecide_RoundsToCents(t *testing.T) {
	p := newPolicy(t, DefaultConfig())

	sig, err := p.Decide(0.7, 187.21, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 205.93, sig.TargetPrice)
	assert.Equal(t, 177.85, sig.StopLoss)
}

func TestDecide_SubDollarPrices(t *testing.T) {
	p := newPolicy(t, DefaultConfig())

	sig, err := p.Decide(0.9, 0.004, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0044, sig.TargetPrice)
	assert.Equal(t, 0.0038, sig.StopLoss)

	sig, err = p.Decide(0.9, 0.42, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.462, sig.TargetPrice)
	assert.Equal(t, 0.399, sig.StopLoss)

	// Four places would still collapse these to zero.
	sig, err = p.Decide(0.9, 0.00004, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.000044, sig.TargetPrice, 1e-12)
	assert.InDelta(t, 0.000038, sig.StopLoss, 1e-12)
	assert.Greater(t, sig.StopLoss, 0.0)
}

func TestDecide_ScoreScaled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeScoreScaled
	p := newPolicy(t, cfg)

	sig, err := p.Decide(0.5, 100, 0.4)
	require.NoError(t, err)
	assert.Equal(t, model.ActionBuy, sig.Action)
	assert.Equal(t, 105.0, sig.TargetPrice)
	assert.Equal(t, 95.0, sig.StopLoss)
}

func TestDecide_InvalidPrice(t *testing.T) {
	p := newPolicy(t, DefaultConfig())

	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := p.Decide(0.7, price, 0.5)
		require.Error(t, err)
		assert.Equal(t, model.KindDecision, model.KindOf(err))
		assert.Equal(t, model.ReasonInvalidPrice, model.ReasonOf(err))
	}
}

func TestDecide_InvalidProbability(t *testing.T) {
	p := newPolicy(t, DefaultConfig())

	for _, prob := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := p.Decide(prob, 100, 0.5)
		require.Error(t, err)
		assert.Equal(t, model.KindDecision, model.KindOf(err))
	}
}

func TestNewPolicy_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown mode", Config{Mode: "aggressive", TargetPct: 0.1, StopPct: 0.05}},
		{"zero target", Config{Mode: ModeFixed, StopPct: 0.05}},
		{"stop at 100%", Config{Mode: ModeFixed, TargetPct: 0.1, StopPct: 1}},
		{"negative band", Config{Mode: ModeFixed, TargetPct: 0.1, StopPct: 0.05, WatchBand: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.cfg)
			assert.Error(t, err)
		})
	}
}
