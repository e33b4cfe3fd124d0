package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScanner/internal/model"
)

// risingSeries builds n daily bars with closes from 100 to 130 and a flat 1M volume.
func risingSeries(n int) *model.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := 100 + 30*float64(i)/float64(n-1)
		bars[i] = model.OHLCV{
			Time:   start.AddDate(0, 0, i),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1e6,
		}
	}
	return &model.PriceSeries{Symbol: "TST", Interval: "1d", Bars: bars}
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	ext, err := NewExtractor(DefaultConfig())
	require.NoError(t, err)
	return ext
}

func TestExtract_VolumeSpike(t *testing.T) {
	ext := newExtractor(t)
	s := risingSeries(30)
	s.Bars[29].Volume = 2.5e6

	fv, ind, err := ext.Extract(s)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, fv[model.FeatureVolumeRatio], 1e-9)
	assert.Greater(t, fv[model.FeatureMomentum], 0.0)
	assert.Greater(t, fv[model.FeatureRSI], 50.0)
	assert.Greater(t, fv[model.FeatureVolatility], 0.0)
	assert.Greater(t, fv[model.FeatureReturn1], 0.0)

	assert.Equal(t, fv[model.FeatureRSI], ind.RSI)
	assert.Equal(t, fv[model.FeatureVolumeRatio], ind.VolumeRatio)
	assert.InDelta(t, 131.0, ind.HighN, 1e-9)
	assert.Greater(t, ind.SMA20, 100.0)
	assert.Greater(t, ind.RangePos, 0.5)
	assert.LessOrEqual(t, ind.RangePos, 1.0)
}

func TestExtract_RSIUsesTrailingWindow(t *testing.T) {
	ext := newExtractor(t)
	s := risingSeries(40)
	// A sharp drop well before the last 14 changes.
	s.Bars[5].Close = 80

	fv, _, err := ext.Extract(s)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fv[model.FeatureRSI])
}

func TestExtract_Idempotent(t *testing.T) {
	ext := newExtractor(t)
	s := risingSeries(40)

	a, _, err := ext.Extract(s)
	require.NoError(t, err)
	b, _, err := ext.Extract(s)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtract_NoLookahead(t *testing.T) {
	ext := newExtractor(t)
	s := risingSeries(40)

	want, _, err := ext.Extract(s.Truncate(30))
	require.NoError(t, err)

	// Changing bars after the cut must not move the vector.
	s.Bars[35].Close = 1000
	s.Bars[39].Volume = 9e9
	got, _, err := ext.Extract(s.Truncate(30))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExtract_InsufficientWindow(t *testing.T) {
	ext := newExtractor(t)

	_, _, err := ext.Extract(risingSeries(10))
	require.Error(t, err)
	assert.Equal(t, model.KindFeature, model.KindOf(err))
	assert.Equal(t, model.ReasonInsufficientWindow, model.ReasonOf(err))

	_, _, err = ext.Extract(nil)
	assert.Equal(t, model.ReasonInsufficientWindow, model.ReasonOf(err))
}

func TestExtract_MinBarsIsEnough(t *testing.T) {
	ext := newExtractor(t)
	assert.Equal(t, 21, ext.MinBars())

	_, _, err := ext.Extract(risingSeries(ext.MinBars()))
	assert.NoError(t, err)
	_, _, err = ext.Extract(risingSeries(ext.MinBars() - 1))
	assert.Error(t, err)
}

func TestExtract_DegenerateInput(t *testing.T) {
	ext := newExtractor(t)

	t.Run("constant prices", func(t *testing.T) {
		s := risingSeries(30)
		for i := range s.Bars {
			s.Bars[i].Close = 50
		}
		_, _, err := ext.Extract(s)
		require.Error(t, err)
		assert.Equal(t, model.ReasonDegenerateInput, model.ReasonOf(err))
	})

	t.Run("zero volume baseline", func(t *testing.T) {
		s := risingSeries(30)
		for i := range s.Bars {
			s.Bars[i].Volume = 0
		}
		_, _, err := ext.Extract(s)
		require.Error(t, err)
		assert.Equal(t, model.ReasonDegenerateInput, model.ReasonOf(err))
	})

	t.Run("nan close", func(t *testing.T) {
		s := risingSeries(30)
		s.Bars[12].Close = math.NaN()
		_, _, err := ext.Extract(s)
		require.Error(t, err)
		assert.Equal(t, model.KindFeature, model.KindOf(err))
	})
}

func TestDefaultConfig_VolumeBaselineExcludesCurrent(t *testing.T) {
	assert.False(t, DefaultConfig().VolumeIncludesCurrent)

	s := risingSeries(30)
	s.Bars[29].Volume = 2.5e6
	fv, _, err := newExtractor(t).Extract(s)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, fv[model.FeatureVolumeRatio], 1e-9)
}

func TestExtract_VolumeIncludesCurrent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VolumeIncludesCurrent = true
	ext, err := NewExtractor(cfg)
	require.NoError(t, err)

	s := risingSeries(30)
	s.Bars[29].Volume = 2.5e6
	fv, _, err := ext.Extract(s)
	require.NoError(t, err)
	assert.InDelta(t, 2.5/1.3, fv[model.FeatureVolumeRatio], 1e-9)
}

func TestNewExtractor_RejectsBadWindows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSIPeriod = 0
	_, err := NewExtractor(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.VolatilityWindow = 1
	_, err = NewExtractor(cfg)
	assert.Error(t, err)
}
