package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScanner/internal/model"
)

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestCalculateSMA(t *testing.T) {
	sma, err := CalculateSMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, sma, 1e-12)

	_, err = CalculateSMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = CalculateSMA([]float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestRSI_AllGainsIs100(t *testing.T) {
	rsi, err := RSIFromCloses(rising(30, 100, 1), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)
}

func TestRSI_IgnoresLossesBeforeWindow(t *testing.T) {
	closes := append([]float64{100}, rising(28, 90, 1)...)
	rsi, err := RSIFromCloses(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)

	// Same trailing window, different history.
	tail, err := RSIFromCloses(closes[len(closes)-15:], 14)
	require.NoError(t, err)
	assert.Equal(t, tail, rsi)
}

func TestRSI_WindowValue(t *testing.T) {
	// Eight gains of 1 and six losses of 2 in the last 14 changes.
	closes := []float64{50, 40}
	c := 100.0
	closes = append(closes, c)
	for i := 0; i < 8; i++ {
		c++
		closes = append(closes, c)
	}
	for i := 0; i < 6; i++ {
		c -= 2
		closes = append(closes, c)
	}
	rsi, err := RSIFromCloses(closes, 14)
	require.NoError(t, err)
	assert.InDelta(t, 100-100/(1+8.0/12.0), rsi, 1e-9)
}

func TestRSI_AllLossesIsZero(t *testing.T) {
	rsi, err := RSIFromCloses(rising(30, 200, -1), 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rsi, 1e-9)
}

func TestRSI_Bounded(t *testing.T) {
	closes := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.2, 45.6, 46.3, 46.3, 46.0, 46.4, 46.2, 45.6}
	rsi, err := RSIFromCloses(closes, 14)
	require.NoError(t, err)
	assert.Greater(t, rsi, 0.0)
	assert.Less(t, rsi, 100.0)

	_, err = RSIFromCloses(closes[:14], 14)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCalculateRSI_UsesCloses(t *testing.T) {
	closes := rising(20, 10, 0.5)
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Close: c}
	}
	a, err := CalculateRSI(bars, 14)
	require.NoError(t, err)
	b, err := RSIFromCloses(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestPctReturns(t *testing.T) {
	r, err := PctReturns([]float64{100, 110, 99})
	require.NoError(t, err)
	require.Len(t, r, 2)
	assert.InDelta(t, 0.10, r[0], 1e-12)
	assert.InDelta(t, -0.10, r[1], 1e-12)

	_, err = PctReturns([]float64{0, 1})
	assert.ErrorIs(t, err, ErrZeroDenominator)
	_, err = PctReturns([]float64{1})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestStdDev(t *testing.T) {
	sd, err := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(32.0/7.0), sd, 1e-12)

	sd, err = StdDev([]float64{3, 3, 3}, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sd)

	_, err = StdDev([]float64{1, 2}, 1)
	assert.Error(t, err)
}

func TestMomentum(t *testing.T) {
	m, err := Momentum([]float64{100, 101, 102, 103, 104, 110}, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, m, 1e-12)

	_, err = Momentum([]float64{100, 110}, 5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestVolumeRatio(t *testing.T) {
	vols := []float64{1e6, 1e6, 1e6, 1e6, 1e6, 2.5e6}

	r, err := VolumeRatio(vols, 5, false)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, r, 1e-12)

	r, err = VolumeRatio(vols, 5, true)
	require.NoError(t, err)
	assert.InDelta(t, 2.5e6/1.3e6, r, 1e-12)

	_, err = VolumeRatio(vols[1:], 5, false)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = VolumeRatio([]float64{0, 0, 0, 5}, 3, false)
	assert.ErrorIs(t, err, ErrZeroDenominator)
}

func TestCalculateHighLow(t *testing.T) {
	bars := []model.OHLCV{
		{High: 12, Low: 8},
		{High: 15, Low: 9},
		{High: 11, Low: 10},
	}
	h, l, err := CalculateHighLow(bars, 2)
	require.NoError(t, err)
	assert.Equal(t, 15.0, h)
	assert.Equal(t, 9.0, l)

	h, l, err = CalculateHighLow(bars, 10)
	require.NoError(t, err)
	assert.Equal(t, 15.0, h)
	assert.Equal(t, 8.0, l)

	_, _, err = CalculateHighLow(nil, 5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRangePosition(t *testing.T) {
	assert.InDelta(t, 0.5, RangePosition(15, 20, 10), 1e-12)
	assert.Equal(t, 1.0, RangePosition(25, 20, 10))
	assert.Equal(t, 0.0, RangePosition(5, 20, 10))
	assert.Equal(t, 0.5, RangePosition(5, 10, 10))
}
