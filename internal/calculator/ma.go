package calculator

import (
	"errors"

	"BreakoutScanner/internal/model"
)

var (
	// ErrInsufficientData is returned when a window is longer than the input.
	ErrInsufficientData = errors.New("not enough data")
	// ErrZeroDenominator is returned instead of producing NaN or Inf.
	ErrZeroDenominator = errors.New("zero denominator")
	errBadPeriod       = errors.New("period must be positive")
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errBadPeriod
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
