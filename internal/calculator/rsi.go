package calculator

import "BreakoutScanner/internal/model"

// CalculateRSI computes the RSI of the last period changes of the given bars.
// Requires at least period+1 bars. When the average loss is zero the RSI is 100.
func CalculateRSI(bars []model.OHLCV, period int) (float64, error) {
	return RSIFromCloses(extractCloses(bars), period)
}

// RSIFromCloses is CalculateRSI over raw close prices. Only the trailing period+1
// closes are read, so older history never moves the result.
func RSIFromCloses(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errBadPeriod
	}
	if len(closes) < period+1 {
		return 0, ErrInsufficientData
	}
	window := closes[len(closes)-period-1:]

	var avgGain, avgLoss float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
