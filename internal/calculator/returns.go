package calculator

import "math"

// PctReturns returns close[i]/close[i-1]-1 for every consecutive pair.
func PctReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, ErrInsufficientData
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return nil, ErrZeroDenominator
		}
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out, nil
}

// Mean returns the arithmetic mean of the last n values.
func Mean(values []float64, n int) (float64, error) {
	return CalculateSMA(values, n)
}

// StdDev returns the sample standard deviation of the last n values.
func StdDev(values []float64, n int) (float64, error) {
	if n < 2 {
		return 0, errBadPeriod
	}
	mean, err := Mean(values, n)
	if err != nil {
		return 0, err
	}
	var ss float64
	for _, v := range values[len(values)-n:] {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), nil
}

// Momentum returns close[t]/close[t-k]-1.
func Momentum(closes []float64, k int) (float64, error) {
	if k <= 0 {
		return 0, errBadPeriod
	}
	if len(closes) < k+1 {
		return 0, ErrInsufficientData
	}
	base := closes[len(closes)-1-k]
	if base == 0 {
		return 0, ErrZeroDenominator
	}
	return closes[len(closes)-1]/base - 1, nil
}

// VolumeRatio divides the last volume by the mean volume of a k-bar baseline.
// With includeCurrent the baseline is volume[t-k+1..t], otherwise volume[t-k..t-1].
func VolumeRatio(volumes []float64, k int, includeCurrent bool) (float64, error) {
	if k <= 0 {
		return 0, errBadPeriod
	}
	need := k
	if !includeCurrent {
		need = k + 1
	}
	if len(volumes) < need {
		return 0, ErrInsufficientData
	}
	window := volumes
	if !includeCurrent {
		window = volumes[:len(volumes)-1]
	}
	mean, err := Mean(window, k)
	if err != nil {
		return 0, err
	}
	if mean == 0 {
		return 0, ErrZeroDenominator
	}
	return volumes[len(volumes)-1] / mean, nil
}
