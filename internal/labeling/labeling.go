// Package labeling builds forward-looking breakout labels and calibrates decision
// thresholds offline. Nothing here runs inside a live scan.
package labeling

import (
	"errors"
	"fmt"
	"sort"

	"BreakoutScanner/internal/model"
)

// Label is the training-time class of one bar.
type Label int8

const (
	Unlabeled Label = -1
	Negative  Label = 0
	Positive  Label = 1
)

// HorizonDays maps the configured horizon names to trading-day windows.
var HorizonDays = map[string]int{
	"1w": 5,
	"1m": 21,
	"3m": 63,
}

// LabelSeries marks bar t Positive when the highest close in (t, t+horizon] exceeds
// close[t]*(1+thresholdPct). Bars without a full forward window are Unlabeled.
func LabelSeries(series *model.PriceSeries, horizon int, thresholdPct float64) ([]Label, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if thresholdPct <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %v", thresholdPct)
	}
	n := series.Len()
	labels := make([]Label, n)
	for t := 0; t < n; t++ {
		if t+horizon >= n {
			labels[t] = Unlabeled
			continue
		}
		base := series.Bars[t].Close
		futureMax := series.Bars[t+1].Close
		for j := t + 2; j <= t+horizon; j++ {
			if c := series.Bars[j].Close; c > futureMax {
				futureMax = c
			}
		}
		if futureMax > base*(1+thresholdPct) {
			labels[t] = Positive
		} else {
			labels[t] = Negative
		}
	}
	return labels, nil
}

// Calibration is the outcome of a threshold search.
type Calibration struct {
	Threshold float64 `json:"threshold"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Samples   int     `json:"samples"`
	Positives int     `json:"positives"`
}

// ErrNoPositives is returned when the sample has no positive label, so F1 is undefined.
var ErrNoPositives = errors.New("no positive samples")

// TuneThreshold picks the cut point maximizing F1, predicting positive when p >= threshold.
// Candidates are the distinct scores; ties keep the lower threshold.
func TuneThreshold(probs []float64, labels []bool) (Calibration, error) {
	if len(probs) != len(labels) {
		return Calibration{}, fmt.Errorf("%d scores but %d labels", len(probs), len(labels))
	}
	if len(probs) == 0 {
		return Calibration{}, fmt.Errorf("empty sample")
	}
	positives := 0
	for _, l := range labels {
		if l {
			positives++
		}
	}
	if positives == 0 {
		return Calibration{}, ErrNoPositives
	}

	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	// Descending by score: walking the list grows the predicted-positive set.
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	best := Calibration{Threshold: 1, Samples: len(probs), Positives: positives, F1: -1}
	tp, fp := 0, 0
	for k := 0; k < len(idx); k++ {
		if labels[idx[k]] {
			tp++
		} else {
			fp++
		}
		// Only evaluate at the end of a run of equal scores.
		if k+1 < len(idx) && probs[idx[k+1]] == probs[idx[k]] {
			continue
		}
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(positives)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		// Thresholds only decrease along the walk, so >= keeps the lower one on ties.
		if f1 >= best.F1 {
			best.Threshold = probs[idx[k]]
			best.F1 = f1
			best.Precision = precision
			best.Recall = recall
		}
	}
	return best, nil
}
