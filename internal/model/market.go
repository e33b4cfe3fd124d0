package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries holds the daily bars of one ticker, ascending by date with unique dates.
type PriceSeries struct {
	Symbol    string
	Interval  string
	Bars      []OHLCV
	FetchedAt time.Time
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Last returns the most recent bar. The series must not be empty.
func (s *PriceSeries) Last() OHLCV { return s.Bars[len(s.Bars)-1] }

// Closes returns the close prices in bar order.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volumes in bar order.
func (s *PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Truncate returns a view of the series ending at index end (exclusive).
// The bars slice is shared, so callers must not modify it.
func (s *PriceSeries) Truncate(end int) *PriceSeries {
	if end > len(s.Bars) {
		end = len(s.Bars)
	}
	return &PriceSeries{
		Symbol:    s.Symbol,
		Interval:  s.Interval,
		Bars:      s.Bars[:end:end],
		FetchedAt: s.FetchedAt,
	}
}
