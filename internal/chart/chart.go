// Package chart renders price history images for the API and Telegram reports.
package chart

import (
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"BreakoutScanner/internal/model"
)

// Levels are optional horizontal lines drawn over the close series.
type Levels struct {
	Target float64
	Stop   float64
}

// RenderCloses draws the close series of series as a PNG.
func RenderCloses(w io.Writer, series *model.PriceSeries, lv Levels) error {
	if series == nil || series.Len() < 2 {
		return fmt.Errorf("chart needs at least two bars")
	}
	xs := make([]time.Time, series.Len())
	for i, b := range series.Bars {
		xs[i] = b.Time
	}
	closes := series.Closes()

	plots := []chart.Series{
		chart.TimeSeries{
			Name:    "Close",
			XValues: xs,
			YValues: closes,
		},
	}
	if lv.Target > 0 {
		plots = append(plots, levelLine("Target", xs, lv.Target, chart.ColorGreen))
	}
	if lv.Stop > 0 {
		plots = append(plots, levelLine("Stop", xs, lv.Stop, chart.ColorRed))
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s - last %d sessions", series.Symbol, series.Len()),
		Width:  1000,
		Height: 400,
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price ($)",
		},
		Series: plots,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func levelLine(name string, xs []time.Time, level float64, color drawing.Color) chart.TimeSeries {
	ys := make([]float64, len(xs))
	for i := range ys {
		ys[i] = level
	}
	return chart.TimeSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor:     color,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	}
}
