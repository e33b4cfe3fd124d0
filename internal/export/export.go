// Package export writes scan batches as CSV or XLSX tables, one row per ticker.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"BreakoutScanner/internal/model"
)

// ResultColumns is the header of the results table.
var ResultColumns = []string{
	"ticker", "horizon", "as_of", "current_price", "breakout_score", "threshold",
	"decision", "target_price", "stop_loss",
	"return_1d", "avg_return", "volatility", "volume_ratio", "rsi", "momentum",
	"sma20", "high_n", "low_n", "range_pos",
}

// FailureColumns is the header of the failures table.
var FailureColumns = []string{"ticker", "error_kind", "stage", "message"}

func f4(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func resultRow(r model.ScanResult) []string {
	ind := r.Indicators
	return []string{
		r.Ticker, r.Horizon, r.AsOf.Format("2006-01-02"), f2(r.CurrentPrice), f4(r.BreakoutScore), f4(r.Threshold),
		string(r.Decision), f2(r.TargetPrice), f2(r.StopLoss),
		f4(ind.Return1), f4(ind.AvgReturn), f4(ind.Volatility), f4(ind.VolumeRatio), f2(ind.RSI), f4(ind.Momentum),
		f2(ind.SMA20), f2(ind.HighN), f2(ind.LowN), f4(ind.RangePos),
	}
}

func failureRow(f model.ScanFailure) []string {
	return []string{f.Ticker, string(f.Kind), string(f.Stage), f.Message}
}

// WriteCSV writes the results table. Failures are appended after a blank line when
// withFailures is set.
func WriteCSV(w io.Writer, batch *model.ScanBatch, withFailures bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range batch.Results {
		if err := cw.Write(resultRow(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Ticker, err)
		}
	}
	if withFailures && len(batch.Failures) > 0 {
		if err := cw.Write(nil); err != nil {
			return err
		}
		if err := cw.Write(FailureColumns); err != nil {
			return err
		}
		for _, f := range batch.Failures {
			if err := cw.Write(failureRow(f)); err != nil {
				return fmt.Errorf("write csv failure %s: %w", f.Ticker, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

const (
	resultsSheet  = "Results"
	failuresSheet = "Failures"
)

// WriteXLSX writes a workbook with a Results sheet and a Failures sheet.
func WriteXLSX(w io.Writer, batch *model.ScanBatch) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(failuresSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	if err := writeRows(f, resultsSheet, ResultColumns, len(batch.Results), func(i int) []interface{} {
		r := batch.Results[i]
		ind := r.Indicators
		return []interface{}{
			r.Ticker, r.Horizon, r.AsOf.Format("2006-01-02"), r.CurrentPrice, r.BreakoutScore, r.Threshold,
			string(r.Decision), r.TargetPrice, r.StopLoss,
			ind.Return1, ind.AvgReturn, ind.Volatility, ind.VolumeRatio, ind.RSI, ind.Momentum,
			ind.SMA20, ind.HighN, ind.LowN, ind.RangePos,
		}
	}); err != nil {
		return err
	}
	if err := writeRows(f, failuresSheet, FailureColumns, len(batch.Failures), func(i int) []interface{} {
		fl := batch.Failures[i]
		return []interface{}{fl.Ticker, string(fl.Kind), string(fl.Stage), fl.Message}
	}); err != nil {
		return err
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Breakout scan " + batch.ID,
		Created: batch.StartedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []string, n int, row func(int) []interface{}) error {
	hdr := make([]interface{}, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := row(i)
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
