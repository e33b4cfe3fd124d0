package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"BreakoutScanner/internal/model"
)

func sampleBatch() *model.ScanBatch {
	asOf := time.Date(2024, 5, 17, 20, 0, 0, 0, time.UTC)
	return &model.ScanBatch{
		ID:        "batch-1",
		Horizon:   "1m",
		Requested: []string{"TST", "AAPL", "BAD"},
		Results: []model.ScanResult{
			{
				Ticker: "TST", Horizon: "1m", AsOf: asOf, CurrentPrice: 130, BreakoutScore: 0.91234,
				Threshold: 0.5, Decision: model.ActionBuy, TargetPrice: 143, StopLoss: 123.5,
				Indicators: model.Indicators{VolumeRatio: 2.5, RSI: 100, Momentum: 0.0414},
			},
			{
				Ticker: "AAPL", Horizon: "1m", AsOf: asOf, CurrentPrice: 187.21, BreakoutScore: 0.2,
				Threshold: 0.5, Decision: model.ActionHold, TargetPrice: 205.93, StopLoss: 177.85,
			},
		},
		Failures: []model.ScanFailure{
			{Ticker: "BAD", Kind: model.KindDataUnavailable, Stage: model.StateFetching, Message: "DATA_UNAVAILABLE: empty response"},
		},
		StartedAt:   asOf,
		CompletedAt: asOf.Add(time.Second),
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleBatch(), false))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, ResultColumns, rows[0])
	assert.Equal(t, []string{"TST", "1m", "2024-05-17", "130.00", "0.9123", "0.5000", "BUY", "143.00", "123.50"}, rows[1][:9])
	assert.Equal(t, "2.5000", rows[1][12])
	assert.Equal(t, "AAPL", rows[2][0])
	assert.Len(t, rows[2], len(ResultColumns))
}

func TestWriteCSV_WithFailures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleBatch(), true))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 5)
	assert.Equal(t, FailureColumns, rows[3])
	assert.Equal(t, []string{"BAD", "DATA_UNAVAILABLE", "FETCHING", "DATA_UNAVAILABLE: empty response"}, rows[4])
}

func TestWriteCSV_EmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &model.ScanBatch{}, true))
	assert.Equal(t, [][]string{ResultColumns}, readCSV(t, buf.Bytes()))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleBatch()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Results", "Failures"}, f.GetSheetList())

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ResultColumns, rows[0])
	assert.Equal(t, "TST", rows[1][0])
	assert.Equal(t, "BUY", rows[1][6])

	price, err := f.GetCellValue("Results", "D3")
	require.NoError(t, err)
	assert.Equal(t, "187.21", price)

	fails, err := f.GetRows("Failures")
	require.NoError(t, err)
	require.Len(t, fails, 2)
	assert.Equal(t, "BAD", fails[1][0])
}
