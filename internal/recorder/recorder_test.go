package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScanner/internal/model"
)

func openSQLite(t *testing.T) *SQLRecorder {
	t.Helper()
	r, err := NewSQLRecorder("sqlite", filepath.Join(t.TempDir(), "db", "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func batchAt(id string, started time.Time) *model.ScanBatch {
	return &model.ScanBatch{
		ID:        id,
		Horizon:   "1m",
		Requested: []string{"TST", "AAPL", "BAD"},
		Results: []model.ScanResult{
			{
				Ticker: "TST", Horizon: "1m", AsOf: started.Truncate(time.Second), CurrentPrice: 130,
				BreakoutScore: 0.9, Threshold: 0.5, Decision: model.ActionBuy, TargetPrice: 143, StopLoss: 123.5,
				Indicators: model.Indicators{VolumeRatio: 2.5, RSI: 100, Momentum: 0.04},
			},
			{
				Ticker: "AAPL", Horizon: "1m", AsOf: started.Truncate(time.Second), CurrentPrice: 187.21,
				BreakoutScore: 0.2, Threshold: 0.5, Decision: model.ActionHold, TargetPrice: 205.93, StopLoss: 177.85,
			},
		},
		Failures: []model.ScanFailure{
			{Ticker: "BAD", Kind: model.KindDataUnavailable, Stage: model.StateFetching, Message: "empty response"},
		},
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
	}
}

func TestSQLRecorder_RecordAndQuery(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 17, 20, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordBatch(ctx, batchAt("older", t0)))
	require.NoError(t, r.RecordBatch(ctx, batchAt("newer", t0.Add(time.Hour))))

	recent, err := r.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "newer", recent[0].ID)
	assert.Equal(t, BatchSummary{
		ID: "older", Horizon: "1m", Requested: 3, Succeeded: 2, Failed: 1, Buys: 1,
		StartedAt: t0.Unix(), CompletedAt: t0.Add(2 * time.Second).Unix(),
	}, recent[1])

	limited, err := r.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	results, err := r.Results(ctx, "older")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "TST", results[0].Ticker)
	assert.Equal(t, model.ActionBuy, results[0].Decision)
	assert.Equal(t, 143.0, results[0].TargetPrice)
	assert.Equal(t, 2.5, results[0].Indicators.VolumeRatio)
	assert.True(t, results[0].AsOf.Equal(t0))
	assert.Equal(t, "AAPL", results[1].Ticker)

	none, err := r.Results(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLRecorder_DuplicateBatchRollsBack(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()
	b := batchAt("dup", time.Now())

	require.NoError(t, r.RecordBatch(ctx, b))
	require.Error(t, r.RecordBatch(ctx, b))

	recent, err := r.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSQLRecorder_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	r, err := NewSQLRecorder("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, r.RecordBatch(context.Background(), batchAt("kept", time.Now())))
	require.NoError(t, r.Close())

	r, err = NewSQLRecorder("sqlite", path)
	require.NoError(t, err)
	defer r.Close()
	recent, err := r.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "kept", recent[0].ID)
}

func TestNewSQLRecorder_UnknownDriver(t *testing.T) {
	_, err := NewSQLRecorder("mysql", "x")
	assert.Error(t, err)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordBatch(context.Background(), batchAt("x", time.Now())))
	rows, err := r.Recent(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, r.Close())
}
