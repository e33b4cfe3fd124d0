package recorder

import (
	"context"

	"BreakoutScanner/internal/model"
)

// BatchSummary is one row of the scan history.
type BatchSummary struct {
	ID          string `db:"id" json:"id"`
	Horizon     string `db:"horizon" json:"horizon"`
	Requested   int    `db:"requested" json:"requested"`
	Succeeded   int    `db:"succeeded" json:"succeeded"`
	Failed      int    `db:"failed" json:"failed"`
	Buys        int    `db:"buys" json:"buys"`
	StartedAt   int64  `db:"started_at" json:"started_at"`
	CompletedAt int64  `db:"completed_at" json:"completed_at"`
}

// Recorder persists finished scan batches for later analysis.
type Recorder interface {
	RecordBatch(ctx context.Context, batch *model.ScanBatch) error
	Recent(ctx context.Context, limit int) ([]BatchSummary, error)
	Results(ctx context.Context, batchID string) ([]model.ScanResult, error)
	Close() error
}
