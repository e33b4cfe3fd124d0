package recorder

import (
	"context"

	"BreakoutScanner/internal/model"
)

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordBatch(context.Context, *model.ScanBatch) error { return nil }
func (n *NoopRecorder) Recent(context.Context, int) ([]BatchSummary, error) { return nil, nil }
func (n *NoopRecorder) Results(context.Context, string) ([]model.ScanResult, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
