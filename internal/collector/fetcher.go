package collector

import (
	"context"

	"BreakoutScanner/internal/model"
)

// Fetcher defines the interface for fetching market data from one provider.
type Fetcher interface {
	// FetchDailyBars returns up to days daily bars ending at the latest session.
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error)
	Name() string
}
