// Package scanner fans a ticker list out over a bounded worker pool, running
// fetch, extract, score and decide for each ticker as one isolated work unit.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"BreakoutScanner/internal/collector"
	"BreakoutScanner/internal/features"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/scorer"
	"BreakoutScanner/internal/strategy"
	"BreakoutScanner/internal/universe"
)

// DefaultConcurrency is used when a request does not set one.
const DefaultConcurrency = 8

// MaxConcurrency caps the worker pool regardless of the request.
const MaxConcurrency = 64

// ProgressFunc receives the completed fraction of a batch, from 0.0 to 1.0.
type ProgressFunc func(fraction float64)

// Observer receives batch and unit events. metrics.Registry implements it.
type Observer interface {
	ScanStarted()
	UnitCompleted(stage model.UnitState, kind model.ErrorKind)
	ScanFinished(elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ScanStarted()                                   {}
func (noopObserver) UnitCompleted(model.UnitState, model.ErrorKind) {}
func (noopObserver) ScanFinished(time.Duration)                     {}

// Request describes one batch.
type Request struct {
	ID          string
	Tickers     []string
	Horizon     string
	Concurrency int
}

// Orchestrator runs scan batches. It holds only read-only collaborators and is safe
// for concurrent Scan calls; each Scan gets its own fetch cache.
type Orchestrator struct {
	collector *collector.Collector
	extractor *features.Extractor
	scorer    *scorer.Handle
	policy    *strategy.Policy
	observer  Observer
	window    int
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithObserver attaches a metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// New builds an Orchestrator. It fails with a model error when the scorer handle is
// not loaded, so no scan can start without a model.
func New(col *collector.Collector, ext *features.Extractor, sc *scorer.Handle, pol *strategy.Policy, opts ...Option) (*Orchestrator, error) {
	if !sc.Loaded() {
		return nil, model.ModelError(model.ReasonModelNotLoaded, nil)
	}
	if col == nil || ext == nil || pol == nil {
		return nil, fmt.Errorf("scanner: collector, extractor and policy are required")
	}
	o := &Orchestrator{
		collector: col,
		extractor: ext,
		scorer:    sc,
		policy:    pol,
		observer:  noopObserver{},
		window:    col.Config().LookbackBars,
	}
	if need := ext.MinBars(); o.window < need {
		o.window = need
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Horizons returns the loaded horizon names.
func (o *Orchestrator) Horizons() []string { return o.scorer.Names() }

// DefaultHorizon returns the horizon used when a request leaves it empty.
func (o *Orchestrator) DefaultHorizon() string { return o.scorer.Default() }

// outcome is what a worker hands back to the aggregator.
type outcome struct {
	result  *model.ScanResult
	failure *model.ScanFailure
}

// Scan runs one batch. Every normalized input ticker ends up in exactly one of
// Results or Failures. If ctx is cancelled the batch holds the units that finished
// and the context error is returned alongside it.
func (o *Orchestrator) Scan(ctx context.Context, req Request, progress ProgressFunc) (*model.ScanBatch, error) {
	if !o.scorer.Loaded() {
		return nil, model.ModelError(model.ReasonModelNotLoaded, nil)
	}
	tickers := universe.Normalize(req.Tickers)
	if len(tickers) == 0 {
		return nil, model.InvalidInput("empty ticker set")
	}
	horizon, err := o.scorer.Horizon(req.Horizon)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(float64) {}
	}

	workers := req.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	if workers > MaxConcurrency {
		workers = MaxConcurrency
	}
	if workers > len(tickers) {
		workers = len(tickers)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	batch := &model.ScanBatch{
		ID:        id,
		Horizon:   horizon.Name,
		Requested: tickers,
		Results:   []model.ScanResult{},
		Failures:  []model.ScanFailure{},
		StartedAt: time.Now(),
	}
	logger := log.With().Str("batch", id).Str("horizon", horizon.Name).Logger()
	logger.Info().Int("tickers", len(tickers)).Int("workers", workers).Msg("scan started")
	o.observer.ScanStarted()

	session := o.collector.NewSession()
	jobs := make(chan string)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				if ctx.Err() != nil {
					continue
				}
				u := &unit{ticker: ticker, state: model.StatePending, logger: logger}
				res, fail := u.run(ctx, o, session, horizon)
				if res == nil && fail == nil {
					continue // cancelled units report nothing
				}
				outcomes <- outcome{result: res, failure: fail}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range tickers {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Aggregation is single-threaded; workers never touch the batch.
	progress(0)
	total := len(tickers)
	completed := 0
	for out := range outcomes {
		if out.result != nil {
			batch.Results = append(batch.Results, *out.result)
		} else {
			batch.Failures = append(batch.Failures, *out.failure)
		}
		completed++
		progress(float64(completed) / float64(total))
	}

	batch.CompletedAt = time.Now()
	elapsed := batch.CompletedAt.Sub(batch.StartedAt)
	o.observer.ScanFinished(elapsed)
	batch.SortByScore()

	ev := logger.Info()
	if ctx.Err() != nil {
		ev = logger.Warn().AnErr("cause", ctx.Err())
	}
	ev.Int("requested", total).
		Int("succeeded", len(batch.Results)).
		Int("failed", len(batch.Failures)).
		Int("cached", session.Cached()).
		Dur("elapsed", elapsed).
		Msg("scan finished")

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

// isCancellation reports whether err came from the batch context rather than the unit.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
