package scanner

import (
	"context"

	"github.com/rs/zerolog"

	"BreakoutScanner/internal/collector"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/scorer"
)

// transitions lists the legal successor states of each non-terminal state.
var transitions = map[model.UnitState][]model.UnitState{
	model.StatePending:    {model.StateFetching},
	model.StateFetching:   {model.StateExtracting, model.StateFailed},
	model.StateExtracting: {model.StateScoring, model.StateFailed},
	model.StateScoring:    {model.StateDeciding, model.StateFailed},
	model.StateDeciding:   {model.StateDone, model.StateFailed},
}

// unit is one ticker's pass through the pipeline. It is owned by a single worker.
type unit struct {
	ticker string
	state  model.UnitState
	logger zerolog.Logger
}

func (u *unit) advance(next model.UnitState) {
	for _, s := range transitions[u.state] {
		if s == next {
			u.logger.Debug().Str("ticker", u.ticker).Str("from", string(u.state)).Str("to", string(next)).Msg("unit transition")
			u.state = next
			return
		}
	}
	// Only reachable through a programming error in run.
	panic("scanner: illegal transition " + string(u.state) + " -> " + string(next))
}

// fail records the failure at the current stage and moves the unit to FAILED.
func (u *unit) fail(o *Orchestrator, err error) *model.ScanFailure {
	stage := u.state
	u.advance(model.StateFailed)
	kind := model.KindOf(err)
	o.observer.UnitCompleted(stage, kind)
	u.logger.Warn().
		Str("ticker", u.ticker).
		Str("kind", string(kind)).
		Str("stage", string(stage)).
		Err(err).
		Msg("unit failed")
	return &model.ScanFailure{
		Ticker:  u.ticker,
		Kind:    kind,
		Stage:   stage,
		Message: err.Error(),
	}
}

// run executes the unit. It returns exactly one of result or failure, or neither when
// the batch was cancelled before the unit finished.
func (u *unit) run(ctx context.Context, o *Orchestrator, session *collector.Session, hz *scorer.Horizon) (*model.ScanResult, *model.ScanFailure) {
	u.advance(model.StateFetching)
	series, err := session.Fetch(ctx, u.ticker, o.window)
	if err != nil {
		if isCancellation(ctx, err) {
			return nil, nil
		}
		return nil, u.fail(o, err)
	}

	u.advance(model.StateExtracting)
	fv, ind, err := o.extractor.Extract(series)
	if err != nil {
		return nil, u.fail(o, err)
	}

	u.advance(model.StateScoring)
	p, err := hz.Score(fv)
	if err != nil {
		return nil, u.fail(o, err)
	}

	u.advance(model.StateDeciding)
	last := series.Last()
	sig, err := o.policy.Decide(p, last.Close, hz.Threshold)
	if err != nil {
		return nil, u.fail(o, err)
	}

	u.advance(model.StateDone)
	o.observer.UnitCompleted(model.StateDone, "")
	return &model.ScanResult{
		Ticker:        u.ticker,
		Horizon:       hz.Name,
		AsOf:          last.Time,
		CurrentPrice:  last.Close,
		BreakoutScore: sig.Probability,
		Threshold:     sig.Threshold,
		Decision:      sig.Action,
		TargetPrice:   sig.TargetPrice,
		StopLoss:      sig.StopLoss,
		Indicators:    ind,
	}, nil
}
