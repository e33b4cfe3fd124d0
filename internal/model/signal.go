package model

import (
	"sort"
	"time"
)

// Action is the screening decision for a ticker.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionWatch Action = "WATCH"
	ActionHold  Action = "HOLD"
)

// TradeSignal is the output of the decision policy.
type TradeSignal struct {
	Action      Action  `json:"decision"`
	Probability float64 `json:"breakout_score"`
	Threshold   float64 `json:"threshold"`
	TargetPrice float64 `json:"target_price"`
	StopLoss    float64 `json:"stop_loss"`
}

// UnitState is the lifecycle stage of one ticker's work unit.
type UnitState string

const (
	StatePending    UnitState = "PENDING"
	StateFetching   UnitState = "FETCHING"
	StateExtracting UnitState = "EXTRACTING"
	StateScoring    UnitState = "SCORING"
	StateDeciding   UnitState = "DECIDING"
	StateDone       UnitState = "DONE"
	StateFailed     UnitState = "FAILED"
)

// Terminal reports whether no transitions leave the state.
func (s UnitState) Terminal() bool { return s == StateDone || s == StateFailed }

// ScanResult is the immutable record of one successfully scanned ticker.
type ScanResult struct {
	Ticker        string     `json:"ticker"`
	Horizon       string     `json:"horizon"`
	AsOf          time.Time  `json:"as_of"`
	CurrentPrice  float64    `json:"current_price"`
	BreakoutScore float64    `json:"breakout_score"`
	Threshold     float64    `json:"threshold"`
	Decision      Action     `json:"decision"`
	TargetPrice   float64    `json:"target_price"`
	StopLoss      float64    `json:"stop_loss"`
	Indicators    Indicators `json:"indicators"`
}

// ScanFailure records why one ticker produced no result.
type ScanFailure struct {
	Ticker  string    `json:"ticker"`
	Kind    ErrorKind `json:"error_kind"`
	Stage   UnitState `json:"stage"`
	Message string    `json:"message"`
}

// ScanBatch is the output of one orchestration run. Every requested ticker appears
// in exactly one of Results or Failures.
type ScanBatch struct {
	ID          string        `json:"id"`
	Horizon     string        `json:"horizon"`
	Requested   []string      `json:"requested"`
	Results     []ScanResult  `json:"results"`
	Failures    []ScanFailure `json:"failures"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// SortByScore orders results by descending breakout score, then ticker.
func (b *ScanBatch) SortByScore() {
	sort.SliceStable(b.Results, func(i, j int) bool {
		if b.Results[i].BreakoutScore != b.Results[j].BreakoutScore {
			return b.Results[i].BreakoutScore > b.Results[j].BreakoutScore
		}
		return b.Results[i].Ticker < b.Results[j].Ticker
	})
	sort.SliceStable(b.Failures, func(i, j int) bool {
		return b.Failures[i].Ticker < b.Failures[j].Ticker
	})
}

// Buys returns the results whose decision is BUY.
func (b *ScanBatch) Buys() []ScanResult {
	var out []ScanResult
	for _, r := range b.Results {
		if r.Decision == ActionBuy {
			out = append(out, r)
		}
	}
	return out
}
