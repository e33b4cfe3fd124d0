// Package scorer wraps the offline-trained scaler and classifier of each horizon.
// A Handle is built once at startup and is read-only afterwards.
package scorer

import (
	"fmt"
	"math"
	"sort"

	"BreakoutScanner/internal/model"
)

// Horizon scores feature vectors for one forward horizon.
type Horizon struct {
	Name      string
	Threshold float64
	scaler    *Scaler
	clf       Classifier
	positive  int
}

// NewHorizon assembles a horizon from already-loaded parts.
func NewHorizon(name string, threshold float64, scaler *Scaler, clf Classifier) (*Horizon, error) {
	if name == "" {
		return nil, fmt.Errorf("horizon name is required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("horizon %s: threshold %.3f outside [0,1]", name, threshold)
	}
	if scaler == nil || clf == nil {
		return nil, fmt.Errorf("horizon %s: scaler and classifier are required", name)
	}
	return &Horizon{Name: name, Threshold: threshold, scaler: scaler, clf: clf, positive: -1}, nil
}

// Score returns the probability that the ticker breaks out within the horizon.
func (h *Horizon) Score(fv model.FeatureVector) (float64, error) {
	if h == nil || h.clf == nil {
		return 0, model.ModelError(model.ReasonModelNotLoaded, nil)
	}
	x, err := h.scaler.Transform(fv.Slice())
	if err != nil {
		return 0, model.ModelError("scaling failed", err)
	}
	probs, err := h.clf.PredictProba(x)
	if err != nil {
		return 0, model.ModelError("prediction failed", err)
	}
	p, err := positiveProbability(probs, h.positive)
	if err != nil {
		return 0, model.ModelError("prediction failed", err)
	}
	return p, nil
}

// positiveProbability resolves single- and multi-column outputs to P(breakout).
func positiveProbability(probs []float64, positive int) (float64, error) {
	var p float64
	switch {
	case len(probs) == 0:
		return 0, fmt.Errorf("classifier returned no columns")
	case len(probs) == 1:
		p = probs[0]
	case positive >= 0 && positive < len(probs):
		p = probs[positive]
	default:
		p = probs[len(probs)-1]
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("probability %v outside [0,1]", p)
	}
	return p, nil
}

// Handle is the process-wide set of loaded horizons.
type Handle struct {
	horizons map[string]*Horizon
	def      string
}

// NewHandle builds a Handle. defaultHorizon may be empty when only one horizon is given.
func NewHandle(defaultHorizon string, horizons ...*Horizon) (*Handle, error) {
	if len(horizons) == 0 {
		return nil, model.ModelError(model.ReasonModelNotLoaded, fmt.Errorf("no horizons"))
	}
	h := &Handle{horizons: make(map[string]*Horizon, len(horizons)), def: defaultHorizon}
	for _, hz := range horizons {
		if _, dup := h.horizons[hz.Name]; dup {
			return nil, model.ModelError(model.ReasonModelNotLoaded, fmt.Errorf("duplicate horizon %s", hz.Name))
		}
		h.horizons[hz.Name] = hz
	}
	if h.def == "" {
		h.def = horizons[0].Name
	}
	if _, ok := h.horizons[h.def]; !ok {
		return nil, model.ModelError(model.ReasonModelNotLoaded, fmt.Errorf("default horizon %s not loaded", h.def))
	}
	return h, nil
}

// Loaded reports whether the handle can score.
func (h *Handle) Loaded() bool { return h != nil && len(h.horizons) > 0 }

// Default returns the default horizon name.
func (h *Handle) Default() string { return h.def }

// Names returns the loaded horizon names in sorted order.
func (h *Handle) Names() []string {
	names := make([]string, 0, len(h.horizons))
	for n := range h.horizons {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Horizon looks up a horizon by name; the empty name selects the default.
func (h *Handle) Horizon(name string) (*Horizon, error) {
	if !h.Loaded() {
		return nil, model.ModelError(model.ReasonModelNotLoaded, nil)
	}
	if name == "" {
		name = h.def
	}
	hz, ok := h.horizons[name]
	if !ok {
		return nil, model.InvalidInput(fmt.Sprintf("unknown horizon %q", name))
	}
	return hz, nil
}
