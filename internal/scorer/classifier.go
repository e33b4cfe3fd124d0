package scorer

import (
	"errors"
	"fmt"
	"math"
)

// Classifier maps a scaled feature row to class probabilities. A single column is the
// positive-class probability; more columns are one probability per class.
type Classifier interface {
	PredictProba(x []float64) ([]float64, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(x []float64) ([]float64, error)

func (f ClassifierFunc) PredictProba(x []float64) ([]float64, error) { return f(x) }

// Scaler applies the StandardScaler transform fitted at training time.
type Scaler struct {
	mean  []float64
	scale []float64
}

// NewScaler builds a Scaler. Zero scales are treated as 1, like the fitting library does.
func NewScaler(mean, scale []float64) (*Scaler, error) {
	if len(mean) != len(scale) || len(mean) == 0 {
		return nil, fmt.Errorf("scaler: mean has %d values, scale has %d", len(mean), len(scale))
	}
	sc := make([]float64, len(scale))
	for i, s := range scale {
		if s == 0 {
			s = 1
		}
		sc[i] = s
	}
	return &Scaler{mean: append([]float64(nil), mean...), scale: sc}, nil
}

// Transform returns a new scaled row.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.mean) {
		return nil, fmt.Errorf("scaler: got %d features, want %d", len(x), len(s.mean))
	}
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

type logistic struct {
	coef      []float64
	intercept float64
}

func newLogistic(coef [][]float64, intercept []float64) (*logistic, error) {
	if len(coef) != 1 || len(intercept) != 1 {
		return nil, errors.New("logistic: expected a single binary coefficient row")
	}
	return &logistic{coef: coef[0], intercept: intercept[0]}, nil
}

// NewLogistic builds a binary logistic regression classifier.
func NewLogistic(coef []float64, intercept float64) Classifier {
	return &logistic{coef: append([]float64(nil), coef...), intercept: intercept}
}

func (l *logistic) PredictProba(x []float64) ([]float64, error) {
	if len(x) != len(l.coef) {
		return nil, fmt.Errorf("logistic: got %d features, want %d", len(x), len(l.coef))
	}
	z := l.intercept
	for i := range x {
		z += l.coef[i] * x[i]
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

// Layer is one dense layer; Weights is indexed [input][output].
type Layer struct {
	Weights [][]float64
	Bias    []float64
}

type mlp struct {
	layers     []Layer
	activation func(float64) float64
	softmax    bool
}

// NewMLP builds a feed-forward classifier. output is "logistic" (one column) or "softmax".
func NewMLP(layers []Layer, activation, output string) (Classifier, error) {
	if len(layers) == 0 {
		return nil, errors.New("mlp: no layers")
	}
	for i, l := range layers {
		if len(l.Weights) == 0 || len(l.Weights[0]) != len(l.Bias) {
			return nil, fmt.Errorf("mlp: layer %d has inconsistent shape", i)
		}
		if i > 0 && len(l.Weights) != len(layers[i-1].Bias) {
			return nil, fmt.Errorf("mlp: layer %d expects %d inputs, previous layer has %d outputs",
				i, len(l.Weights), len(layers[i-1].Bias))
		}
	}
	m := &mlp{layers: layers}
	switch activation {
	case "relu", "":
		m.activation = func(v float64) float64 { return math.Max(0, v) }
	case "tanh":
		m.activation = math.Tanh
	case "logistic":
		m.activation = sigmoid
	case "identity":
		m.activation = func(v float64) float64 { return v }
	default:
		return nil, fmt.Errorf("mlp: unknown activation %q", activation)
	}
	switch output {
	case "logistic", "":
	case "softmax":
		m.softmax = true
	default:
		return nil, fmt.Errorf("mlp: unknown output %q", output)
	}
	return m, nil
}

func (m *mlp) PredictProba(x []float64) ([]float64, error) {
	if len(x) != len(m.layers[0].Weights) {
		return nil, fmt.Errorf("mlp: got %d features, want %d", len(x), len(m.layers[0].Weights))
	}
	act := x
	for li, l := range m.layers {
		next := make([]float64, len(l.Bias))
		copy(next, l.Bias)
		for i, in := range act {
			for j, w := range l.Weights[i] {
				next[j] += in * w
			}
		}
		if li < len(m.layers)-1 {
			for j := range next {
				next[j] = m.activation(next[j])
			}
		}
		act = next
	}
	if m.softmax {
		return softmax(act), nil
	}
	out := make([]float64, len(act))
	for i, v := range act {
		out[i] = sigmoid(v)
	}
	return out, nil
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func softmax(z []float64) []float64 {
	hi := math.Inf(-1)
	for _, v := range z {
		hi = math.Max(hi, v)
	}
	var sum float64
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
