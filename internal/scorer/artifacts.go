package scorer

import (
	"encoding/json"
	"fmt"
	"os"

	"BreakoutScanner/internal/model"
)

// HorizonSpec points at the artifacts produced offline for one scoring horizon.
type HorizonSpec struct {
	Name       string  `yaml:"name"`
	ScalerPath string  `yaml:"scaler_path"`
	ModelPath  string  `yaml:"model_path"`
	Threshold  float64 `yaml:"threshold"`
}

// scalerFile is the serialized StandardScaler.
type scalerFile struct {
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// classifierFile is the serialized classifier. Type selects which fields apply.
type classifierFile struct {
	Type    string `json:"type"` // "logistic" or "mlp"
	Classes []int  `json:"classes"`

	// logistic
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`

	// mlp
	Layers     []layerFile `json:"layers"`
	Activation string      `json:"activation"`
	Output     string      `json:"output"`
}

type layerFile struct {
	Weights [][]float64 `json:"weights"` // [in][out]
	Bias    []float64   `json:"bias"`
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// LoadScaler reads a scaler file and checks it against the extractor's feature order.
func LoadScaler(path string) (*Scaler, error) {
	var f scalerFile
	if err := readJSON(path, &f); err != nil {
		return nil, err
	}
	if len(f.FeatureNames) != model.FeatureCount {
		return nil, fmt.Errorf("scaler %s: %d features, want %d", path, len(f.FeatureNames), model.FeatureCount)
	}
	for i, name := range f.FeatureNames {
		if name != model.FeatureNames[i] {
			return nil, fmt.Errorf("scaler %s: feature %d is %q, want %q", path, i, name, model.FeatureNames[i])
		}
	}
	return NewScaler(f.Mean, f.Scale)
}

// LoadClassifier reads a classifier file.
func LoadClassifier(path string) (Classifier, int, error) {
	var f classifierFile
	if err := readJSON(path, &f); err != nil {
		return nil, 0, err
	}
	positive := positiveIndex(f.Classes)
	switch f.Type {
	case "logistic":
		c, err := newLogistic(f.Coef, f.Intercept)
		return c, positive, err
	case "mlp":
		layers := make([]Layer, len(f.Layers))
		for i, l := range f.Layers {
			layers[i] = Layer{Weights: l.Weights, Bias: l.Bias}
		}
		c, err := NewMLP(layers, f.Activation, f.Output)
		return c, positive, err
	default:
		return nil, 0, fmt.Errorf("classifier %s: unknown type %q", path, f.Type)
	}
}

// positiveIndex returns the column of class 1, defaulting to the last column.
func positiveIndex(classes []int) int {
	for i, c := range classes {
		if c == 1 {
			return i
		}
	}
	if len(classes) > 0 {
		return len(classes) - 1
	}
	return -1
}

// LoadArtifacts loads every horizon once. Any failure is a ModelError and the
// caller must not start scanning.
func LoadArtifacts(specs []HorizonSpec, defaultHorizon string) (*Handle, error) {
	if len(specs) == 0 {
		return nil, model.ModelError(model.ReasonModelNotLoaded, fmt.Errorf("no horizons configured"))
	}
	var horizons []*Horizon
	for _, s := range specs {
		sc, err := LoadScaler(s.ScalerPath)
		if err != nil {
			return nil, model.ModelError(model.ReasonModelNotLoaded, fmt.Errorf("horizon %s: %w", s.Name, err))
		}
		clf, pos, err := LoadClassifier(s.ModelPath)
		if err != nil {
			return nil, model.ModelError(model.ReasonModelNotLoaded, fmt.Errorf("horizon %s: %w", s.Name, err))
		}
		hz, err := NewHorizon(s.Name, s.Threshold, sc, clf)
		if err != nil {
			return nil, model.ModelError(model.ReasonModelNotLoaded, err)
		}
		hz.positive = pos
		horizons = append(horizons, hz)
	}
	return NewHandle(defaultHorizon, horizons...)
}
