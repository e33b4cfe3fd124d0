package scorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScanner/internal/model"
)

func identityScaler(t *testing.T) *Scaler {
	t.Helper()
	mean := make([]float64, model.FeatureCount)
	scale := make([]float64, model.FeatureCount)
	for i := range scale {
		scale[i] = 1
	}
	sc, err := NewScaler(mean, scale)
	require.NoError(t, err)
	return sc
}

func constant(probs ...float64) Classifier {
	return ClassifierFunc(func([]float64) ([]float64, error) { return probs, nil })
}

func TestScore_SingleColumn(t *testing.T) {
	hz, err := NewHorizon("1m", 0.5, identityScaler(t), constant(0.7))
	require.NoError(t, err)

	p, err := hz.Score(model.FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, 0.7, p)
}

func TestScore_TwoColumnsUsesPositiveClass(t *testing.T) {
	hz, err := NewHorizon("1m", 0.5, identityScaler(t), constant(0.3, 0.7))
	require.NoError(t, err)

	p, err := hz.Score(model.FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, 0.7, p)

	hz.positive = 0
	p, err = hz.Score(model.FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, 0.3, p)
}

func TestScore_RejectsOutOfRange(t *testing.T) {
	hz, err := NewHorizon("1m", 0.5, identityScaler(t), constant(1.3))
	require.NoError(t, err)

	_, err = hz.Score(model.FeatureVector{})
	require.Error(t, err)
	assert.Equal(t, model.KindModel, model.KindOf(err))
}

func TestScore_DimensionMismatch(t *testing.T) {
	sc, err := NewScaler([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	hz, err := NewHorizon("1m", 0.5, sc, constant(0.5))
	require.NoError(t, err)

	_, err = hz.Score(model.FeatureVector{})
	require.Error(t, err)
	assert.Equal(t, model.KindModel, model.KindOf(err))
}

func TestScore_Deterministic(t *testing.T) {
	clf := NewLogistic([]float64{0.1, 0.2, 0.3, 1, 0.4, 0.8}, -0.5)
	hz, err := NewHorizon("1w", 0.5, identityScaler(t), clf)
	require.NoError(t, err)

	fv := model.FeatureVector{0.01, 0.005, 0.02, 2.5, 70, 0.04}
	a, err := hz.Score(fv)
	require.NoError(t, err)
	b, err := hz.Score(fv)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, a, 0.5)
}

func TestScaler_ZeroScaleIsOne(t *testing.T) {
	sc, err := NewScaler([]float64{1, 2}, []float64{0, 2})
	require.NoError(t, err)
	out, err := sc.Transform([]float64{3, 6})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, out)
}

func TestMLP_Softmax(t *testing.T) {
	clf, err := NewMLP([]Layer{
		{Weights: [][]float64{{1, 0}, {0, 1}}, Bias: []float64{0, 0}},
		{Weights: [][]float64{{1, -1}, {-1, 1}}, Bias: []float64{0, 0}},
	}, "relu", "softmax")
	require.NoError(t, err)

	probs, err := clf.PredictProba([]float64{0, 2})
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-12)
	assert.Greater(t, probs[1], probs[0])

	_, err = NewMLP([]Layer{{Weights: [][]float64{{1}}, Bias: []float64{0, 0}}}, "relu", "softmax")
	assert.Error(t, err)
	_, err = NewMLP([]Layer{{Weights: [][]float64{{1}}, Bias: []float64{0}}}, "swish", "")
	assert.Error(t, err)
}

func TestHandle(t *testing.T) {
	w, err := NewHorizon("1w", 0.6, identityScaler(t), constant(0.5))
	require.NoError(t, err)
	m, err := NewHorizon("1m", 0.5, identityScaler(t), constant(0.5))
	require.NoError(t, err)

	h, err := NewHandle("1m", w, m)
	require.NoError(t, err)
	assert.True(t, h.Loaded())
	assert.Equal(t, "1m", h.Default())
	assert.Equal(t, []string{"1m", "1w"}, h.Names())

	got, err := h.Horizon("")
	require.NoError(t, err)
	assert.Equal(t, "1m", got.Name)

	got, err = h.Horizon("1w")
	require.NoError(t, err)
	assert.Equal(t, 0.6, got.Threshold)

	_, err = h.Horizon("6m")
	assert.Equal(t, model.KindInvalidInput, model.KindOf(err))

	_, err = NewHandle("3m", w, m)
	assert.Equal(t, model.KindModel, model.KindOf(err))

	_, err = NewHandle("", w, w)
	assert.Error(t, err)
}

func TestHandle_NilIsNotLoaded(t *testing.T) {
	var h *Handle
	assert.False(t, h.Loaded())
	_, err := h.Horizon("1m")
	assert.Equal(t, model.ReasonModelNotLoaded, model.ReasonOf(err))
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const scalerJSON = `{
  "feature_names": ["return_1d", "avg_return_k", "volatility", "volume_ratio", "rsi", "momentum"],
  "mean": [0, 0, 0.02, 1, 50, 0],
  "scale": [0.02, 0.01, 0.01, 0.4, 12, 0.05]
}`

func TestLoadArtifacts(t *testing.T) {
	dir := t.TempDir()
	sp := writeFile(t, dir, "scaler.json", scalerJSON)
	mp := writeFile(t, dir, "clf.json", `{"type":"logistic","classes":[0,1],"coef":[[0,0,0,1,0,0]],"intercept":[0]}`)

	h, err := LoadArtifacts([]HorizonSpec{{Name: "1m", ScalerPath: sp, ModelPath: mp, Threshold: 0.5}}, "")
	require.NoError(t, err)
	hz, err := h.Horizon("1m")
	require.NoError(t, err)

	// volume_ratio at its mean scales to zero, so the logit is zero.
	p, err := hz.Score(model.FeatureVector{0, 0, 0.02, 1, 50, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-12)
}

func TestLoadArtifacts_Failures(t *testing.T) {
	dir := t.TempDir()
	sp := writeFile(t, dir, "scaler.json", scalerJSON)
	mp := writeFile(t, dir, "clf.json", `{"type":"logistic","classes":[0,1],"coef":[[0,0,0,1,0,0]],"intercept":[0]}`)
	reordered := writeFile(t, dir, "bad_scaler.json", `{
  "feature_names": ["avg_return_k", "return_1d", "volatility", "volume_ratio", "rsi", "momentum"],
  "mean": [0, 0, 0, 0, 0, 0], "scale": [1, 1, 1, 1, 1, 1]}`)
	unknown := writeFile(t, dir, "forest.json", `{"type":"forest"}`)

	tests := []struct {
		name string
		spec HorizonSpec
	}{
		{"missing scaler", HorizonSpec{Name: "1m", ScalerPath: filepath.Join(dir, "nope.json"), ModelPath: mp}},
		{"feature order", HorizonSpec{Name: "1m", ScalerPath: reordered, ModelPath: mp}},
		{"unknown classifier", HorizonSpec{Name: "1m", ScalerPath: sp, ModelPath: unknown}},
		{"bad threshold", HorizonSpec{Name: "1m", ScalerPath: sp, ModelPath: mp, Threshold: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadArtifacts([]HorizonSpec{tt.spec}, "")
			require.Error(t, err)
			assert.Equal(t, model.KindModel, model.KindOf(err))
			assert.Equal(t, model.ReasonModelNotLoaded, model.ReasonOf(err))
		})
	}

	_, err := LoadArtifacts(nil, "")
	assert.Equal(t, model.KindModel, model.KindOf(err))
}

func TestShippedArtifacts(t *testing.T) {
	var specs []HorizonSpec
	for _, name := range []string{"1w", "1m", "3m"} {
		specs = append(specs, HorizonSpec{
			Name:       name,
			ScalerPath: filepath.Join("..", "..", "models", "scaler_"+name+".json"),
			ModelPath:  filepath.Join("..", "..", "models", "classifier_"+name+".json"),
			Threshold:  0.5,
		})
	}
	h, err := LoadArtifacts(specs, "1m")
	require.NoError(t, err)

	// Steady uptrend on a 2.5x volume spike.
	spike := model.FeatureVector{0.008, 0.008, 0.0002, 2.5, 100, 0.041}
	for _, name := range h.Names() {
		hz, err := h.Horizon(name)
		require.NoError(t, err)
		p, err := hz.Score(spike)
		require.NoError(t, err)
		assert.Greater(t, p, 0.5, name)
	}
}
