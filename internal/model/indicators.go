package model

// Feature positions inside a FeatureVector. The order is the one the classifiers
// were trained on and must not change without retraining.
const (
	FeatureReturn1 = iota
	FeatureAvgReturn
	FeatureVolatility
	FeatureVolumeRatio
	FeatureRSI
	FeatureMomentum
	FeatureCount
)

// FeatureNames lists the feature columns in vector order.
var FeatureNames = [FeatureCount]string{
	"return_1d",
	"avg_return_k",
	"volatility",
	"volume_ratio",
	"rsi",
	"momentum",
}

// FeatureVector is the fixed-length model input derived from one PriceSeries snapshot.
type FeatureVector [FeatureCount]float64

// Slice returns the vector as a slice for matrix math.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}

// Indicators holds the human-facing indicator values reported next to a score.
type Indicators struct {
	Return1     float64 `json:"return_1d"`
	AvgReturn   float64 `json:"avg_return"`
	Volatility  float64 `json:"volatility"`
	VolumeRatio float64 `json:"volume_ratio"`
	RSI         float64 `json:"rsi"`
	Momentum    float64 `json:"momentum"`
	SMA20       float64 `json:"sma20"`
	HighN       float64 `json:"high_n"`
	LowN        float64 `json:"low_n"`
	RangePos    float64 `json:"range_pos"`
}

// IndicatorsFrom copies the model features into an Indicators record.
func IndicatorsFrom(v FeatureVector) Indicators {
	return Indicators{
		Return1:     v[FeatureReturn1],
		AvgReturn:   v[FeatureAvgReturn],
		Volatility:  v[FeatureVolatility],
		VolumeRatio: v[FeatureVolumeRatio],
		RSI:         v[FeatureRSI],
		Momentum:    v[FeatureMomentum],
	}
}
