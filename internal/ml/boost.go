package ml

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"
)

// GradientBoosting is a LightGBM multiclass booster. Missing values are
// replaced with the training mean of the feature before fitting and
// scoring.
type GradientBoosting struct {
	NClasses    int
	NFeatures   int
	Means       []float64
	Importances []float64
	Model       *lightgbm.Model
}

func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{}
}

func (b *GradientBoosting) Kind() Kind { return KindXGBoost }

func (b *GradientBoosting) Fit(X [][]float64, y []int, nClasses int) error {
	d, err := checkFit(X, y, nClasses)
	if err != nil {
		return err
	}

	b.Means = columnMeans(X, d)
	xs := b.matrix(X, d)
	ys := mat.NewDense(len(y), 1, nil)
	for i, c := range y {
		ys.Set(i, 0, float64(c))
	}

	clf := lightgbm.NewLGBMClassifier()
	if err := clf.Fit(xs, ys); err != nil {
		return fmt.Errorf("gradient boosting fit failed: %w", err)
	}

	b.Model = clf.Model
	b.NClasses = nClasses
	b.NFeatures = d
	b.Importances = append([]float64(nil), clf.GetFeatureImportance("gain")...)
	if len(b.Importances) != d {
		b.Importances = make([]float64, d)
	}
	normalize(b.Importances)
	return nil
}

func (b *GradientBoosting) matrix(X [][]float64, d int) *mat.Dense {
	out := mat.NewDense(len(X), d, nil)
	for i, row := range X {
		for j, v := range row {
			if math.IsNaN(v) {
				v = b.Means[j]
			}
			out.Set(i, j, v)
		}
	}
	return out
}

func (b *GradientBoosting) probabilities(X [][]float64) ([][]float64, error) {
	if b.Model == nil {
		return nil, fmt.Errorf("gradient boosting is not fitted")
	}
	if err := checkWidth(X, b.NFeatures); err != nil {
		return nil, err
	}

	predictor := lightgbm.NewPredictor(b.Model)
	predictor.SetDeterministic(true)
	scores, err := predictor.Predict(b.matrix(X, b.NFeatures))
	if err != nil {
		return nil, fmt.Errorf("gradient boosting predict failed: %w", err)
	}

	rows, cols := scores.Dims()
	out := make([][]float64, rows)
	for i := range out {
		raw := make([]float64, cols)
		for c := range raw {
			raw[c] = scores.At(i, c)
		}
		p, err := classProbabilities(raw, b.NClasses)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// classProbabilities turns one row of booster output into a distribution
// over nClasses. Raw margins are passed through softmax, and a single
// binary score is read as the probability of class 1.
func classProbabilities(raw []float64, nClasses int) ([]float64, error) {
	switch {
	case len(raw) == nClasses:
		if isDistribution(raw) {
			return append([]float64(nil), raw...), nil
		}
		return softmax(raw), nil
	case len(raw) == 1 && nClasses == 2:
		p := raw[0]
		if p < 0 || p > 1 {
			p = 1 / (1 + math.Exp(-p))
		}
		return []float64{1 - p, p}, nil
	default:
		return nil, fmt.Errorf("booster returned %d scores for %d classes", len(raw), nClasses)
	}
}

func isDistribution(p []float64) bool {
	sum := 0.0
	for _, v := range p {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) < 1e-6
}

func (b *GradientBoosting) predictRows(X [][]float64) ([]int, error) {
	probs, err := b.probabilities(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		out[i] = argmax(p)
	}
	return out, nil
}

func (b *GradientBoosting) PredictProba(x []float64) ([]float64, error) {
	probs, err := b.probabilities([][]float64{x})
	if err != nil {
		return nil, err
	}
	return probs[0], nil
}

func (b *GradientBoosting) Predict(x []float64) (int, error) {
	p, err := b.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(p), nil
}

func (b *GradientBoosting) FeatureImportances() []float64 {
	return append([]float64(nil), b.Importances...)
}
