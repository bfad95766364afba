// Package ml provides the classifiers used to grade applicant credit risk,
// their gob persistence, evaluation metrics and the single-record predictor.
//
// Every classifier works on dense float rows. The tree models are golearn
// ID3 and random forest learners, the booster is scigo's LightGBM port and
// logistic regression is a gonum L-BFGS fit on scigo-standardized
// features. Missing values are NaN: golearn trees route them down the
// not-greater branch, the booster and logistic regression replace them
// with the training mean of the feature.
package ml

import (
	"fmt"
	"math"
)

// Kind identifies a classifier family.
type Kind string

const (
	KindLogisticRegression Kind = "logistic_regression"
	KindRandomForest       Kind = "random_forest"
	KindDecisionTree       Kind = "decision_tree"
	KindXGBoost            Kind = "xgboost"
)

// Kinds lists every classifier family in training order.
var Kinds = []Kind{KindLogisticRegression, KindRandomForest, KindDecisionTree, KindXGBoost}

// Classifier is a multi-class model over dense float rows.
type Classifier interface {
	// Fit trains on X with labels y in [0, nClasses).
	Fit(X [][]float64, y []int, nClasses int) error

	// Predict returns the most likely class index for one row.
	Predict(x []float64) (int, error)

	Kind() Kind
}

// ProbabilityEstimator is implemented by classifiers that expose class
// probabilities. The returned slice has one entry per class.
type ProbabilityEstimator interface {
	PredictProba(x []float64) ([]float64, error)
}

// FeatureImporter is implemented by classifiers with built-in importances,
// one non-negative value per input column.
type FeatureImporter interface {
	FeatureImportances() []float64
}

// NewClassifier returns an untrained classifier of kind with default
// hyperparameters.
func NewClassifier(kind Kind) (Classifier, error) {
	switch kind {
	case KindLogisticRegression:
		return NewLogisticRegression(DefaultLogisticConfig()), nil
	case KindRandomForest:
		return NewRandomForest(DefaultForestConfig()), nil
	case KindDecisionTree:
		return NewDecisionTree(DefaultTreeConfig()), nil
	case KindXGBoost:
		return NewGradientBoosting(), nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", kind)
	}
}

// batchPredictor is implemented by classifiers that score a whole matrix
// in one library call.
type batchPredictor interface {
	predictRows(X [][]float64) ([]int, error)
}

// PredictBatch applies c to every row of X.
func PredictBatch(c Classifier, X [][]float64) ([]int, error) {
	if len(X) == 0 {
		return []int{}, nil
	}
	if bp, ok := c.(batchPredictor); ok {
		return bp.predictRows(X)
	}

	out := make([]int, len(X))
	for i, x := range X {
		p, err := c.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func checkFit(X [][]float64, y []int, nClasses int) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("empty training set")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("X has %d rows but y has %d labels", len(X), len(y))
	}
	if nClasses < 2 {
		return 0, fmt.Errorf("need at least 2 classes, got %d", nClasses)
	}
	d := len(X[0])
	for i, row := range X {
		if len(row) != d {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), d)
		}
		if y[i] < 0 || y[i] >= nClasses {
			return 0, fmt.Errorf("label %d at row %d out of range [0, %d)", y[i], i, nClasses)
		}
	}
	return d, nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func checkWidth(X [][]float64, d int) error {
	for i, x := range X {
		if len(x) != d {
			return fmt.Errorf("row %d: expected %d features, got %d", i, d, len(x))
		}
	}
	return nil
}

// columnMeans averages the non-NaN values of each column. Columns with no
// observed value get zero.
func columnMeans(X [][]float64, d int) []float64 {
	sums := make([]float64, d)
	counts := make([]int, d)
	for _, row := range X {
		for j, v := range row {
			if !math.IsNaN(v) {
				sums[j] += v
				counts[j]++
			}
		}
	}
	for j := range sums {
		if counts[j] > 0 {
			sums[j] /= float64(counts[j])
		}
	}
	return sums
}

func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

func softmax(z []float64) []float64 {
	out := make([]float64, len(z))
	m := math.Inf(-1)
	for _, v := range z {
		m = math.Max(m, v)
	}
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - m)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
