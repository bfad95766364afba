package ml

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
)

// StubClassifier predicts a fixed class and exposes neither probabilities
// nor importances. It stands in for models without those capabilities.
type StubClassifier struct {
	Class int
	Fail  bool
}

func (s *StubClassifier) Fit(X [][]float64, y []int, nClasses int) error { return nil }

func (s *StubClassifier) Predict(x []float64) (int, error) {
	if s.Fail {
		return 0, fmt.Errorf("stub failure")
	}
	return s.Class, nil
}

func (s *StubClassifier) Kind() Kind { return "stub" }

// PanicClassifier panics on Predict.
type PanicClassifier struct{ StubClassifier }

func (p *PanicClassifier) Predict(x []float64) (int, error) {
	panic("index out of range")
}

// SyntheticData draws n rows of four well separated Gaussian blobs over d
// features. Labels are 0..3.
func SyntheticData(n, d int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		c := i % 4
		y[i] = c
		X[i] = make([]float64, d)
		for j := range X[i] {
			center := 0.0
			if j < 2 {
				center = 4 * float64((c>>j)&1)
			}
			X[i][j] = center + rng.NormFloat64()
		}
	}
	return X, y
}

// WithMissing returns a copy of X with roughly frac of the values set to NaN.
func WithMissing(X [][]float64, frac float64, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = append([]float64(nil), row...)
		for j := range out[i] {
			if rng.Float64() < frac {
				out[i][j] = math.NaN()
			}
		}
	}
	return out
}

func init() {
	gob.Register(&StubClassifier{})
}
