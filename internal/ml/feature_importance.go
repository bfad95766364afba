package ml

import (
	"fmt"
	"sort"
)

// FeatureScore pairs a feature name with its importance.
type FeatureScore struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Importances returns the built-in importances of c ranked in descending
// order. ok is false when c has no built-in importances.
func Importances(c Classifier, names []string) (scores []FeatureScore, ok bool, err error) {
	fi, ok := c.(FeatureImporter)
	if !ok {
		return nil, false, nil
	}

	values := fi.FeatureImportances()
	if len(values) != len(names) {
		return nil, true, fmt.Errorf("model has %d importances for %d features", len(values), len(names))
	}

	return RankImportances(names, values), true, nil
}

// RankImportances sorts features by importance, highest first. Ties keep
// the input order.
func RankImportances(names []string, values []float64) []FeatureScore {
	scores := make([]FeatureScore, len(names))
	for i, n := range names {
		scores[i] = FeatureScore{Feature: n, Importance: values[i]}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Importance > scores[j].Importance
	})
	return scores
}
