package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/ensemble"
	"github.com/sjwhitworth/golearn/trees"
)

type ForestConfig struct {
	Trees int
	// Features sampled per tree. Zero means the square root of the width.
	Features int
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 100}
}

// RandomForest wraps a golearn bagged forest of random trees. Class
// probabilities are the share of member trees voting for each class.
type RandomForest struct {
	Config      ForestConfig
	NClasses    int
	NFeatures   int
	Importances []float64

	forest *ensemble.RandomForest
}

func NewRandomForest(cfg ForestConfig) *RandomForest {
	return &RandomForest{Config: cfg}
}

func (f *RandomForest) Kind() Kind { return KindRandomForest }

func (f *RandomForest) Fit(X [][]float64, y []int, nClasses int) error {
	d, err := checkFit(X, y, nClasses)
	if err != nil {
		return err
	}

	grid, err := newGrid(X, y, nClasses)
	if err != nil {
		return err
	}

	size := f.Config.Trees
	if size <= 0 {
		size = DefaultForestConfig().Trees
	}
	features := f.Config.Features
	if features <= 0 || features > d {
		features = int(math.Max(1, math.Round(math.Sqrt(float64(d)))))
	}

	forest := ensemble.NewRandomForest(size, features)
	if err := forest.Fit(grid); err != nil {
		return fmt.Errorf("random forest fit failed: %w", err)
	}

	f.forest = forest
	f.NClasses = nClasses
	f.NFeatures = d
	f.Importances = forestImportances(forest, d)
	return nil
}

// forestImportances averages the normalized Gini importances of the
// member trees.
func forestImportances(forest *ensemble.RandomForest, d int) []float64 {
	out := make([]float64, d)
	if forest.Model == nil {
		return out
	}

	per := make([]float64, d)
	for _, m := range forest.Model.Models {
		root := memberRoot(m)
		if root == nil {
			continue
		}
		for j := range per {
			per[j] = 0
		}
		treeImportances(root, per)
		normalize(per)
		for j, v := range per {
			out[j] += v
		}
	}
	normalize(out)
	return out
}

func memberRoot(m base.Classifier) *trees.DecisionTreeNode {
	switch t := m.(type) {
	case *trees.RandomTree:
		return t.Root
	case *trees.ID3DecisionTree:
		return t.Root
	default:
		return nil
	}
}

func (f *RandomForest) predictRows(X [][]float64) ([]int, error) {
	grid, err := f.grid(X)
	if err != nil {
		return nil, err
	}
	pred, err := f.forest.Predict(grid)
	if err != nil {
		return nil, fmt.Errorf("random forest predict failed: %w", err)
	}
	return gridClasses(pred)
}

func (f *RandomForest) grid(X [][]float64) (*base.DenseInstances, error) {
	if f.forest == nil {
		return nil, fmt.Errorf("random forest is not fitted")
	}
	if err := checkWidth(X, f.NFeatures); err != nil {
		return nil, err
	}
	return newGrid(X, nil, f.NClasses)
}

func (f *RandomForest) PredictProba(x []float64) ([]float64, error) {
	grid, err := f.grid([][]float64{x})
	if err != nil {
		return nil, err
	}

	votes := make([]float64, f.NClasses)
	for _, m := range f.forest.Model.Models {
		pred, err := m.Predict(grid)
		if err != nil {
			return nil, fmt.Errorf("random forest member predict failed: %w", err)
		}
		classes, err := gridClasses(pred)
		if err != nil {
			return nil, err
		}
		if c := classes[0]; c >= 0 && c < len(votes) {
			votes[c]++
		}
	}
	normalize(votes)
	return votes, nil
}

func (f *RandomForest) Predict(x []float64) (int, error) {
	out, err := f.predictRows([][]float64{x})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

func (f *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), f.Importances...)
}

type forestState struct {
	Config      ForestConfig
	NClasses    int
	NFeatures   int
	Importances []float64
	Model       []byte
}

func (f *RandomForest) GobEncode() ([]byte, error) {
	if f.forest == nil {
		return nil, fmt.Errorf("random forest is not fitted")
	}
	model, err := serializedModel(f.forest.Save)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = gob.NewEncoder(&buf).Encode(forestState{
		Config:      f.Config,
		NClasses:    f.NClasses,
		NFeatures:   f.NFeatures,
		Importances: f.Importances,
		Model:       model,
	})
	return buf.Bytes(), err
}

func (f *RandomForest) GobDecode(data []byte) error {
	var st forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}

	forest := ensemble.NewRandomForest(st.Config.Trees, st.Config.Features)
	if err := restoreModel(st.Model, forest.Load); err != nil {
		return err
	}

	*f = RandomForest{
		Config:      st.Config,
		NClasses:    st.NClasses,
		NFeatures:   st.NFeatures,
		Importances: st.Importances,
		forest:      forest,
	}
	return nil
}
