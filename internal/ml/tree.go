package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/sjwhitworth/golearn/trees"
)

type TreeConfig struct {
	// Prune is the fraction of the training rows held out for
	// reduced-error pruning. Zero grows the full tree.
	Prune float64
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{}
}

// DecisionTree wraps a golearn ID3 tree. Numeric splits send NaN down the
// not-greater branch.
type DecisionTree struct {
	Config      TreeConfig
	NClasses    int
	NFeatures   int
	Importances []float64

	tree *trees.ID3DecisionTree
}

func NewDecisionTree(cfg TreeConfig) *DecisionTree {
	return &DecisionTree{Config: cfg}
}

func (t *DecisionTree) Kind() Kind { return KindDecisionTree }

func (t *DecisionTree) Fit(X [][]float64, y []int, nClasses int) error {
	d, err := checkFit(X, y, nClasses)
	if err != nil {
		return err
	}

	grid, err := newGrid(X, y, nClasses)
	if err != nil {
		return err
	}

	tree := trees.NewID3DecisionTree(t.Config.Prune)
	if err := tree.Fit(grid); err != nil {
		return fmt.Errorf("decision tree fit failed: %w", err)
	}

	t.tree = tree
	t.NClasses = nClasses
	t.NFeatures = d
	t.Importances = make([]float64, d)
	treeImportances(tree.Root, t.Importances)
	normalize(t.Importances)
	return nil
}

func (t *DecisionTree) predictRows(X [][]float64) ([]int, error) {
	if t.tree == nil {
		return nil, fmt.Errorf("decision tree is not fitted")
	}
	if err := checkWidth(X, t.NFeatures); err != nil {
		return nil, err
	}

	grid, err := newGrid(X, nil, t.NClasses)
	if err != nil {
		return nil, err
	}
	pred, err := t.tree.Predict(grid)
	if err != nil {
		return nil, fmt.Errorf("decision tree predict failed: %w", err)
	}
	return gridClasses(pred)
}

func (t *DecisionTree) Predict(x []float64) (int, error) {
	out, err := t.predictRows([][]float64{x})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

func (t *DecisionTree) FeatureImportances() []float64 {
	return append([]float64(nil), t.Importances...)
}

type treeState struct {
	Config      TreeConfig
	NClasses    int
	NFeatures   int
	Importances []float64
	Model       []byte
}

func (t *DecisionTree) GobEncode() ([]byte, error) {
	if t.tree == nil {
		return nil, fmt.Errorf("decision tree is not fitted")
	}
	model, err := serializedModel(t.tree.Save)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = gob.NewEncoder(&buf).Encode(treeState{
		Config:      t.Config,
		NClasses:    t.NClasses,
		NFeatures:   t.NFeatures,
		Importances: t.Importances,
		Model:       model,
	})
	return buf.Bytes(), err
}

func (t *DecisionTree) GobDecode(data []byte) error {
	var st treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}

	tree := trees.NewID3DecisionTree(st.Config.Prune)
	if err := restoreModel(st.Model, tree.Load); err != nil {
		return err
	}

	*t = DecisionTree{
		Config:      st.Config,
		NClasses:    st.NClasses,
		NFeatures:   st.NFeatures,
		Importances: st.Importances,
		tree:        tree,
	}
	return nil
}
