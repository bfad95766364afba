package ml

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/trees"
)

const classAttribute = "class"

func attributeName(j int) string {
	return "x" + strconv.Itoa(j)
}

func attributeIndex(name string) (int, bool) {
	j, err := strconv.Atoi(strings.TrimPrefix(name, "x"))
	return j, err == nil && strings.HasPrefix(name, "x")
}

// newGrid lays X out as golearn instances: one float attribute per column
// and a categorical class attribute whose values are the class indices.
// With a nil y every row carries class 0, which prediction ignores.
func newGrid(X [][]float64, y []int, nClasses int) (*base.DenseInstances, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	d := len(X[0])

	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, d)
	for j := range specs {
		specs[j] = inst.AddAttribute(base.NewFloatAttribute(attributeName(j)))
	}

	class := base.NewCategoricalAttribute()
	class.SetName(classAttribute)
	for c := 0; c < nClasses; c++ {
		class.GetSysValFromString(strconv.Itoa(c))
	}
	classSpec := inst.AddAttribute(class)
	if err := inst.AddClassAttribute(class); err != nil {
		return nil, fmt.Errorf("failed to set class attribute: %w", err)
	}

	if err := inst.Extend(len(X)); err != nil {
		return nil, fmt.Errorf("failed to allocate %d rows: %w", len(X), err)
	}
	for i, row := range X {
		if len(row) != d {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), d)
		}
		for j, v := range row {
			inst.Set(specs[j], i, base.PackFloatToBytes(v))
		}
		label := 0
		if y != nil {
			label = y[i]
		}
		inst.Set(classSpec, i, class.GetSysValFromString(strconv.Itoa(label)))
	}

	return inst, nil
}

// gridClasses reads class indices back from a golearn prediction grid.
func gridClasses(pred base.FixedDataGrid) ([]int, error) {
	_, rows := pred.Size()
	out := make([]int, rows)
	for i := range out {
		s := base.GetClass(pred, i)
		c, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("unexpected class value %q at row %d", s, i)
		}
		out[i] = c
	}
	return out, nil
}

// treeImportances adds the weighted Gini decrease of every split under root
// to out, indexed by feature column.
func treeImportances(root *trees.DecisionTreeNode, out []float64) {
	if root == nil || len(root.Children) == 0 || root.SplitRule == nil || root.SplitRule.SplitAttr == nil {
		return
	}

	keys := make([]string, 0, len(root.Children))
	for k := range root.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if j, ok := attributeIndex(root.SplitRule.SplitAttr.GetName()); ok && j < len(out) {
		decrease := weightedGini(root.ClassDist)
		for _, k := range keys {
			decrease -= weightedGini(root.Children[k].ClassDist)
		}
		if decrease > 0 {
			out[j] += decrease
		}
	}

	for _, k := range keys {
		treeImportances(root.Children[k], out)
	}
}

// weightedGini is the Gini impurity of dist times its sample count.
func weightedGini(dist map[string]int) float64 {
	n := 0
	for _, c := range dist {
		n += c
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range dist {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return float64(n) * (1 - sum)
}

// serializedModel round-trips a golearn model through its file format so
// it can travel inside a gob bundle.
func serializedModel(save func(path string) error) ([]byte, error) {
	dir, err := os.MkdirTemp("", "creditrisk-model")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "model.cls")
	if err := save(path); err != nil {
		return nil, fmt.Errorf("failed to serialize model: %w", err)
	}
	return os.ReadFile(path)
}

func restoreModel(data []byte, load func(path string) error) error {
	dir, err := os.MkdirTemp("", "creditrisk-model")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "model.cls")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if err := load(path); err != nil {
		return fmt.Errorf("failed to restore model: %w", err)
	}
	return nil
}
