package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"credit-risk/internal/common"
	"credit-risk/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return records
}

func assertNonEmptyFile(t *testing.T, path string) {
	t.Helper()

	info, err := os.Stat(path)
	require.NoError(t, err, "file %s should exist", path)
	assert.Greater(t, info.Size(), int64(0))
}

func TestComparisonCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs")
	r := NewReporter(dir)
	auc := 0.875

	path, err := r.ComparisonCSV([]ComparisonRow{
		{Model: "Random Forest", Accuracy: 0.78, AUC: &auc},
		{Model: "Stub", Accuracy: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, common.ComparisonCSVFile), path)

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Model", "Accuracy", "AUC"}, records[0])
	assert.Equal(t, []string{"Random Forest", "0.780000", "0.875000"}, records[1])
	assert.Equal(t, "", records[2][2], "missing AUC must be an empty cell")
}

func TestImportanceCSV(t *testing.T) {
	r := NewReporter(t.TempDir())
	scores := ml.RankImportances([]string{"AGE", "Credit_Score"}, []float64{0.2, 0.8})

	path, err := r.ImportanceCSV("xgboost", scores)
	require.NoError(t, err)
	assert.Equal(t, "feature_importance_xgboost.csv", filepath.Base(path))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, "Credit_Score", records[1][0])
	assert.Equal(t, "AGE", records[2][0])
}

func TestCharts(t *testing.T) {
	r := NewReporter(t.TempDir())

	t.Run("confusion matrix", func(t *testing.T) {
		cm := [][]int{{5, 1, 0, 0}, {0, 3, 1, 0}, {0, 0, 2, 2}, {1, 0, 0, 4}}
		path, err := r.ConfusionMatrixChart("Random Forest", cm, common.ClassLabels)
		require.NoError(t, err)
		assert.Equal(t, "confusion_matrix_Random_Forest.png", filepath.Base(path))
		assertNonEmptyFile(t, path)
	})

	t.Run("uniform confusion matrix", func(t *testing.T) {
		cm := [][]int{{0, 0}, {0, 0}}
		path, err := r.ConfusionMatrixChart("Empty", cm, []string{"P1", "P2"})
		require.NoError(t, err)
		assertNonEmptyFile(t, path)
	})

	t.Run("confusion matrix label mismatch", func(t *testing.T) {
		_, err := r.ConfusionMatrixChart("Bad", [][]int{{1}}, common.ClassLabels)
		assert.Error(t, err)
	})

	t.Run("accuracy", func(t *testing.T) {
		path, err := r.AccuracyChart([]string{"Logistic Regression", "Xgboost"}, []float64{0.71, 0.79})
		require.NoError(t, err)
		assert.Equal(t, common.AccuracyChartFile, filepath.Base(path))
		assertNonEmptyFile(t, path)

		_, err = r.AccuracyChart([]string{"a"}, nil)
		assert.Error(t, err)
	})

	t.Run("roc", func(t *testing.T) {
		curve, ok := ml.OneVsRestROC([]int{0, 1, 0, 1, 1}, []float64{0.2, 0.7, 0.4, 0.9, 0.3}, 1)
		require.True(t, ok)

		path, err := r.ROCChart([]NamedCurve{{Model: "Xgboost", Curve: curve}})
		require.NoError(t, err)
		assert.Equal(t, common.ROCChartFile, filepath.Base(path))
		assertNonEmptyFile(t, path)
	})

	t.Run("importance", func(t *testing.T) {
		scores := ml.RankImportances(common.FeatureColumns[:4], []float64{0.1, 0.4, 0.3, 0.2})
		path, err := r.ImportanceChart("random_forest", "Random Forest", scores)
		require.NoError(t, err)
		assert.Equal(t, "feature_importance_random_forest.png", filepath.Base(path))
		assertNonEmptyFile(t, path)
	})
}

func TestWriteJSON(t *testing.T) {
	r := NewReporter(t.TempDir())

	path, err := r.WriteJSON("summary.json", map[string]float64{"accuracy": 0.5})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"accuracy": 0.5}`, string(data))
}
