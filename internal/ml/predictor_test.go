package ml

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"credit-risk/internal/common"
	"credit-risk/internal/dataset"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	trainOnce   sync.Once
	trainMatrix *dataset.Matrix
	trainErr    error
)

// sampleMatrix cleans and encodes a generated raw dataset once per test run.
func sampleMatrix(t *testing.T) *dataset.Matrix {
	t.Helper()

	trainOnce.Do(func() {
		dir, err := os.MkdirTemp("", "ml-predictor")
		if err != nil {
			trainErr = err
			return
		}
		var buf bytes.Buffer
		if trainErr = dataset.GenerateSample(&buf, 400, 42); trainErr != nil {
			return
		}
		raw := filepath.Join(dir, "raw.csv")
		if trainErr = os.WriteFile(raw, buf.Bytes(), 0644); trainErr != nil {
			return
		}
		cleaned := filepath.Join(dir, "cleaned.csv")
		if _, trainErr = dataset.Clean(raw, cleaned); trainErr != nil {
			return
		}
		trainMatrix, trainErr = dataset.LoadMatrix(cleaned)
	})

	require.NoError(t, trainErr)
	return trainMatrix
}

func levelsOf(set dataset.EncoderSet) map[string][]string {
	levels := make(map[string][]string, len(set))
	for col, enc := range set {
		levels[col] = enc.Classes
	}
	return levels
}

func trainedBundle(t *testing.T, kind Kind) *Bundle {
	t.Helper()

	m := sampleMatrix(t)
	c := fastClassifier(t, kind)
	require.NoError(t, c.Fit(m.X, m.Y, len(m.Target.Classes)))
	return NewBundle(c, m.Columns, levelsOf(m.Encoders), m.Target.Classes)
}

func TestPredictorSampleRecordDeterministic(t *testing.T) {
	bundle := trainedBundle(t, KindRandomForest)
	path := filepath.Join(t.TempDir(), common.BestModelFile)
	require.NoError(t, bundle.Save(path))

	var labels []string
	for i := 0; i < 3; i++ {
		// a fresh load per run, as the predict command does
		p, err := NewPredictor(path)
		require.NoError(t, err)

		pred, err := p.PredictRecord(SampleRecord())
		require.NoError(t, err)
		assert.Contains(t, common.ClassLabels, pred.Label)
		assert.Equal(t, common.CategoricalColumns, pred.Filled)
		labels = append(labels, pred.Label)
	}

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
}

func TestPredictorAllKinds(t *testing.T) {
	missingNumerics := SampleRecord()
	delete(missingNumerics, common.ColCreditScore)
	delete(missingNumerics, common.ColNetMonthlyIncome)
	missingNumerics[common.ColAge] = "unknown"

	unseen := SampleRecord()
	unseen[common.ColEducation] = "DOCTORATE"
	unseen[common.ColMaritalStatus] = "Widowed"

	stringly := SampleRecord()
	stringly[common.ColAge] = "38"
	stringly[common.ColCreditScore] = "570"

	records := map[string]map[string]any{
		"complete":         SampleRecord(),
		"missing numerics": missingNumerics,
		"unseen category":  unseen,
		"numeric strings":  stringly,
		"empty":            {},
	}

	for _, kind := range Kinds {
		bundle := trainedBundle(t, kind)
		p := NewPredictorFromBundle(bundle)

		for name, rec := range records {
			t.Run(string(kind)+"/"+name, func(t *testing.T) {
				pred, err := p.PredictRecord(rec)
				require.NoError(t, err)
				assert.Contains(t, common.ClassLabels, pred.Label)
				assert.Len(t, pred.Values, len(common.FeatureColumns))
			})
		}
	}
}

func TestPredictorZeroFillsCategoricalColumns(t *testing.T) {
	bundle := trainedBundle(t, KindDecisionTree)
	p := NewPredictorFromBundle(bundle)

	first := SampleRecord()
	first[common.ColMaritalStatus] = bundle.Levels[common.ColMaritalStatus][0]
	first[common.ColEducation] = bundle.Levels[common.ColEducation][0]
	first[common.ColGender] = bundle.Levels[common.ColGender][0]

	base, err := p.PredictRecord(first)
	require.NoError(t, err)
	other, err := p.PredictRecord(SampleRecord())
	require.NoError(t, err)

	for i, col := range base.Columns {
		if common.IsCategorical(col) {
			assert.Equal(t, 0.0, other.Values[i], col)
		}
	}
	assert.Equal(t, common.CategoricalColumns, other.Filled)
	assert.Equal(t, base.Values, other.Values, "category levels only reach the model as indicators")
	assert.Equal(t, base.Label, other.Label)
}

func TestPredictorErrors(t *testing.T) {
	bundle := NewBundle(&StubClassifier{Fail: true}, common.FeatureColumns, nil, common.ClassLabels)
	_, err := NewPredictorFromBundle(bundle).PredictRecord(SampleRecord())
	assert.Error(t, err)

	panicking := NewBundle(&PanicClassifier{}, common.FeatureColumns, nil, common.ClassLabels)
	_, err = NewPredictorFromBundle(panicking).PredictRecord(SampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	_, err = NewPredictor(filepath.Join(t.TempDir(), "missing.gob"))
	assert.True(t, errors.Is(err, common.ErrModelNotFound))
}

func TestPredictorLogsDiagnosticsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf).Level(zerolog.InfoLevel)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	bundle := NewBundle(&StubClassifier{Class: 1}, common.FeatureColumns, nil, common.ClassLabels)
	_, err := NewPredictorFromBundle(bundle).PredictRecord(SampleRecord())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"message":"Prediction diagnostics"`)
	assert.Contains(t, out, `"label":"P2"`)
}

func TestPredictorUnknownLabel(t *testing.T) {
	bundle := NewBundle(&StubClassifier{Class: 7}, common.FeatureColumns, nil, common.ClassLabels)
	pred, err := NewPredictorFromBundle(bundle).PredictRecord(SampleRecord())
	require.NoError(t, err)
	assert.Equal(t, common.UnknownLabel, pred.Label)
	assert.Nil(t, pred.Probabilities)
}

func TestDecodeRecord(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"object", `{"AGE": 38, "GENDER": "M"}`, false},
		{"empty object", `{}`, false},
		{"truncated", `{"AGE": 38`, true},
		{"array", `[1, 2]`, true},
		{"null", `null`, true},
		{"empty", ``, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := DecodeRecord(strings.NewReader(tc.input))
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrMalformedInput))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, rec)
		})
	}
}
