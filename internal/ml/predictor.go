package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"credit-risk/internal/common"
	"credit-risk/internal/features"

	"github.com/rs/zerolog/log"
)

// Prediction is the outcome of classifying one applicant record.
type Prediction struct {
	Class         int
	Label         string
	Columns       []string
	Values        []float64
	Filled        []string
	Dropped       []string
	Probabilities []float64
}

// Predictor classifies single applicant records against one bundle.
type Predictor struct {
	bundle  *Bundle
	encoder *features.Encoder
}

// NewPredictor loads the bundle at path.
func NewPredictor(path string) (*Predictor, error) {
	bundle, err := LoadBundle(path)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("model_path", path).
		Str("kind", string(bundle.Kind)).
		Strs("features", bundle.Features).
		Msg("Model loaded")

	return NewPredictorFromBundle(bundle), nil
}

func NewPredictorFromBundle(bundle *Bundle) *Predictor {
	return &Predictor{
		bundle:  bundle,
		encoder: features.NewEncoder(bundle.Levels),
	}
}

func (p *Predictor) Bundle() *Bundle { return p.bundle }

// DecodeRecord reads one JSON object. Numbers are kept as json.Number.
func DecodeRecord(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedInput, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", common.ErrMalformedInput)
	}
	return rec, nil
}

// PredictRecord encodes rec, aligns it with the training layout and
// classifies it. Classifier panics are returned as errors.
func (p *Predictor) PredictRecord(rec map[string]any) (pred Prediction, err error) {
	if p == nil || p.bundle == nil {
		return Prediction{}, fmt.Errorf("predictor is nil")
	}

	row := p.encoder.Encode(rec)
	aligned := p.encoder.Align(row, p.bundle.Features)

	pred = Prediction{
		Columns: p.bundle.Features,
		Values:  aligned.Values,
		Filled:  aligned.Filled,
		Dropped: aligned.Dropped,
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()

	class, err := p.bundle.Model.Predict(aligned.Values)
	if err != nil {
		return pred, fmt.Errorf("prediction failed: %w", err)
	}
	pred.Class = class
	pred.Label = common.LabelForClass(class)

	if pe, ok := p.bundle.Model.(ProbabilityEstimator); ok {
		if probs, perr := pe.PredictProba(aligned.Values); perr == nil {
			pred.Probabilities = probs
		}
	}

	p.logDiagnostics(rec, pred)
	return pred, nil
}

func (p *Predictor) logDiagnostics(rec map[string]any, pred Prediction) {
	values := make(map[string]any, len(pred.Columns))
	for i, c := range pred.Columns {
		v := pred.Values[i]
		if math.IsNaN(v) {
			values[c] = "NaN"
			continue
		}
		values[c] = v
	}

	log.Info().
		Strs("columns", pred.Columns).
		Interface("input", rec).
		Interface("values", values).
		Strs("filled", pred.Filled).
		Strs("dropped", pred.Dropped).
		Int("raw_prediction", pred.Class).
		Floats64("probabilities", pred.Probabilities).
		Str("label", pred.Label).
		Msg("Prediction diagnostics")
}

// SampleRecord is a complete applicant record used for smoke tests.
func SampleRecord() map[string]any {
	return map[string]any{
		common.ColNetMonthlyIncome:    18000,
		common.ColAge:                 38,
		common.ColTimeWithCurrEmpr:    4,
		common.ColCCUtilization:       95,
		common.ColPLUtilization:       88,
		common.ColEnqL6m:              6,
		common.ColTotEnq:              9,
		common.ColNumDeliq12mts:       4,
		common.ColMaxDelinquencyLevel: 4,
		common.ColNumStd:              5,
		common.ColCCFlag:              0,
		common.ColPLFlag:              0,
		common.ColMaritalStatus:       "Single",
		common.ColEducation:           "SSC",
		common.ColGender:              "M",
		common.ColCreditScore:         570,
	}
}
