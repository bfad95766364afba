package evaluate

import (
	"fmt"
	"strings"

	"credit-risk/internal/cfg"
	"credit-risk/internal/common"
	"credit-risk/internal/dataset"
	"credit-risk/internal/ml"
	"credit-risk/internal/report"

	"github.com/rs/zerolog/log"
)

// ImportanceReport describes the importances of the best model. Supported
// is false when the model has no built-in importances.
type ImportanceReport struct {
	Model     string
	Kind      ml.Kind
	Supported bool
	Scores    []ml.FeatureScore
	CSVPath   string
	ChartPath string
}

// ImportanceReporter ranks the built-in feature importances of the best model.
type ImportanceReporter struct {
	settings cfg.Settings
}

func NewImportanceReporter(settings cfg.Settings) *ImportanceReporter {
	return &ImportanceReporter{settings: settings}
}

func (r *ImportanceReporter) Run() (*ImportanceReport, error) {
	modelPath := r.settings.BestModelPath()
	bundle, err := ml.LoadBundle(modelPath)
	if err != nil {
		return nil, fmt.Errorf("best model unavailable: %w", err)
	}

	df, err := dataset.ReadFrame(r.settings.CleanedDatasetPath())
	if err != nil {
		return nil, fmt.Errorf("cleaned dataset unavailable: %w", err)
	}

	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[name] = true
	}
	var missing []string
	for _, col := range common.FeatureColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrMissingColumns, strings.Join(missing, ", "))
	}

	rep := &ImportanceReport{
		Model: ml.DisplayName(ml.ModelFileName(bundle.Kind)),
		Kind:  bundle.Kind,
	}

	scores, ok, err := ml.Importances(bundle.Model, bundle.Features)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Info().Str("model", rep.Model).Msg("The selected model does not support feature importances")
		return rep, nil
	}
	rep.Supported = true
	rep.Scores = scores

	reporter := report.NewReporter(r.settings.OutputsDir())
	if rep.CSVPath, err = reporter.ImportanceCSV(string(bundle.Kind), scores); err != nil {
		return nil, err
	}
	if rep.ChartPath, err = reporter.ImportanceChart(string(bundle.Kind), rep.Model, scores); err != nil {
		return nil, err
	}
	return rep, nil
}
