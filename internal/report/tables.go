package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"credit-risk/internal/common"
	"credit-risk/internal/ml"

	"github.com/rs/zerolog/log"
)

// ComparisonRow is one line of the model comparison table. AUC is nil
// for classifiers without probability output.
type ComparisonRow struct {
	Model    string   `json:"model"`
	Accuracy float64  `json:"accuracy"`
	AUC      *float64 `json:"auc,omitempty"`
}

// ComparisonCSV writes model_comparison_results.csv. A missing AUC is an
// empty cell.
func (r *Reporter) ComparisonCSV(rows []ComparisonRow) (string, error) {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"Model", "Accuracy", "AUC"})
	for _, row := range rows {
		auc := ""
		if row.AUC != nil {
			auc = formatFloat(*row.AUC)
		}
		records = append(records, []string{row.Model, formatFloat(row.Accuracy), auc})
	}

	csvPath, err := r.writeCSV(common.ComparisonCSVFile, records)
	if err != nil {
		return "", err
	}
	log.Info().Str("file", csvPath).Msg("Comparison report generated")
	return csvPath, nil
}

// ImportanceCSV writes the ranked feature importances for a classifier kind.
func (r *Reporter) ImportanceCSV(kind string, scores []ml.FeatureScore) (string, error) {
	records := make([][]string, 0, len(scores)+1)
	records = append(records, []string{"Feature", "Importance"})
	for _, s := range scores {
		records = append(records, []string{s.Feature, formatFloat(s.Importance)})
	}

	csvPath, err := r.writeCSV(ImportanceFile(kind)+".csv", records)
	if err != nil {
		return "", err
	}
	log.Info().Str("file", csvPath).Msg("Feature importance saved")
	return csvPath, nil
}

func (r *Reporter) writeCSV(name string, records [][]string) (string, error) {
	csvPath, err := r.path(name)
	if err != nil {
		return "", err
	}

	file, err := os.Create(csvPath)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return "", fmt.Errorf("failed to write CSV: %w", err)
	}
	return csvPath, file.Close()
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
