// Package report renders pipeline results to the outputs directory: PNG
// charts drawn with gonum/plot and CSV tables for downstream tooling.
//
// Every file written is logged with its path so pipeline runs leave a
// trail of what was produced.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Reporter writes charts and tables into a single output directory.
type Reporter struct {
	outputPath string
}

// NewReporter creates a new reporter writing into outputPath.
func NewReporter(outputPath string) *Reporter {
	return &Reporter{outputPath: outputPath}
}

// Dir returns the output directory.
func (r *Reporter) Dir() string {
	return r.outputPath
}

func (r *Reporter) path(name string) (string, error) {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return filepath.Join(r.outputPath, name), nil
}

// ConfusionMatrixFile is the chart file name for a model display name,
// e.g. "Random Forest" -> confusion_matrix_Random_Forest.png.
func ConfusionMatrixFile(model string) string {
	return "confusion_matrix_" + strings.ReplaceAll(model, " ", "_") + ".png"
}

// ImportanceFile is the base name (without extension) of the importance
// outputs for a classifier kind.
func ImportanceFile(kind string) string {
	return "feature_importance_" + kind
}

// WriteJSON writes v as indented JSON.
func (r *Reporter) WriteJSON(name string, v any) (string, error) {
	jsonPath, err := r.path(name)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return jsonPath, nil
}
