package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"credit-risk/internal/common"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"
)

// Imputation records how one sentinel column was filled.
type Imputation struct {
	Count  int
	Median float64
}

// CleanSummary describes the result of one cleaning pass.
type CleanSummary struct {
	Rows    int
	Columns []string
	Dropped []string
	Imputed map[string]Imputation
}

// Clean reads the raw dataset at in, keeps the allow-listed columns,
// imputes sentinel values with the column median and writes the result to out.
func Clean(in, out string) (CleanSummary, error) {
	df, err := ReadFrame(in)
	if err != nil {
		return CleanSummary{}, err
	}

	cleaned, summary, err := CleanFrame(df)
	if err != nil {
		return CleanSummary{}, err
	}

	if err := WriteFrame(out, cleaned); err != nil {
		return CleanSummary{}, err
	}

	log.Info().
		Str("input", in).
		Str("output", out).
		Int("rows", summary.Rows).
		Int("columns", len(summary.Columns)).
		Msg("Dataset cleaned")

	return summary, nil
}

// CleanFrame applies the allow-list and sentinel imputation to df.
func CleanFrame(df dataframe.DataFrame) (dataframe.DataFrame, CleanSummary, error) {
	df = trimHeaders(df)

	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[name] = true
	}

	summary := CleanSummary{Imputed: make(map[string]Imputation)}
	for _, col := range common.AllowedColumns() {
		if present[col] {
			summary.Columns = append(summary.Columns, col)
		} else {
			summary.Dropped = append(summary.Dropped, col)
			log.Debug().Str("column", col).Msg("Allow-listed column absent from dataset")
		}
	}
	if len(summary.Columns) == 0 {
		return df, summary, fmt.Errorf("%w: none of the expected columns are present", common.ErrMissingColumns)
	}

	df = df.Select(summary.Columns)
	if df.Err != nil {
		return df, summary, fmt.Errorf("failed to select columns: %w", df.Err)
	}

	for _, col := range common.SentinelColumns {
		if !present[col] {
			continue
		}

		values, imputation := imputeSentinel(df.Col(col).Float())
		df = df.Mutate(series.New(values, series.Float, col))
		if df.Err != nil {
			return df, summary, fmt.Errorf("failed to impute column %s: %w", col, df.Err)
		}
		summary.Imputed[col] = imputation

		if imputation.Count > 0 {
			log.Debug().
				Str("column", col).
				Int("imputed", imputation.Count).
				Float64("median", imputation.Median).
				Msg("Imputed sentinel values")
		}
	}

	summary.Rows = df.Nrow()
	return df, summary, nil
}

// imputeSentinel replaces the sentinel and NaN with the median of the
// remaining values. When nothing remains the median is NaN.
func imputeSentinel(values []float64) ([]float64, Imputation) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !isMissing(v) {
			valid = append(valid, v)
		}
	}

	m := Median(valid)
	out := make([]float64, len(values))
	count := 0
	for i, v := range values {
		if isMissing(v) {
			out[i] = m
			count++
			continue
		}
		out[i] = v
	}

	return out, Imputation{Count: count, Median: m}
}

func isMissing(v float64) bool {
	return v == common.SentinelValue || math.IsNaN(v)
}

// Median returns the middle value of values, averaging the two middle values
// for an even count. It returns NaN for an empty slice and leaves values untouched.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func trimHeaders(df dataframe.DataFrame) dataframe.DataFrame {
	for _, name := range df.Names() {
		trimmed := strings.TrimSpace(name)
		if trimmed != name {
			df = df.Rename(trimmed, name)
		}
	}
	return df
}

// ReadFrame loads a CSV file into a dataframe with type detection.
func ReadFrame(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dataframe.DataFrame{}, fmt.Errorf("%w: %s", common.ErrDatasetNotFound, path)
		}
		return dataframe.DataFrame{}, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues([]string{"", "NA", "NaN", "nan", "<nil>"}),
	)
	if df.Err != nil {
		return df, fmt.Errorf("failed to parse dataset %s: %w", path, df.Err)
	}

	return df, nil
}

// WriteFrame writes df as CSV, creating the parent directory.
func WriteFrame(path string, df dataframe.DataFrame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return f.Close()
}
