package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"credit-risk/internal/common"
)

// Row is an ordered set of named feature values for one applicant.
type Row struct {
	Names  []string
	Values []float64
}

func (r *Row) add(name string, v float64) {
	r.Names = append(r.Names, name)
	r.Values = append(r.Values, v)
}

// Get returns the value of name and whether the row carries it.
func (r Row) Get(name string) (float64, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return 0, false
}

// Alignment is a row reconciled against a model's feature layout.
type Alignment struct {
	Values  []float64
	Filled  []string
	Dropped []string
}

// IndicatorName names the one-hot column for level of col.
func IndicatorName(col, level string) string {
	return col + "_" + level
}

// Coerce converts a decoded JSON value to a float. Numbers and numeric
// strings are accepted; anything else is NaN.
func Coerce(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return math.NaN()
}

// Encoder turns raw applicant records into model rows. Levels holds the
// trained category levels per categorical column, in code order.
type Encoder struct {
	Levels map[string][]string
}

func NewEncoder(levels map[string][]string) *Encoder {
	return &Encoder{Levels: levels}
}

// Encode coerces numeric fields and one-hot encodes categorical fields with
// the first level dropped. Missing numerics become NaN. A categorical value
// that is absent, unseen or the first level contributes no indicator.
func (e *Encoder) Encode(rec map[string]any) Row {
	var row Row

	for _, col := range common.NumericColumns {
		row.add(col, Coerce(rec[col]))
	}

	for _, col := range common.CategoricalColumns {
		raw, ok := rec[col]
		if !ok || raw == nil {
			continue
		}
		value := categoryString(raw)

		levels := e.Levels[col]
		for k := 1; k < len(levels); k++ {
			if levels[k] == value {
				row.add(IndicatorName(col, levels[k]), 1)
				break
			}
		}
	}

	return row
}

// Align reconciles row with layout. Layout columns the row lacks are zero
// filled and reported in Filled; this includes label-encoded categorical
// columns, whose values only reach the row as indicators. Row columns the
// layout does not reference are dropped.
func (e *Encoder) Align(row Row, layout []string) Alignment {
	used := make(map[string]bool, len(row.Names))
	a := Alignment{Values: make([]float64, len(layout))}

	for i, col := range layout {
		if v, ok := row.Get(col); ok {
			a.Values[i] = v
			used[col] = true
			continue
		}
		a.Values[i] = 0
		a.Filled = append(a.Filled, col)
	}

	for _, name := range row.Names {
		if !used[name] {
			a.Dropped = append(a.Dropped, name)
		}
	}

	return a
}

func categoryString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
