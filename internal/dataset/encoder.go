package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LabelEncoder maps the sorted distinct values of a column to 0..k-1.
type LabelEncoder struct {
	Classes []string `json:"classes"`
	index   map[string]int
}

// FitLabelEncoder builds an encoder from every distinct value in values.
func FitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)

	return NewLabelEncoder(classes)
}

// NewLabelEncoder wraps an already sorted class list.
func NewLabelEncoder(classes []string) *LabelEncoder {
	e := &LabelEncoder{Classes: classes}
	e.buildIndex()
	return e
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}

// Index returns the code of v and whether v was seen during fitting.
func (e *LabelEncoder) Index(v string) (int, bool) {
	if e.index == nil {
		e.buildIndex()
	}
	i, ok := e.index[v]
	return i, ok
}

func (e *LabelEncoder) Transform(v string) (int, error) {
	i, ok := e.Index(v)
	if !ok {
		return 0, fmt.Errorf("unseen label %q", v)
	}
	return i, nil
}

func (e *LabelEncoder) InverseTransform(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("code %d out of range [0, %d)", code, len(e.Classes))
	}
	return e.Classes[code], nil
}

func (e *LabelEncoder) Len() int { return len(e.Classes) }

func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var raw struct {
		Classes []string `json:"classes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Classes = raw.Classes
	e.buildIndex()
	return nil
}

// EncoderSet holds one label encoder per categorical column.
type EncoderSet map[string]*LabelEncoder

// Columns returns the encoded column names in sorted order.
func (s EncoderSet) Columns() []string {
	cols := make([]string, 0, len(s))
	for c := range s {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func SaveEncoders(path string, set EncoderSet) error {
	return writeJSON(path, set)
}

func LoadEncoders(path string) (EncoderSet, error) {
	var set EncoderSet
	if err := readJSON(path, &set); err != nil {
		return nil, err
	}
	return set, nil
}

func SaveLabelEncoder(path string, enc *LabelEncoder) error {
	return writeJSON(path, enc)
}

func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	enc := &LabelEncoder{}
	if err := readJSON(path, enc); err != nil {
		return nil, err
	}
	return enc, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
