package ml

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"credit-risk/internal/common"

	"github.com/rs/zerolog/log"
)

func init() {
	gob.Register(&LogisticRegression{})
	gob.Register(&DecisionTree{})
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
}

// Bundle is a persisted classifier together with everything needed to
// feed it: the ordered training layout, category levels and class labels.
type Bundle struct {
	Model     Classifier
	Kind      Kind
	Features  []string
	Levels    map[string][]string
	Classes   []string
	Accuracy  float64
	RunID     string
	CreatedAt time.Time
}

func NewBundle(model Classifier, features []string, levels map[string][]string, classes []string) *Bundle {
	return &Bundle{
		Model:     model,
		Kind:      model.Kind(),
		Features:  append([]string(nil), features...),
		Levels:    levels,
		Classes:   append([]string(nil), classes...),
		CreatedAt: time.Now().UTC(),
	}
}

// Save writes the bundle to path, creating the parent directory.
func (b *Bundle) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(b); err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	log.Debug().Str("path", path).Str("kind", string(b.Kind)).Msg("Model bundle saved")
	return file.Close()
}

// LoadBundle reads a bundle written by Save. A missing file yields an
// error wrapping common.ErrModelNotFound.
func LoadBundle(path string) (*Bundle, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var bundle Bundle
	if err := gob.NewDecoder(file).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle %s: %w", path, err)
	}
	if bundle.Model == nil {
		return nil, fmt.Errorf("bundle %s carries no model", path)
	}

	return &bundle, nil
}

// ModelFileName is the file name used for a classifier of kind.
func ModelFileName(kind Kind) string {
	return string(kind) + common.ModelFileExt
}

// ListBundles returns every bundle file in dir, sorted by name.
func ListBundles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrModelNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != common.ModelFileExt {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// DisplayName turns a bundle path such as models/random_forest.gob into
// "Random Forest".
func DisplayName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	words := strings.Fields(strings.ReplaceAll(stem, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
