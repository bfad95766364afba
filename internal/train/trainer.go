// Package train fits every classifier on the cleaned dataset, persists the
// resulting bundles and encoders, and records the run in the registry.
package train

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"credit-risk/internal/cfg"
	"credit-risk/internal/dataset"
	"credit-risk/internal/ml"
	"credit-risk/internal/report"
	"credit-risk/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

var displayNames = map[ml.Kind]string{
	ml.KindLogisticRegression: "Logistic Regression",
	ml.KindRandomForest:       "Random Forest",
	ml.KindDecisionTree:       "Decision Tree",
	ml.KindXGBoost:            "XGBoost",
}

// ModelResult is the outcome of fitting one classifier.
type ModelResult struct {
	Name     string
	Kind     ml.Kind
	Accuracy float64
	Path     string
	Report   ml.ClassificationReport
}

// Result summarizes a training run.
type Result struct {
	RunID    string
	Rows     int
	Models   []ModelResult
	Best     ModelResult
	Duration time.Duration
}

// classifierFactory builds an untrained classifier of kind.
type classifierFactory func(kind ml.Kind) (ml.Classifier, error)

// Trainer runs the training stage of the pipeline.
type Trainer struct {
	settings cfg.Settings
	out      io.Writer
	progress io.Writer
	factory  classifierFactory
}

// New creates a trainer that prints per-model reports to out.
func New(settings cfg.Settings, out io.Writer) *Trainer {
	t := &Trainer{settings: settings, out: out}
	t.factory = ml.NewClassifier
	return t
}

// WithProgress renders a progress bar over the fitted models on w.
func (t *Trainer) WithProgress(w io.Writer) *Trainer {
	t.progress = w
	return t
}

// Kinds returns the classifier families this trainer fits, in order.
func (t *Trainer) Kinds() []ml.Kind {
	kinds := make([]ml.Kind, 0, len(ml.Kinds))
	for _, k := range ml.Kinds {
		if k == ml.KindDecisionTree && !t.settings.IncludeDecisionTree {
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

// Run executes one training pass. The best model is the first one whose
// test accuracy strictly exceeds every model trained before it.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	datasetPath := t.settings.CleanedDatasetPath()
	m, err := dataset.LoadMatrix(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load cleaned dataset: %w", err)
	}

	split, err := dataset.TrainTestSplit(m, t.settings.TestSize, t.settings.RandomSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to split dataset: %w", err)
	}

	if err := dataset.SaveEncoders(t.settings.LabelEncodersPath(), m.Encoders); err != nil {
		return nil, err
	}
	if err := dataset.SaveLabelEncoder(t.settings.TargetEncoderPath(), m.Target); err != nil {
		return nil, err
	}
	if err := split.Save(t.settings.SplitPath()); err != nil {
		return nil, err
	}

	log.Info().
		Int("rows", len(m.X)).
		Int("train", len(split.TrainY)).
		Int("test", len(split.TestY)).
		Strs("columns", m.Columns).
		Msg("Dataset prepared")

	levels := make(map[string][]string, len(m.Encoders))
	for col, enc := range m.Encoders {
		levels[col] = enc.Classes
	}

	reporter := report.NewReporter(t.settings.OutputsDir())
	result := &Result{RunID: uuid.NewString(), Rows: len(m.X)}
	var best *ml.Bundle
	bestIdx := -1

	kinds := t.Kinds()
	bar := t.newBar(len(kinds))
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := displayNames[kind]
		if bar != nil {
			bar.Describe("Training " + name)
		}
		c, err := t.fit(kind, split, len(m.Target.Classes))
		if err != nil {
			return nil, fmt.Errorf("failed to train %s: %w", name, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}

		pred, err := ml.PredictBatch(c, split.TestX)
		if err != nil {
			return nil, fmt.Errorf("failed to score %s: %w", name, err)
		}
		acc := ml.Accuracy(split.TestY, pred)
		cr := ml.NewClassificationReport(split.TestY, pred, m.Target.Classes)

		bundle := ml.NewBundle(c, m.Columns, levels, m.Target.Classes)
		bundle.Accuracy = acc
		bundle.RunID = result.RunID
		path := filepath.Join(t.settings.ModelsDir(), ml.ModelFileName(kind))
		if err := bundle.Save(path); err != nil {
			return nil, err
		}

		cm := ml.ConfusionMatrix(split.TestY, pred, len(m.Target.Classes))
		if _, err := reporter.ConfusionMatrixChart(name, cm, m.Target.Classes); err != nil {
			return nil, err
		}

		fmt.Fprintf(t.out, "\nModel: %s\nAccuracy: %.4f\nClassification Report:\n%s", name, acc, cr.String())
		log.Info().Str("model", name).Float64("accuracy", acc).Msg("Model trained")

		result.Models = append(result.Models, ModelResult{Name: name, Kind: kind, Accuracy: acc, Path: path, Report: cr})
		if bestIdx < 0 || acc > result.Models[bestIdx].Accuracy {
			bestIdx = len(result.Models) - 1
			best = bundle
		}
	}

	if bestIdx < 0 {
		return nil, fmt.Errorf("no classifiers configured")
	}
	result.Best = result.Models[bestIdx]

	if err := best.Save(t.settings.BestModelPath()); err != nil {
		return nil, err
	}

	names := make([]string, len(result.Models))
	accuracy := make([]float64, len(result.Models))
	for i, mr := range result.Models {
		names[i] = mr.Name
		accuracy[i] = mr.Accuracy
	}
	if _, err := reporter.AccuracyChart(names, accuracy); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	if err := t.record(result, datasetPath); err != nil {
		return nil, err
	}

	fmt.Fprintf(t.out, "\nBest Model: %s with Accuracy: %.4f\n", result.Best.Name, result.Best.Accuracy)
	fmt.Fprintf(t.out, "Models saved to: %s\n", t.settings.ModelsDir())
	fmt.Fprintf(t.out, "Visuals saved to: %s\n", reporter.Dir())
	return result, nil
}

func (t *Trainer) newBar(total int) *progressbar.ProgressBar {
	if t.progress == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(t.progress),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Training"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(t.progress)
		}),
	)
}

func (t *Trainer) fit(kind ml.Kind, split *dataset.Split, nClasses int) (ml.Classifier, error) {
	c, err := t.factory(kind)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := c.Fit(split.TrainX, split.TrainY, nClasses); err != nil {
		return nil, err
	}

	log.Debug().Str("kind", string(kind)).Dur("elapsed", time.Since(start)).Msg("Classifier fitted")
	return c, nil
}

func (t *Trainer) record(result *Result, datasetPath string) error {
	store, err := storage.New(t.settings.UtilsDir())
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer store.Close()

	run := storage.Run{
		ID:           result.RunID,
		Dataset:      datasetPath,
		Rows:         result.Rows,
		TestSize:     t.settings.TestSize,
		Seed:         t.settings.RandomSeed,
		BestModel:    result.Best.Name,
		BestAccuracy: result.Best.Accuracy,
		Duration:     result.Duration,
	}
	for _, mr := range result.Models {
		run.Models = append(run.Models, storage.ModelResult{
			Name:     mr.Name,
			Kind:     string(mr.Kind),
			Accuracy: mr.Accuracy,
			Path:     mr.Path,
		})
	}

	if _, err := store.SaveRun(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	if err := store.ActivateRun(run.ID); err != nil {
		return fmt.Errorf("failed to activate run: %w", err)
	}

	log.Info().Str("run_id", run.ID).Str("best_model", run.BestModel).Msg("Training run recorded")
	return nil
}
