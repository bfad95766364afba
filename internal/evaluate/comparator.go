// Package evaluate re-scores persisted models against the saved test split
// and reports the built-in feature importances of the best model.
package evaluate

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"credit-risk/internal/cfg"
	"credit-risk/internal/dataset"
	"credit-risk/internal/ml"
	"credit-risk/internal/report"
	"credit-risk/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Result is the evaluation of one persisted bundle. AUC and Curve are nil
// when the model exposes no probabilities.
type Result struct {
	Model    string
	Kind     ml.Kind
	Path     string
	Accuracy float64
	AUC      *float64
	Curve    *ml.ROCCurve
	Report   ml.ClassificationReport
}

// Comparator evaluates every bundle in the models directory.
type Comparator struct {
	settings cfg.Settings
	out      io.Writer
}

func NewComparator(settings cfg.Settings, out io.Writer) *Comparator {
	return &Comparator{settings: settings, out: out}
}

// Run scores each bundle on the persisted test split, writes the comparison
// table and charts, and stores the evaluation against the active run.
func (c *Comparator) Run(ctx context.Context) ([]Result, error) {
	paths, err := ml.ListBundles(c.settings.ModelsDir())
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no model bundles in %s", c.settings.ModelsDir())
	}

	split, err := dataset.LoadSplit(c.settings.SplitPath())
	if err != nil {
		return nil, err
	}
	target, err := dataset.LoadLabelEncoder(c.settings.TargetEncoderPath())
	if err != nil {
		return nil, err
	}
	encoders, err := dataset.LoadEncoders(c.settings.LabelEncodersPath())
	if err != nil {
		return nil, err
	}

	reporter := report.NewReporter(c.settings.OutputsDir())
	positive := c.settings.PositiveClass

	evals, err := c.evaluateAll(ctx, paths, split, encoders, target.Classes, positive)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(evals))
	for _, res := range evals {
		cm := ml.ConfusionMatrix(split.TestY, res.predictions, len(target.Classes))
		if _, err := reporter.ConfusionMatrixChart(res.Model, cm, target.Classes); err != nil {
			return nil, err
		}

		fmt.Fprintf(c.out, "\nModel: %s\nAccuracy: %.4f\n", res.Model, res.Accuracy)
		if res.AUC != nil {
			fmt.Fprintf(c.out, "AUC: %.4f\n", *res.AUC)
		}
		fmt.Fprintf(c.out, "Classification Report:\n%s", res.Report.String())

		results = append(results, res.Result)
	}

	if err := c.writeReports(reporter, results); err != nil {
		return nil, err
	}

	label := fmt.Sprintf("%d", positive)
	if positive >= 0 && positive < len(target.Classes) {
		label = target.Classes[positive]
	}
	if err := c.record(results, label); err != nil {
		return nil, err
	}
	return results, nil
}

type evaluation struct {
	Result
	predictions []int
}

// evaluateAll loads and scores the bundles at paths with up to
// settings.Workers in flight. Results keep the order of paths.
func (c *Comparator) evaluateAll(ctx context.Context, paths []string, split *dataset.Split, encoders dataset.EncoderSet, labels []string, positive int) ([]evaluation, error) {
	out := make([]evaluation, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.settings.Workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bundle, err := ml.LoadBundle(path)
			if err != nil {
				return err
			}
			if len(bundle.Features) != len(split.Columns) {
				return fmt.Errorf("%s expects %d features, split has %d", path, len(bundle.Features), len(split.Columns))
			}
			checkLevels(path, bundle, encoders)

			res, err := c.evaluate(path, bundle, split, labels, positive)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Comparator) evaluate(path string, bundle *ml.Bundle, split *dataset.Split, labels []string, positive int) (evaluation, error) {
	name := ml.DisplayName(path)

	pred, err := ml.PredictBatch(bundle.Model, split.TestX)
	if err != nil {
		return evaluation{}, fmt.Errorf("failed to score %s: %w", name, err)
	}

	ev := evaluation{
		Result: Result{
			Model:    name,
			Kind:     bundle.Kind,
			Path:     path,
			Accuracy: ml.Accuracy(split.TestY, pred),
			Report:   ml.NewClassificationReport(split.TestY, pred, labels),
		},
		predictions: pred,
	}

	pe, ok := bundle.Model.(ml.ProbabilityEstimator)
	if !ok {
		log.Debug().Str("model", name).Msg("Model exposes no probabilities, skipping AUC")
		return ev, nil
	}

	scores := make([]float64, len(split.TestX))
	for i, x := range split.TestX {
		probs, err := pe.PredictProba(x)
		if err != nil {
			return evaluation{}, fmt.Errorf("failed to score %s: %w", name, err)
		}
		if positive < 0 || positive >= len(probs) {
			log.Warn().Str("model", name).Int("positive_class", positive).Msg("Positive class out of range, skipping AUC")
			return ev, nil
		}
		scores[i] = probs[positive]
	}

	curve, ok := ml.OneVsRestROC(split.TestY, scores, positive)
	if !ok {
		log.Warn().Str("model", name).Msg("Test split holds a single class, AUC undefined")
		return ev, nil
	}
	auc := curve.AUC
	ev.AUC = &auc
	ev.Curve = &curve
	return ev, nil
}

func (c *Comparator) writeReports(reporter *report.Reporter, results []Result) error {
	rows := make([]report.ComparisonRow, len(results))
	names := make([]string, len(results))
	accuracy := make([]float64, len(results))
	var curves []report.NamedCurve

	for i, r := range results {
		rows[i] = report.ComparisonRow{Model: r.Model, Accuracy: r.Accuracy, AUC: r.AUC}
		names[i] = r.Model
		accuracy[i] = r.Accuracy
		if r.Curve != nil {
			curves = append(curves, report.NamedCurve{Model: r.Model, Curve: *r.Curve})
		}
	}

	if _, err := reporter.ComparisonCSV(rows); err != nil {
		return err
	}
	if _, err := reporter.AccuracyChart(names, accuracy); err != nil {
		return err
	}
	if _, err := reporter.ROCChart(curves); err != nil {
		return err
	}
	return nil
}

func (c *Comparator) record(results []Result, positive string) error {
	store, err := storage.New(c.settings.UtilsDir())
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer store.Close()

	runID := storage.UnassignedRun
	if run, err := store.ActiveRun(); err == nil {
		runID = run.ID
	}

	eval := storage.Evaluation{RunID: runID, PositiveClass: positive}
	for _, r := range results {
		eval.Scores = append(eval.Scores, storage.ModelScore{Model: r.Model, Accuracy: r.Accuracy, AUC: r.AUC})
	}
	if err := store.SaveEvaluation(eval); err != nil {
		return fmt.Errorf("failed to record evaluation: %w", err)
	}

	log.Info().Str("run_id", runID).Int("models", len(results)).Msg("Evaluation recorded")
	return nil
}

// checkLevels warns when a bundle was trained with category levels that
// differ from the persisted encoders.
func checkLevels(path string, bundle *ml.Bundle, encoders dataset.EncoderSet) {
	for col, enc := range encoders {
		if levels, ok := bundle.Levels[col]; ok && !reflect.DeepEqual(levels, enc.Classes) {
			log.Warn().Str("bundle", path).Str("column", col).Msg("Bundle levels differ from persisted encoders")
		}
	}
}
