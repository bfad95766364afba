package report

import (
	"fmt"
	"image/color"

	"credit-risk/internal/common"
	"credit-risk/internal/ml"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NamedCurve is a ROC curve labelled with the model it belongs to.
type NamedCurve struct {
	Model string
	Curve ml.ROCCurve
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ. Row 0 of the
// matrix (the first actual class) is drawn at the top.
type confusionGrid struct {
	cm [][]int
}

func (g confusionGrid) Dims() (c, r int)   { return len(g.cm), len(g.cm) }
func (g confusionGrid) Z(c, r int) float64 { return float64(g.cm[len(g.cm)-1-r][c]) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }

// ConfusionMatrixChart draws an annotated heat map of cm for model.
func (r *Reporter) ConfusionMatrixChart(model string, cm [][]int, labels []string) (string, error) {
	if len(cm) == 0 || len(labels) != len(cm) {
		return "", fmt.Errorf("confusion matrix has %d rows for %d labels", len(cm), len(labels))
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix - " + model
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"

	grid := confusionGrid{cm: cm}
	heat := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	if heat.Min == heat.Max {
		heat.Max = heat.Min + 1
	}
	p.Add(heat)

	n := len(cm)
	xys := make(plotter.XYs, 0, n*n)
	texts := make([]string, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			xys = append(xys, plotter.XY{X: float64(col), Y: float64(n - 1 - row)})
			texts = append(texts, fmt.Sprintf("%d", cm[row][col]))
		}
	}
	annotations, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return "", fmt.Errorf("failed to create cell labels: %w", err)
	}
	for i := range annotations.TextStyle {
		annotations.TextStyle[i].XAlign = draw.XCenter
		annotations.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(annotations)

	reversed := make([]string, n)
	for i, l := range labels {
		reversed[n-1-i] = l
	}
	p.NominalX(labels...)
	p.NominalY(reversed...)

	return r.save(p, ConfusionMatrixFile(model), 6*vg.Inch, 5*vg.Inch, "Confusion matrix saved")
}

// AccuracyChart draws one bar per model, annotated with the accuracy as a
// percentage.
func (r *Reporter) AccuracyChart(models []string, accuracy []float64) (string, error) {
	if len(models) != len(accuracy) {
		return "", fmt.Errorf("%d models for %d accuracy values", len(models), len(accuracy))
	}

	p := plot.New()
	p.Title.Text = "Model Accuracy Comparison"
	p.Y.Label.Text = "Accuracy"
	p.Y.Min = 0
	p.Y.Max = 1.05

	if len(models) > 0 {
		bars, err := plotter.NewBarChart(plotter.Values(accuracy), vg.Points(40))
		if err != nil {
			return "", fmt.Errorf("failed to create bar chart: %w", err)
		}
		bars.Color = plotutil.Color(0)
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)

		xys := make(plotter.XYs, len(accuracy))
		texts := make([]string, len(accuracy))
		for i, acc := range accuracy {
			xys[i] = plotter.XY{X: float64(i), Y: acc}
			texts[i] = fmt.Sprintf("%.2f%%", acc*100)
		}
		annotations, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
		if err != nil {
			return "", fmt.Errorf("failed to create bar labels: %w", err)
		}
		for i := range annotations.TextStyle {
			annotations.TextStyle[i].XAlign = draw.XCenter
		}
		p.Add(annotations)
		p.NominalX(models...)
	}

	return r.save(p, common.AccuracyChartFile, 8*vg.Inch, 5*vg.Inch, "Accuracy chart saved")
}

// ROCChart overlays the ROC curve of every model with the random-guess
// diagonal.
func (r *Reporter) ROCChart(curves []NamedCurve) (string, error) {
	p := plot.New()
	p.Title.Text = "ROC Curve Comparison"
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	for i, c := range curves {
		xys := make(plotter.XYs, len(c.Curve.FPR))
		for j := range c.Curve.FPR {
			xys[j] = plotter.XY{X: c.Curve.FPR[j], Y: c.Curve.TPR[j]}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return "", fmt.Errorf("failed to plot ROC for %s: %w", c.Model, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (AUC = %.2f)", c.Model, c.Curve.AUC), line)
	}

	diagonal, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return "", fmt.Errorf("failed to plot diagonal: %w", err)
	}
	diagonal.Color = color.Black
	diagonal.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(diagonal)
	p.Legend.Add("Random Guess", diagonal)

	return r.save(p, common.ROCChartFile, 10*vg.Inch, 8*vg.Inch, "ROC comparison saved")
}

// ImportanceChart draws ranked importances as horizontal bars, the most
// important feature on top.
func (r *Reporter) ImportanceChart(kind, model string, scores []ml.FeatureScore) (string, error) {
	p := plot.New()
	p.Title.Text = "Feature Importance - " + model
	p.X.Label.Text = "Importance Score"
	p.Y.Label.Text = "Features"

	if len(scores) > 0 {
		n := len(scores)
		values := make(plotter.Values, n)
		names := make([]string, n)
		for i, s := range scores {
			values[n-1-i] = s.Importance
			names[n-1-i] = s.Feature
		}

		bars, err := plotter.NewBarChart(values, vg.Points(14))
		if err != nil {
			return "", fmt.Errorf("failed to create bar chart: %w", err)
		}
		bars.Horizontal = true
		bars.Color = plotutil.Color(2)
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		p.NominalY(names...)
	}

	return r.save(p, ImportanceFile(kind)+".png", 10*vg.Inch, 6*vg.Inch, "Feature importance plot saved")
}

func (r *Reporter) save(p *plot.Plot, name string, w, h vg.Length, msg string) (string, error) {
	pngPath, err := r.path(name)
	if err != nil {
		return "", err
	}
	if err := p.Save(w, h, pngPath); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	log.Info().Str("file", pngPath).Msg(msg)
	return pngPath, nil
}
