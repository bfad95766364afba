package ml

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Accuracy is the fraction of predictions equal to the truth.
func Accuracy(truth, pred []int) float64 {
	if len(truth) == 0 || len(truth) != len(pred) {
		return 0
	}
	correct := 0
	for i := range truth {
		if truth[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

// ConfusionMatrix counts truth (rows) against prediction (columns).
// Out-of-range indices are ignored.
func ConfusionMatrix(truth, pred []int, nClasses int) [][]int {
	cm := make([][]int, nClasses)
	for i := range cm {
		cm[i] = make([]int, nClasses)
	}
	for i := range truth {
		t, p := truth[i], pred[i]
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			continue
		}
		cm[t][p]++
	}
	return cm
}

type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

type ClassificationReport struct {
	Classes     []ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Total       int
}

func NewClassificationReport(truth, pred []int, labels []string) ClassificationReport {
	k := len(labels)
	cm := ConfusionMatrix(truth, pred, k)

	r := ClassificationReport{
		Accuracy: Accuracy(truth, pred),
		Total:    len(truth),
		MacroAvg: ClassMetrics{Label: "macro avg"},
		WeightedAvg: ClassMetrics{
			Label: "weighted avg",
		},
	}

	for c := 0; c < k; c++ {
		tp := float64(cm[c][c])
		var predicted, actual float64
		for o := 0; o < k; o++ {
			predicted += float64(cm[o][c])
			actual += float64(cm[c][o])
		}

		m := ClassMetrics{Label: labels[c], Support: int(actual)}
		if predicted > 0 {
			m.Precision = tp / predicted
		}
		if actual > 0 {
			m.Recall = tp / actual
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, m)

		r.MacroAvg.Precision += m.Precision / float64(k)
		r.MacroAvg.Recall += m.Recall / float64(k)
		r.MacroAvg.F1 += m.F1 / float64(k)
		if r.Total > 0 {
			w := actual / float64(r.Total)
			r.WeightedAvg.Precision += w * m.Precision
			r.WeightedAvg.Recall += w * m.Recall
			r.WeightedAvg.F1 += w * m.F1
		}
	}
	r.MacroAvg.Support = r.Total
	r.WeightedAvg.Support = r.Total

	return r
}

// String renders the report as a fixed-width table.
func (r ClassificationReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%14s %9s %9s %9s %9s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range r.Classes {
		writeMetricsRow(&sb, m)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%14s %9s %9s %9.2f %9d\n", "accuracy", "", "", r.Accuracy, r.Total)
	writeMetricsRow(&sb, r.MacroAvg)
	writeMetricsRow(&sb, r.WeightedAvg)
	return sb.String()
}

func writeMetricsRow(sb *strings.Builder, m ClassMetrics) {
	fmt.Fprintf(sb, "%14s %9.2f %9.2f %9.2f %9d\n", m.Label, m.Precision, m.Recall, m.F1, m.Support)
}

// ROCCurve is a one-vs-rest receiver operating characteristic.
type ROCCurve struct {
	FPR []float64
	TPR []float64
	AUC float64
}

// OneVsRestROC builds the ROC curve of scores for the positive class. ok is
// false when the truth holds only one side, since AUC is then undefined.
func OneVsRestROC(truth []int, scores []float64, positive int) (ROCCurve, bool) {
	if len(truth) == 0 || len(truth) != len(scores) {
		return ROCCurve{}, false
	}

	y := make([]float64, len(scores))
	copy(y, scores)
	classes := make([]bool, len(truth))
	var pos, neg int
	for i, t := range truth {
		classes[i] = t == positive
		if classes[i] {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return ROCCurve{}, false
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)

	auc := integrate.Trapezoidal(fpr, tpr)
	if math.IsNaN(auc) {
		return ROCCurve{}, false
	}
	return ROCCurve{FPR: fpr, TPR: tpr, AUC: auc}, true
}
