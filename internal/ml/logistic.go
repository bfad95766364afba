package ml

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/scigo/preprocessing"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

type LogisticConfig struct {
	// C is the inverse L2 regularization strength.
	C             float64
	MaxIterations int
	Tolerance     float64
}

func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{C: 1, MaxIterations: 1000, Tolerance: 1e-4}
}

// LogisticRegression is a multinomial softmax model fit with L-BFGS on
// standardized features. The intercepts are not penalized. Features are
// scaled with the scigo standard scaler; scigo has no multinomial
// penalized logit, so the loss is minimized with gonum/optimize.
type LogisticRegression struct {
	Config    LogisticConfig
	Weights   []float64 // NClasses x NFeatures, row major
	Intercept []float64
	Means     []float64
	Scales    []float64
	NClasses  int
	NFeatures int
}

func NewLogisticRegression(cfg LogisticConfig) *LogisticRegression {
	return &LogisticRegression{Config: cfg}
}

func (l *LogisticRegression) Kind() Kind { return KindLogisticRegression }

func (l *LogisticRegression) Fit(X [][]float64, y []int, nClasses int) error {
	d, err := checkFit(X, y, nClasses)
	if err != nil {
		return err
	}
	n := len(X)
	k := nClasses

	l.NClasses = k
	l.NFeatures = d

	xs, err := l.fitScaler(X)
	if err != nil {
		return err
	}

	onehot := mat.NewDense(n, k, nil)
	for i, c := range y {
		onehot.Set(i, c, 1)
	}

	C := l.Config.C
	if C <= 0 {
		C = 1
	}

	nw := k * d
	logits := mat.NewDense(n, k, nil)
	resid := mat.NewDense(n, k, nil)
	gradW := mat.NewDense(k, d, nil)

	// fg evaluates the penalized loss and, when grad is non-nil, its gradient.
	fg := func(grad, params []float64) float64 {
		W := mat.NewDense(k, d, params[:nw])
		b := params[nw:]

		logits.Mul(xs, W.T())
		loss := 0.0
		for i := 0; i < n; i++ {
			row := logits.RawRowView(i)
			floats.Add(row, b)
			lse := floats.LogSumExp(row)
			loss += lse - row[y[i]]
			for c := range row {
				resid.Set(i, c, math.Exp(row[c]-lse)-onehot.At(i, c))
			}
		}
		loss = C*loss + 0.5*floats.Dot(params[:nw], params[:nw])

		if grad != nil {
			gradW.Mul(resid.T(), xs)
			for c := 0; c < k; c++ {
				for j := 0; j < d; j++ {
					grad[c*d+j] = C*gradW.At(c, j) + params[c*d+j]
				}
				grad[nw+c] = C * mat.Sum(resid.ColView(c))
			}
		}
		return loss
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 { return fg(nil, x) },
		Grad: func(grad, x []float64) { fg(grad, x) },
	}
	settings := &optimize.Settings{
		MajorIterations:   l.Config.MaxIterations,
		GradientThreshold: l.Config.Tolerance,
	}

	init := make([]float64, nw+k)
	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("logistic regression optimization failed: %w", err)
	}
	if err != nil {
		log.Warn().Err(err).Str("status", result.Status.String()).Msg("Logistic regression did not converge cleanly")
	}

	l.Weights = append([]float64(nil), result.X[:nw]...)
	l.Intercept = append([]float64(nil), result.X[nw:]...)

	log.Debug().
		Str("status", result.Status.String()).
		Int("iterations", result.Stats.MajorIterations).
		Float64("loss", result.F).
		Msg("Logistic regression fitted")

	return nil
}

// fitScaler fills NaN with the column mean, fits a standard scaler on the
// result and keeps the per-column affine map so single rows can be scaled
// the same way at prediction time.
func (l *LogisticRegression) fitScaler(X [][]float64) (*mat.Dense, error) {
	d := l.NFeatures
	means := columnMeans(X, d)

	filled := mat.NewDense(len(X), d, nil)
	for i, row := range X {
		for j, v := range row {
			if math.IsNaN(v) {
				v = means[j]
			}
			filled.Set(i, j, v)
		}
	}

	scaler := preprocessing.NewStandardScaler(true, true)
	if err := scaler.Fit(filled); err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	scaled, err := scaler.Transform(filled)
	if err != nil {
		return nil, fmt.Errorf("failed to scale features: %w", err)
	}

	// Scaling the rows 0 and 1 recovers the offset and slope per column.
	unit := mat.NewDense(2, d, nil)
	for j := 0; j < d; j++ {
		unit.Set(1, j, 1)
	}
	ends, err := scaler.Transform(unit)
	if err != nil {
		return nil, fmt.Errorf("failed to scale features: %w", err)
	}

	l.Means = means
	l.Scales = make([]float64, d)
	for j := 0; j < d; j++ {
		z0, z1 := ends.At(0, j), ends.At(1, j)
		slope := z1 - z0
		if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
			l.Scales[j] = 1
			continue
		}
		l.Scales[j] = 1 / slope
		l.Means[j] = -z0 / slope
	}

	xs := mat.DenseCopyOf(scaled)
	rows, _ := xs.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < d; j++ {
			if v := xs.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				xs.Set(i, j, (filled.At(i, j)-l.Means[j])/l.Scales[j])
			}
		}
	}
	return xs, nil
}

// standardize scales x with the training statistics. NaN becomes the
// training mean, which is zero after scaling.
func (l *LogisticRegression) standardize(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if math.IsNaN(v) {
			continue
		}
		out[j] = (v - l.Means[j]) / l.Scales[j]
	}
	return out
}

func (l *LogisticRegression) PredictProba(x []float64) ([]float64, error) {
	if len(l.Weights) == 0 {
		return nil, fmt.Errorf("logistic regression is not fitted")
	}
	if len(x) != l.NFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", l.NFeatures, len(x))
	}

	xs := l.standardize(x)
	z := make([]float64, l.NClasses)
	for c := range z {
		z[c] = floats.Dot(l.Weights[c*l.NFeatures:(c+1)*l.NFeatures], xs) + l.Intercept[c]
	}
	return softmax(z), nil
}

func (l *LogisticRegression) Predict(x []float64) (int, error) {
	p, err := l.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(p), nil
}
