package main

import (
	"fmt"
	"io"

	"credit-risk/internal/ml"

	"github.com/spf13/cobra"
)

func predictCmd() *cobra.Command {
	var (
		sample    bool
		modelPath string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the risk class of one applicant record",
		Long: `Read one JSON applicant record from standard input and print its risk
class (P1, P2, P3, P4 or Unknown) as a single line on standard output.
Diagnostics are logged to standard error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := modelPath
			if path == "" {
				path = settings.BestModelPath()
			}
			return runPredict(cmd.InOrStdin(), cmd.OutOrStdout(), path, sample)
		},
	}

	cmd.Flags().BoolVar(&sample, "sample", false, "classify the built-in example record instead of reading stdin")
	cmd.Flags().StringVar(&modelPath, "model", "", "model bundle (default: models/best_model.gob)")
	return cmd
}

func runPredict(in io.Reader, out io.Writer, modelPath string, sample bool) error {
	var rec map[string]any
	if sample {
		rec = ml.SampleRecord()
	} else {
		decoded, err := ml.DecodeRecord(in)
		if err != nil {
			return err
		}
		rec = decoded
	}

	predictor, err := ml.NewPredictor(modelPath)
	if err != nil {
		return err
	}

	pred, err := predictor.PredictRecord(rec)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, pred.Label)
	return err
}
