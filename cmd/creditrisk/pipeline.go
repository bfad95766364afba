package main

import (
	"fmt"
	"sort"

	"credit-risk/internal/dataset"
	"credit-risk/internal/evaluate"
	"credit-risk/internal/train"

	"github.com/spf13/cobra"
)

func cleanCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the raw applicant dataset",
		Long: `Keep the model columns of the raw dataset, replace the -99999 sentinel
with the column median and write the cleaned dataset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, dst := in, out
			if src == "" {
				src = settings.RawDatasetPath()
			}
			if dst == "" {
				dst = settings.CleanedDatasetPath()
			}

			summary, err := dataset.Clean(src, dst)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Cleaned %d rows, %d columns -> %s\n", summary.Rows, len(summary.Columns), dst)
			if len(summary.Dropped) > 0 {
				fmt.Fprintf(w, "Dropped columns: %v\n", summary.Dropped)
			}

			cols := make([]string, 0, len(summary.Imputed))
			for col := range summary.Imputed {
				cols = append(cols, col)
			}
			sort.Strings(cols)
			for _, col := range cols {
				imp := summary.Imputed[col]
				fmt.Fprintf(w, "Imputed %s: %d values with median %.4f\n", col, imp.Count, imp.Median)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "raw dataset path (default: data/External_Cibil_Dataset.csv)")
	cmd.Flags().StringVar(&out, "out", "", "cleaned dataset path (default: data/cleaned_model_dataset.csv)")
	return cmd
}

func trainCmd() *cobra.Command {
	var (
		noTree   bool
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train every classifier and keep the most accurate one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noTree {
				settings.IncludeDecisionTree = false
			}

			trainer := train.New(settings, cmd.OutOrStdout())
			if progress {
				trainer = trainer.WithProgress(cmd.ErrOrStderr())
			}

			_, err := trainer.Run(cmd.Context())
			return err
		},
	}

	cmd.Flags().BoolVar(&noTree, "no-decision-tree", false, "skip the single decision tree")
	cmd.Flags().BoolVar(&progress, "progress", true, "render training progress on stderr")
	return cmd
}

func evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Compare every saved model on the held-out test split",
		Long: `Score every bundle in models/ on the persisted test split and write
model_comparison_results.csv, confusion matrices, the accuracy chart and
the ROC comparison to outputs/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := evaluate.NewComparator(settings, cmd.OutOrStdout()).Run(cmd.Context())
			return err
		},
	}
}

func importanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "importance",
		Short: "Rank the feature importances of the best model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := evaluate.NewImportanceReporter(settings).Run()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !rep.Supported {
				fmt.Fprintf(w, "%s does not expose feature importances\n", rep.Model)
				return nil
			}

			fmt.Fprintf(w, "Feature importances (%s):\n", rep.Model)
			for _, s := range rep.Scores {
				fmt.Fprintf(w, "  %-24s %.4f\n", s.Feature, s.Importance)
			}
			fmt.Fprintf(w, "Saved %s and %s\n", rep.CSVPath, rep.ChartPath)
			return nil
		},
	}
}
