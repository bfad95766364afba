package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"credit-risk/internal/storage"

	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded training runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.New(settings.UtilsDir())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No training runs recorded")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tCREATED\tROWS\tBEST MODEL\tACCURACY\tEVALUATIONS")
			for _, run := range runs {
				marker := ""
				if run.Active {
					marker = "*"
				}
				evals, err := store.GetEvaluations(run.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.4f\t%d\n",
					marker, run.ID, run.CreatedAt.Local().Format(time.DateTime),
					run.Rows, run.BestModel, run.BestAccuracy, len(evals))
			}
			return tw.Flush()
		},
	}

	activate := &cobra.Command{
		Use:   "activate <run-id>",
		Short: "Mark a training run as active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.New(settings.UtilsDir())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ActivateRun(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s is now active\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(activate)
	return cmd
}
