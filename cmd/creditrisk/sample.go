package main

import (
	"fmt"
	"os"
	"path/filepath"

	"credit-risk/internal/dataset"

	"github.com/spf13/cobra"
)

func sampleCmd() *cobra.Command {
	var (
		rows int
		seed int64
		out  string
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate a synthetic raw dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows <= 0 {
				return fmt.Errorf("--rows must be positive, got %d", rows)
			}
			path := out
			if path == "" {
				path = settings.RawDatasetPath()
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}

			if err := dataset.GenerateSample(f, rows, seed); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", rows, path)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 5000, "number of applicant rows")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: the raw dataset path)")
	return cmd
}
