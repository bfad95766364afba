package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"credit-risk/internal/common"
	"credit-risk/internal/metrics"
	"credit-risk/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP prediction backend",
		Long: `Serve POST /predict and POST /predict/recommend. Every prediction runs
"creditrisk predict" as a child process with the request body on stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != 0 {
				settings.ServerPort = port
			}

			command, err := predictorCommand(settings.PredictorCommand)
			if err != nil {
				return err
			}

			home, err := filepath.Abs(settings.BaseDir)
			if err != nil {
				return fmt.Errorf("failed to resolve base directory: %w", err)
			}

			runner, err := server.NewProcessRunner(command, []string{common.EnvHome + "=" + home}, settings.PredictTimeout)
			if err != nil {
				return err
			}

			var recommender server.Recommender
			if settings.GeminiAPIKey != "" {
				recommender = server.NewGeminiClient(settings.GeminiAPIKey, settings.RecommendModel,
					settings.RecommendBaseURL, settings.RecommendTimeout)
			} else {
				log.Warn().Msg("GEMINI_API_KEY is not set, recommendations are disabled")
			}

			srv := server.New(server.Options{
				Port:        settings.ServerPort,
				Runner:      runner,
				Recommender: recommender,
				Metrics:     metrics.NewWrapper(metrics.New()),
				Gatherer:    prometheus.DefaultGatherer,
				CacheTTL:    settings.RecommendCacheTTL,
				CacheSize:   settings.RecommendCacheSize,
			})

			log.Info().
				Int("port", settings.ServerPort).
				Strs("predictor", command).
				Str("home", home).
				Msg("Starting backend")

			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: 5000)")
	return cmd
}

// predictorCommand splits configured on whitespace, falling back to this
// executable's own predict subcommand.
func predictorCommand(configured string) ([]string, error) {
	if fields := strings.Fields(configured); len(fields) > 0 {
		return fields, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return []string{self, "predict"}, nil
}
