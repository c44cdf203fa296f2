package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/observability"
)

// newRunCmd creates and configures the `run` command, which executes the
// full collect, correlate, and report pipeline in one invocation.
func newRunCmd(provider pipelineProvider) *cobra.Command {
	var outputPath string
	var format string
	var stackPath string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full ingestion-to-brief pipeline",
		Long: `Fetches advisories, indicators, and news, normalizes and stores them,
correlates the recent corpus, ranks it against the configured stack
profile, and writes the executive brief.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if outputPath != "" {
				cfg.Report.OutputPath = outputPath
			}
			if format != "" {
				cfg.Report.Format = format
			}
			if stackPath != "" {
				cfg.Stack.Path = stackPath
			}
			return runRun(cmd.Context(), cfg, provider)
		},
	}

	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, the brief is printed to stdout.")
	runCmd.Flags().StringVarP(&format, "format", "f", "", "Output format: 'markdown' or 'json' (default from config)")
	runCmd.Flags().StringVar(&stackPath, "stack", "", "Path to the stack profile YAML file")
	return runCmd
}

func runRun(ctx context.Context, cfg *config.Config, provider pipelineProvider) error {
	logger := observability.GetLogger()

	pipe, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	brief, stats, err := pipe.Run(ctx)
	if err != nil {
		return err
	}

	if err := writeBrief(cfg, brief); err != nil {
		return err
	}

	logger.Info("Pipeline run complete",
		zap.String("run_id", stats.RunID),
		zap.Int("stored", stats.Collect.Stored),
		zap.Int("links", stats.Correlate.Stored),
		zap.Int("top_risks", len(brief.TopRisks)),
	)
	return printJSON(stats)
}
