package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/observability"
	"github.com/delvn/threatbrief/internal/reporting"
)

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider pipelineProvider) *cobra.Command {
	var outputPath string
	var format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Assemble and write the executive threat brief",
		Long: `Ranks the recent corpus against the configured stack profile, selects top
risks and notable mentions, and renders the executive brief.`,
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
			return runReport(cmd.Context(), cfg, provider)
		},
	}

	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, the brief is printed to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "", "Output format: 'markdown' or 'json' (default from config)")
	return reportCmd
}

func runReport(ctx context.Context, cfg *config.Config, provider pipelineProvider) error {
	logger := observability.GetLogger()

	pipe, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	brief, stats, err := pipe.Report(ctx)
	if err != nil {
		return err
	}

	if err := writeBrief(cfg, brief); err != nil {
		return err
	}

	logger.Info("Report complete",
		zap.Int("top_risks", len(brief.TopRisks)),
		zap.Int("notable_mentions", len(brief.NotableMentions)),
		zap.Int("errors", stats.Errors),
	)
	return nil
}

func writeBrief(cfg *config.Config, brief *schemas.ExecutiveBrief) error {
	reporter, err := reporting.New(cfg.Report.Format, cfg.Report.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			observability.GetLogger().Warn("Failed to close reporter cleanly.", zap.Error(err))
		}
	}()

	if err := reporter.Write(brief); err != nil {
		return fmt.Errorf("failed to write brief: %w", err)
	}
	if cfg.Report.OutputPath != "" && cfg.Report.OutputPath != "stdout" {
		observability.GetLogger().Info("Brief written to file", zap.String("path", cfg.Report.OutputPath))
	}
	return nil
}
