package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/observability"
)

// newCorrelateCmd creates and configures the `correlate` command.
func newCorrelateCmd(provider pipelineProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "correlate",
		Short: "Index recent threats and link related ones by vector similarity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runCorrelate(cmd.Context(), cfg, provider)
		},
	}
}

func runCorrelate(ctx context.Context, cfg *config.Config, provider pipelineProvider) error {
	logger := observability.GetLogger()

	pipe, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	stats := pipe.Correlate(ctx)
	logger.Info("Correlation complete",
		zap.Int("threats_indexed", stats.ThreatsIndexed),
		zap.Int("queries", stats.Queries),
		zap.Int("links_created", stats.LinksCreated),
		zap.Int("stored", stats.Stored),
		zap.Int("errors", stats.Errors),
	)
	return printJSON(stats)
}
