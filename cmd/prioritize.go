package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/observability"
)

// newPrioritizeCmd creates and configures the `prioritize` command.
func newPrioritizeCmd(provider pipelineProvider) *cobra.Command {
	var stackPath string

	prioritizeCmd := &cobra.Command{
		Use:   "prioritize",
		Short: "Rank recent threats against the configured technology stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if stackPath != "" {
				cfg.Stack.Path = stackPath
			}
			return runPrioritize(cmd.Context(), cfg, provider)
		},
	}

	prioritizeCmd.Flags().StringVar(&stackPath, "stack", "", "Path to the stack profile YAML (overrides config)")
	return prioritizeCmd
}

func runPrioritize(ctx context.Context, cfg *config.Config, provider pipelineProvider) error {
	logger := observability.GetLogger()

	pipe, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	result, err := pipe.Prioritize(ctx)
	if err != nil {
		return err
	}
	logger.Info("Prioritization complete",
		zap.Int("total", result.Stats.Total),
		zap.Int("high", result.Stats.High),
		zap.Int("medium", result.Stats.Medium),
		zap.Int("low", result.Stats.Low),
		zap.Int("none", result.Stats.None),
		zap.Int("errors", result.Stats.Errors),
	)
	return printJSON(result)
}
