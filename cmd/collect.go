package cmd

import (
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newCollectCmd creates and configures the `collect` command.
func newCollectCmd(provider pipelineProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Fetch, normalize, and store threats from all configured feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runCollect(cmd.Context(), cfg, provider)
		},
	}
}

func runCollect(ctx context.Context, cfg *config.Config, provider pipelineProvider) error {
	logger := observability.GetLogger()

	pipe, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	stats := pipe.Collect(ctx)
	logger.Info("Collection complete",
		zap.Int("fetched", stats.Fetched),
		zap.Int("normalized", stats.Normalized),
		zap.Int("stored", stats.Stored),
		zap.Int("errors", stats.Errors),
	)
	return printJSON(stats)
}

// printJSON pretty-prints a value to stdout.
func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}
