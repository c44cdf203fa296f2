package embeddings

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/config"
)

// New is a factory function that creates an EmbeddingProvider based on the configuration.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (schemas.EmbeddingProvider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiEmbedder(ctx, cfg, logger)
	case config.ProviderHash:
		return NewHashEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q. Supported: [%s %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderHash)
	}
}
