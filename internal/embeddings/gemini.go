package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/config"
)

// GeminiEmbedder calls the Gemini embedding API with retries for transient
// failures. The requested output dimensionality is enforced on every vector
// returned.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int
	logger *zap.Logger
}

// NewGeminiEmbedder initializes the client. The API key is required.
func NewGeminiEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, &schemas.MissingKeyError{Source: "embedding", Key: "api_key"}
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be greater than zero, got %d", cfg.Dimension)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client: client,
		model:  cfg.Model,
		dim:    cfg.Dimension,
		logger: logger.Named("embeddings.gemini"),
	}, nil
}

// Embed returns one vector per input text, in input order.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.Text(text)...)
	}

	cfg := &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(g.dim)),
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var resp *genai.EmbedContentResponse
	operation := func() error {
		start := time.Now()
		var err error
		resp, err = g.client.Models.EmbedContent(ctx, g.model, contents, cfg)
		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
					g.logger.Warn("Transient embedding API error, retrying...",
						zap.Int("status", apiErr.Code), zap.Error(err))
					return err
				default:
					return backoff.Permanent(err)
				}
			}
			g.logger.Warn("Network error during embedding request, retrying...", zap.Error(err))
			return err
		}
		g.logger.Debug("Embedding batch complete",
			zap.Int("texts", len(texts)),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, &schemas.CollaboratorError{Name: "embeddings", Err: err}
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, &schemas.CollaboratorError{
			Name: "embeddings",
			Err:  fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)),
		}
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) != g.dim {
			got := 0
			if emb != nil {
				got = len(emb.Values)
			}
			return nil, &schemas.DimensionError{Want: g.dim, Got: got}
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimension reports the configured output dimension.
func (g *GeminiEmbedder) Dimension() int { return g.dim }
