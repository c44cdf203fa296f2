package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// HashEmbedder produces deterministic pseudo-embeddings from SHA-256 digests.
// The same text always maps to the same vector, which makes offline runs and
// tests reproducible without any network dependency. Values are spread across
// [-1, 1].
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a deterministic embedder of the given dimension.
func NewHashEmbedder(dim int) (*HashEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be greater than zero, got %d", dim)
	}
	return &HashEmbedder{dim: dim}, nil
}

// Embed returns one vector per input text.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.embedOne(text)
	}
	return vectors, nil
}

// Dimension reports the fixed output dimension.
func (h *HashEmbedder) Dimension() int { return h.dim }

func (h *HashEmbedder) embedOne(text string) []float32 {
	values := make([]float32, 0, h.dim)
	for block := 0; len(values) < h.dim; block++ {
		digest := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", text, block)))
		for idx := 0; idx+4 <= len(digest) && len(values) < h.dim; idx += 4 {
			raw := binary.BigEndian.Uint32(digest[idx : idx+4])
			values = append(values, float32(float64(raw)/0xFFFFFFFF*2.0-1.0))
		}
	}
	return values
}
