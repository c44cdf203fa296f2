package schemas

import "context"

// -- Collaborator Contracts --
//
// The core pipeline consumes these interfaces; concrete implementations live
// in internal/store, internal/vecindex, and internal/embeddings. Keeping the
// contracts here allows stages to be tested against mocks without touching a
// database or a network.

// DocumentStore persists canonical entities keyed by id. Updates are full
// replaces (upserts); recency listings are best-effort ordered and
// deduplicated by id.
type DocumentStore interface {
	UpsertThreat(ctx context.Context, threat *UnifiedThreat) error
	UpsertLink(ctx context.Context, link *CorrelationLink) error
	ListRecentThreats(ctx context.Context, limit int) ([]UnifiedThreat, error)
	GetThreat(ctx context.Context, id string) (*UnifiedThreat, error)
	ListLinksForID(ctx context.Context, id string) ([]CorrelationLink, error)
}

// IndexResult reports the outcome of indexing a single threat.
type IndexResult struct {
	ID        string `json:"id"`
	Succeeded bool   `json:"succeeded"`
}

// CandidateHit is a nearest-neighbor result returned by a vector query. The
// free-text fields (title, summary, content, tags, references, indicators)
// form the candidate's text surface for lexical-overlap scoring; any of them
// may be empty.
type CandidateHit struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Type    string  `json:"type"`
	Score   float64 `json:"score"`
	Title   string  `json:"title,omitempty"`
	Summary string  `json:"summary,omitempty"`
	Content string  `json:"content,omitempty"`

	Tags       []string    `json:"tags,omitempty"`
	References []string    `json:"references,omitempty"`
	Indicators []Indicator `json:"indicators,omitempty"`
}

// VectorIndex answers nearest-neighbor queries over indexed threats.
type VectorIndex interface {
	IndexThreats(ctx context.Context, threats []UnifiedThreat) ([]IndexResult, error)
	Query(ctx context.Context, vector []float32, topK int, excludeID string) ([]CandidateHit, error)
}

// EmbeddingProvider turns texts into fixed-dimension vectors, one per input.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
