package vecindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/delvn/threatbrief/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Index is a PostgreSQL-backed implementation of schemas.VectorIndex. Vectors
// are stored as float4 arrays next to the document fields a candidate needs
// for lexical-overlap scoring; similarity search is a brute-force cosine scan
// ranked in process. That keeps the schema plain SQL and is adequate for the
// corpus sizes a correlation run works over.
type Index struct {
	pool     DBPool
	embedder schemas.EmbeddingProvider
	log      *zap.Logger
}

// New creates an index instance and verifies the connection.
func New(ctx context.Context, pool DBPool, embedder schemas.EmbeddingProvider, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("an embedding provider is required")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Index{
		pool:     pool,
		embedder: embedder,
		log:      logger.Named("vecindex"),
	}, nil
}

const schemaDDL = `
    CREATE TABLE IF NOT EXISTS threat_vectors (
        id        TEXT PRIMARY KEY,
        source    TEXT NOT NULL,
        type      TEXT NOT NULL,
        content   TEXT NOT NULL,
        doc       JSONB NOT NULL,
        embedding REAL[] NOT NULL
    );
`

// EnsureSchema creates the vector table if it does not already exist.
func (ix *Index) EnsureSchema(ctx context.Context) error {
	if _, err := ix.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure vector schema: %w", err)
	}
	return nil
}

const sqlUpsertVector = `
    INSERT INTO threat_vectors (id, source, type, content, doc, embedding)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id) DO UPDATE SET
        source = EXCLUDED.source,
        type = EXCLUDED.type,
        content = EXCLUDED.content,
        doc = EXCLUDED.doc,
        embedding = EXCLUDED.embedding;
`

// IndexThreats embeds each threat's content text and upserts the vectors.
// An embedding failure aborts the whole batch; a per-row write failure is
// reported as an unsuccessful result for that threat only.
func (ix *Index) IndexThreats(ctx context.Context, threats []schemas.UnifiedThreat) ([]schemas.IndexResult, error) {
	if len(threats) == 0 {
		return nil, nil
	}

	texts := make([]string, len(threats))
	for i := range threats {
		texts[i] = threats[i].ContentText()
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, &schemas.CollaboratorError{Name: "vecindex", Err: err}
	}
	if len(vectors) != len(threats) {
		return nil, &schemas.CollaboratorError{
			Name: "vecindex",
			Err:  fmt.Errorf("expected %d vectors, got %d", len(threats), len(vectors)),
		}
	}

	want := ix.embedder.Dimension()
	results := make([]schemas.IndexResult, 0, len(threats))
	for i := range threats {
		threat := &threats[i]
		if len(vectors[i]) != want {
			return nil, &schemas.DimensionError{Want: want, Got: len(vectors[i])}
		}

		doc, err := json.Marshal(threat)
		if err != nil {
			ix.log.Warn("Failed to marshal threat for indexing", zap.String("id", threat.ID), zap.Error(err))
			results = append(results, schemas.IndexResult{ID: threat.ID, Succeeded: false})
			continue
		}

		_, err = ix.pool.Exec(ctx, sqlUpsertVector,
			threat.ID, threat.Source, string(threat.Type), texts[i], doc, vectors[i],
		)
		if err != nil {
			ix.log.Warn("Failed to upsert threat vector", zap.String("id", threat.ID), zap.Error(err))
			results = append(results, schemas.IndexResult{ID: threat.ID, Succeeded: false})
			continue
		}
		results = append(results, schemas.IndexResult{ID: threat.ID, Succeeded: true})
	}
	return results, nil
}

const sqlScanVectors = `SELECT id, doc, embedding FROM threat_vectors WHERE id <> $1;`

// Query returns up to topK nearest neighbors by cosine similarity, excluding
// the given id. Rows whose stored vector does not match the query dimension
// are skipped.
func (ix *Index) Query(ctx context.Context, vector []float32, topK int, excludeID string) ([]schemas.CandidateHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be greater than zero, got %d", topK)
	}
	if want := ix.embedder.Dimension(); len(vector) != want {
		return nil, &schemas.DimensionError{Want: want, Got: len(vector)}
	}

	rows, err := ix.pool.Query(ctx, sqlScanVectors, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan vectors: %w", err)
	}
	defer rows.Close()

	var hits []schemas.CandidateHit
	for rows.Next() {
		var (
			id        string
			doc       []byte
			embedding []float32
		)
		if err := rows.Scan(&id, &doc, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		if len(embedding) != len(vector) {
			ix.log.Warn("Skipping vector with mismatched dimension",
				zap.String("id", id), zap.Int("want", len(vector)), zap.Int("got", len(embedding)))
			continue
		}

		var t schemas.UnifiedThreat
		if err := json.Unmarshal(doc, &t); err != nil {
			ix.log.Warn("Skipping undecodable vector document", zap.String("id", id), zap.Error(err))
			continue
		}

		hits = append(hits, schemas.CandidateHit{
			ID:         id,
			Source:     t.Source,
			Type:       string(t.Type),
			Score:      cosine(vector, embedding),
			Title:      t.Title,
			Summary:    t.Summary,
			Content:    t.ContentText(),
			Tags:       t.Tags,
			References: t.References,
			Indicators: t.Indicators,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// cosine computes cosine similarity; zero vectors yield 0.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
