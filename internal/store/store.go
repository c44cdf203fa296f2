package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides a PostgreSQL implementation of the schemas.DocumentStore interface.
// Threats and correlation links are persisted as JSONB documents alongside the
// columns needed for upsert identity and recency ordering.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaDDL = `
    CREATE TABLE IF NOT EXISTS threats (
        id           TEXT PRIMARY KEY,
        source       TEXT NOT NULL,
        type         TEXT NOT NULL,
        severity     DOUBLE PRECISION,
        published_at TIMESTAMPTZ,
        observed_at  TIMESTAMPTZ,
        doc          JSONB NOT NULL,
        updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS correlation_links (
        id         TEXT PRIMARY KEY,
        source_id  TEXT NOT NULL,
        target_id  TEXT NOT NULL,
        confidence DOUBLE PRECISION NOT NULL,
        doc        JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS idx_links_source ON correlation_links (source_id);
    CREATE INDEX IF NOT EXISTS idx_links_target ON correlation_links (target_id);
`

// EnsureSchema creates the tables and indexes if they do not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const sqlUpsertThreat = `
    INSERT INTO threats (id, source, type, severity, published_at, observed_at, doc, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, now())
    ON CONFLICT (id) DO UPDATE SET
        source = EXCLUDED.source,
        type = EXCLUDED.type,
        severity = EXCLUDED.severity,
        published_at = EXCLUDED.published_at,
        observed_at = EXCLUDED.observed_at,
        doc = EXCLUDED.doc,
        updated_at = now();
`

// UpsertThreat inserts or replaces a normalized threat keyed by its deterministic ID.
func (s *Store) UpsertThreat(ctx context.Context, threat *schemas.UnifiedThreat) error {
	if threat == nil {
		return fmt.Errorf("cannot upsert a nil threat")
	}
	if err := threat.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(threat)
	if err != nil {
		return fmt.Errorf("failed to marshal threat %s: %w", threat.ID, err)
	}

	_, err = s.pool.Exec(ctx, sqlUpsertThreat,
		threat.ID, threat.Source, string(threat.Type), threat.Severity,
		threat.PublishedAt, threat.ObservedAt, doc,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert threat %s: %w", threat.ID, err)
	}

	s.log.Debug("Upserted threat", zap.String("id", threat.ID), zap.String("source", threat.Source))
	return nil
}

const sqlUpsertLink = `
    INSERT INTO correlation_links (id, source_id, target_id, confidence, doc, created_at)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id) DO UPDATE SET
        confidence = EXCLUDED.confidence,
        doc = EXCLUDED.doc;
`

// UpsertLink inserts or replaces a correlation link. Replaying the same pair
// overwrites the previous confidence and reasons rather than duplicating rows.
func (s *Store) UpsertLink(ctx context.Context, link *schemas.CorrelationLink) error {
	if link == nil {
		return fmt.Errorf("cannot upsert a nil link")
	}
	if err := link.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link %s: %w", link.ID, err)
	}

	_, err = s.pool.Exec(ctx, sqlUpsertLink,
		link.ID, link.SourceID, link.TargetID, link.Confidence, doc, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert link %s: %w", link.ID, err)
	}
	return nil
}

const sqlListRecent = `
    SELECT doc
    FROM threats
    ORDER BY COALESCE(published_at, observed_at, updated_at) DESC, id ASC
    LIMIT $1;
`

// ListRecentThreats returns up to limit threats ordered from most to least recent.
func (s *Store) ListRecentThreats(ctx context.Context, limit int) ([]schemas.UnifiedThreat, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, sqlListRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent threats: %w", err)
	}
	defer rows.Close()

	var threats []schemas.UnifiedThreat
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan threat row: %w", err)
		}
		var t schemas.UnifiedThreat
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("failed to decode threat document: %w", err)
		}
		threats = append(threats, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return threats, nil
}

const sqlGetThreat = `SELECT doc FROM threats WHERE id = $1;`

// GetThreat looks up a single threat by ID. A missing row yields (nil, nil).
func (s *Store) GetThreat(ctx context.Context, id string) (*schemas.UnifiedThreat, error) {
	rows, err := s.pool.Query(ctx, sqlGetThreat, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query threat %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("error during row iteration: %w", err)
		}
		return nil, nil
	}

	var doc []byte
	if err := rows.Scan(&doc); err != nil {
		return nil, fmt.Errorf("failed to scan threat row: %w", err)
	}
	var t schemas.UnifiedThreat
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("failed to decode threat document: %w", err)
	}
	return &t, nil
}

const sqlListLinks = `
    SELECT doc
    FROM correlation_links
    WHERE source_id = $1 OR target_id = $1
    ORDER BY confidence DESC, id ASC;
`

// ListLinksForID returns every link that references the given threat ID on
// either end, strongest first.
func (s *Store) ListLinksForID(ctx context.Context, id string) ([]schemas.CorrelationLink, error) {
	rows, err := s.pool.Query(ctx, sqlListLinks, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query links for %s: %w", id, err)
	}
	defer rows.Close()

	var links []schemas.CorrelationLink
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		var l schemas.CorrelationLink
		if err := json.Unmarshal(doc, &l); err != nil {
			return nil, fmt.Errorf("failed to decode link document: %w", err)
		}
		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return links, nil
}
