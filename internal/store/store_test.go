package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func sampleThreat(id string) *schemas.UnifiedThreat {
	sev := 9.8
	pub := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return &schemas.UnifiedThreat{
		ID:          id,
		Source:      "nvd",
		Type:        schemas.ThreatTypeCVE,
		Title:       "CVE-2026-0001",
		Summary:     "Remote code execution in nginx",
		PublishedAt: &pub,
		Severity:    &sev,
		Tags:        []string{"exploited"},
		Raw:         map[string]any{"cve": map[string]any{"id": "CVE-2026-0001"}},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should succeed when ping succeeds", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()

		s, err := New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func TestUpsertThreat(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert a valid threat", func(t *testing.T) {
		s, mockPool := newTestStore(t)
		threat := sampleThreat("nvd:CVE-2026-0001")

		mockPool.ExpectExec(flexibleSQLMatcher("INSERT INTO threats")).
			WithArgs(threat.ID, threat.Source, string(threat.Type), threat.Severity,
				threat.PublishedAt, threat.ObservedAt, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.UpsertThreat(ctx, threat))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject a nil threat", func(t *testing.T) {
		s, _ := newTestStore(t)
		assert.Error(t, s.UpsertThreat(ctx, nil))
	})

	t.Run("should reject an invalid threat before touching the database", func(t *testing.T) {
		s, mockPool := newTestStore(t)
		threat := sampleThreat("nvd:CVE-2026-0001")
		threat.Title = ""

		err := s.UpsertThreat(ctx, threat)
		require.Error(t, err)
		var verr *schemas.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.NoError(t, mockPool.ExpectationsWereMet(), "no SQL should have been executed")
	})

	t.Run("should propagate database errors", func(t *testing.T) {
		s, mockPool := newTestStore(t)
		threat := sampleThreat("nvd:CVE-2026-0001")

		dbErr := errors.New("connection reset")
		mockPool.ExpectExec(flexibleSQLMatcher("INSERT INTO threats")).
			WithArgs(threat.ID, threat.Source, string(threat.Type), threat.Severity,
				threat.PublishedAt, threat.ObservedAt, pgxmock.AnyArg()).
			WillReturnError(dbErr)

		err := s.UpsertThreat(ctx, threat)
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestUpsertLink(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert a valid link", func(t *testing.T) {
		s, mockPool := newTestStore(t)
		sim := 0.91
		link := schemas.NewCorrelationLink("nvd:CVE-2026-0001", "otx:url:http://evil.test", 0.82, &sim,
			[]string{"Shared CVE identifiers: CVE-2026-0001"})

		mockPool.ExpectExec(flexibleSQLMatcher("INSERT INTO correlation_links")).
			WithArgs(link.ID, link.SourceID, link.TargetID, link.Confidence, pgxmock.AnyArg(), link.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.UpsertLink(ctx, link))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject an out of range confidence", func(t *testing.T) {
		s, _ := newTestStore(t)
		link := schemas.NewCorrelationLink("a", "b", 1.5, nil, nil)
		assert.Error(t, s.UpsertLink(ctx, link))
	})
}

func TestListRecentThreats(t *testing.T) {
	ctx := context.Background()

	t.Run("should decode stored documents in order", func(t *testing.T) {
		s, mockPool := newTestStore(t)

		first := sampleThreat("nvd:CVE-2026-0002")
		second := sampleThreat("nvd:CVE-2026-0001")
		firstDoc, err := json.Marshal(first)
		require.NoError(t, err)
		secondDoc, err := json.Marshal(second)
		require.NoError(t, err)

		rows := pgxmock.NewRows([]string{"doc"}).AddRow(firstDoc).AddRow(secondDoc)
		mockPool.ExpectQuery(flexibleSQLMatcher("SELECT doc FROM threats")).
			WithArgs(10).
			WillReturnRows(rows)

		threats, err := s.ListRecentThreats(ctx, 10)
		require.NoError(t, err)
		require.Len(t, threats, 2)
		assert.Equal(t, "nvd:CVE-2026-0002", threats[0].ID)
		assert.Equal(t, "nvd:CVE-2026-0001", threats[1].ID)
		require.NotNil(t, threats[0].Severity)
		assert.InDelta(t, 9.8, *threats[0].Severity, 1e-9)
	})

	t.Run("should return nothing for a non positive limit", func(t *testing.T) {
		s, mockPool := newTestStore(t)

		threats, err := s.ListRecentThreats(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, threats)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetThreat(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the threat when present", func(t *testing.T) {
		s, mockPool := newTestStore(t)
		threat := sampleThreat("nvd:CVE-2026-0001")
		doc, err := json.Marshal(threat)
		require.NoError(t, err)

		mockPool.ExpectQuery(flexibleSQLMatcher("SELECT doc FROM threats WHERE id = $1")).
			WithArgs("nvd:CVE-2026-0001").
			WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

		got, err := s.GetThreat(ctx, "nvd:CVE-2026-0001")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, threat.Title, got.Title)
	})

	t.Run("should return nil for a missing id", func(t *testing.T) {
		s, mockPool := newTestStore(t)

		mockPool.ExpectQuery(flexibleSQLMatcher("SELECT doc FROM threats WHERE id = $1")).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows([]string{"doc"}))

		got, err := s.GetThreat(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestListLinksForID(t *testing.T) {
	ctx := context.Background()

	t.Run("should return links referencing the id on either end", func(t *testing.T) {
		s, mockPool := newTestStore(t)
		link := schemas.NewCorrelationLink("nvd:CVE-2026-0001", "otx:url:http://evil.test", 0.82, nil,
			[]string{"Cross-source match boosts confidence diversity"})
		doc, err := json.Marshal(link)
		require.NoError(t, err)

		mockPool.ExpectQuery(flexibleSQLMatcher("SELECT doc FROM correlation_links")).
			WithArgs("nvd:CVE-2026-0001").
			WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

		links, err := s.ListLinksForID(ctx, "nvd:CVE-2026-0001")
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, link.ID, links[0].ID)
		assert.InDelta(t, 0.82, links[0].Confidence, 1e-9)
	})
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool := newTestStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher("CREATE TABLE IF NOT EXISTS threats")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
