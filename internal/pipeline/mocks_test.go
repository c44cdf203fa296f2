package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/normalize"
)

// -- Document Store Mock --

// MockDocumentStore mocks the schemas.DocumentStore interface.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) UpsertThreat(ctx context.Context, threat *schemas.UnifiedThreat) error {
	args := m.Called(ctx, threat)
	return args.Error(0)
}

func (m *MockDocumentStore) UpsertLink(ctx context.Context, link *schemas.CorrelationLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockDocumentStore) ListRecentThreats(ctx context.Context, limit int) ([]schemas.UnifiedThreat, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.UnifiedThreat), args.Error(1)
}

func (m *MockDocumentStore) GetThreat(ctx context.Context, id string) (*schemas.UnifiedThreat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.UnifiedThreat), args.Error(1)
}

func (m *MockDocumentStore) ListLinksForID(ctx context.Context, id string) ([]schemas.CorrelationLink, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.CorrelationLink), args.Error(1)
}

// -- Vector Index Mock --

// MockVectorIndex mocks the schemas.VectorIndex interface.
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) IndexThreats(ctx context.Context, threats []schemas.UnifiedThreat) ([]schemas.IndexResult, error) {
	args := m.Called(ctx, threats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.IndexResult), args.Error(1)
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, topK int, excludeID string) ([]schemas.CandidateHit, error) {
	args := m.Called(ctx, vector, topK, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.CandidateHit), args.Error(1)
}

// -- Embedding Provider Mock --

// MockEmbeddingProvider mocks the schemas.EmbeddingProvider interface.
type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbeddingProvider) Dimension() int {
	args := m.Called()
	return args.Int(0)
}

// -- Feed Stubs --

type stubAdvisoryFeed struct {
	payloads []normalize.Payload
	err      error
}

func (s *stubAdvisoryFeed) FetchRecent(_ context.Context, _ time.Time) ([]normalize.Payload, error) {
	return s.payloads, s.err
}

type stubIndicatorFeed struct {
	payloads []normalize.Payload
	err      error
}

func (s *stubIndicatorFeed) FetchRecent(_ context.Context) ([]normalize.Payload, error) {
	return s.payloads, s.err
}

type stubNewsFeed struct {
	byURL map[string][]normalize.Payload
	err   error
}

func (s *stubNewsFeed) FetchFeed(_ context.Context, url string) ([]normalize.Payload, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byURL[url], nil
}
