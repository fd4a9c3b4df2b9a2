package papersources

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/domain"
)

// mockPaperSource is a mock implementation of PaperSource for testing.
type mockPaperSource struct {
	sourceType domain.SourceType
	name       string
	enabled    bool

	// searchFunc allows customizing search behavior in tests
	searchFunc func(ctx context.Context, params SearchParams) ([]*domain.UnifiedPaper, error)

	// getByIDFunc allows customizing GetByID behavior in tests
	getByIDFunc func(ctx context.Context, id string) (*domain.UnifiedPaper, error)

	searchCalls atomic.Int32
}

func newMockPaperSource(sourceType domain.SourceType, name string, enabled bool) *mockPaperSource {
	return &mockPaperSource{
		sourceType: sourceType,
		name:       name,
		enabled:    enabled,
	}
}

func (m *mockPaperSource) Search(ctx context.Context, params SearchParams) ([]*domain.UnifiedPaper, error) {
	m.searchCalls.Add(1)
	if m.searchFunc != nil {
		return m.searchFunc(ctx, params)
	}
	return []*domain.UnifiedPaper{}, nil
}

func (m *mockPaperSource) GetByID(ctx context.Context, id string) (*domain.UnifiedPaper, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, domain.NewNotFoundError("paper", id)
}

func (m *mockPaperSource) SourceType() domain.SourceType {
	return m.sourceType
}

func (m *mockPaperSource) Name() string {
	return m.name
}

func (m *mockPaperSource) IsEnabled() bool {
	return m.enabled
}

func (m *mockPaperSource) SearchCallCount() int {
	return int(m.searchCalls.Load())
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	require.NotNil(t, registry)
	assert.Empty(t, registry.AllSources())
	assert.Empty(t, registry.EnabledSources())
	assert.Nil(t, registry.Get(domain.SourceTypePubMed))
}

func TestRegistry_Register(t *testing.T) {
	t.Run("preserves registration order", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockPaperSource(domain.SourceTypePubMed, "PubMed", true))
		registry.Register(newMockPaperSource(domain.SourceTypeSemanticScholar, "Semantic Scholar", true))
		registry.Register(newMockPaperSource(domain.SourceTypeOpenAlex, "OpenAlex", true))

		var names []string
		for _, s := range registry.AllSources() {
			names = append(names, s.Name())
		}
		assert.Equal(t, []string{"PubMed", "Semantic Scholar", "OpenAlex"}, names)
	})

	t.Run("re-registering replaces in place", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockPaperSource(domain.SourceTypePubMed, "old", true))
		registry.Register(newMockPaperSource(domain.SourceTypeOpenAlex, "OpenAlex", true))
		registry.Register(newMockPaperSource(domain.SourceTypePubMed, "new", true))

		all := registry.AllSources()
		require.Len(t, all, 2)
		assert.Equal(t, "new", all[0].Name())
		assert.Equal(t, "new", registry.Get(domain.SourceTypePubMed).Name())
	})
}

func TestRegistry_EnabledSources(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newMockPaperSource(domain.SourceTypeSemanticScholar, "Semantic Scholar", true))
	registry.Register(newMockPaperSource(domain.SourceTypePubMed, "PubMed", false))
	registry.Register(newMockPaperSource(domain.SourceTypeOpenAlex, "OpenAlex", true))

	enabled := registry.EnabledSources()
	require.Len(t, enabled, 2)
	assert.Equal(t, domain.SourceTypeSemanticScholar, enabled[0].SourceType())
	assert.Equal(t, domain.SourceTypeOpenAlex, enabled[1].SourceType())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	types := []domain.SourceType{domain.SourceTypeSemanticScholar, domain.SourceTypePubMed, domain.SourceTypeOpenAlex}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Register(newMockPaperSource(types[i%len(types)], "s", true))
		}()
		go func() {
			defer wg.Done()
			_ = registry.EnabledSources()
		}()
	}
	wg.Wait()

	assert.Len(t, registry.AllSources(), 3)
}
