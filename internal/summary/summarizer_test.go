package summary

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/cache"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/llm/llmtest"
	"github.com/helixir/paper-search-service/internal/observability"
)

func newStore() *cache.Store {
	return cache.NewStore(cache.NewMemoryBackend(), cache.Options{})
}

func newTestSummarizer(gen *llmtest.Generator, cfg Config) (*Summarizer, *observability.Metrics) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	return New(gen, newStore(), cfg, zerolog.Nop(), metrics), metrics
}

func testPaper(id, abstract string) *domain.UnifiedPaper {
	return &domain.UnifiedPaper{
		ID:            id,
		Title:         "Title " + id,
		Journal:       "Lancet",
		Year:          domain.IntPtr(2023),
		CitationCount: 42,
		Abstract:      abstract,
	}
}

func TestGetOrGenerate_CachesResult(t *testing.T) {
	gen := &llmtest.Generator{
		TextFunc: func(_ context.Context, _, user string) (string, error) {
			return "  A short summary.  ", nil
		},
	}
	s, metrics := newTestSummarizer(gen, Config{})
	ctx := context.Background()

	text, cached := s.Summarize(ctx, "s2:1", "Some abstract", "ja", "A title")
	assert.Equal(t, "A short summary.", text)
	assert.False(t, cached)

	text, cached = s.Summarize(ctx, "s2:1", "Some abstract", "ja", "A title")
	assert.Equal(t, "A short summary.", text)
	assert.True(t, cached)

	require.Equal(t, 1, gen.CallCount())
	call := gen.Calls()[0]
	assert.Contains(t, call.User, "Language: Japanese (ja)")
	assert.Contains(t, call.User, "Paper title: A title")
	assert.Equal(t, summaryMaxTokens, call.MaxTokens)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SummaryOutcomes.WithLabelValues(outcomeGenerated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SummaryOutcomes.WithLabelValues(outcomeCached)))

	// A different language is a different entry.
	s.GetOrGenerate(ctx, "s2:1", "Some abstract", "en", "A title")
	assert.Equal(t, 2, gen.CallCount())
}

func TestGetOrGenerate_EmptyAbstract(t *testing.T) {
	gen := &llmtest.Generator{}
	s, metrics := newTestSummarizer(gen, Config{})

	assert.Equal(t, "", s.GetOrGenerate(context.Background(), "p", "   ", "ja", "t"))
	assert.Equal(t, 0, gen.CallCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SummaryOutcomes.WithLabelValues(outcomeSkipped)))
}

func TestGetOrGenerate_FailureNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	gen := &llmtest.Generator{
		TextFunc: func(context.Context, string, string) (string, error) {
			if fail.Load() {
				return "", errors.New("upstream 500")
			}
			return "recovered", nil
		},
	}
	s, metrics := newTestSummarizer(gen, Config{})
	ctx := context.Background()

	assert.Equal(t, "", s.GetOrGenerate(ctx, "p", "abstract", "ja", "t"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SummaryOutcomes.WithLabelValues(outcomeFailed)))

	fail.Store(false)
	assert.Equal(t, "recovered", s.GetOrGenerate(ctx, "p", "abstract", "ja", "t"))
	assert.Equal(t, 2, gen.CallCount())
}

func TestGetOrGenerate_Timeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	gen := &llmtest.Generator{
		TextFunc: func(context.Context, string, string) (string, error) {
			<-block
			return "too late", nil
		},
	}
	s, metrics := newTestSummarizer(gen, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	assert.Equal(t, "", s.GetOrGenerate(context.Background(), "p", "abstract", "ja", "t"))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SummaryOutcomes.WithLabelValues(outcomeTimeout)))
}

func TestBatch_IsolatesTimeouts(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	gen := &llmtest.Generator{
		TextFunc: func(_ context.Context, system, user string) (string, error) {
			switch {
			case system == overviewPrompt:
				return "overview text", nil
			case strings.Contains(user, "Title slow"):
				// Ignores cancellation entirely.
				<-block
				return "never", nil
			default:
				return "summary of " + user[strings.Index(user, "Title "):strings.Index(user, "\n\nAbstract")], nil
			}
		},
	}
	s, _ := newTestSummarizer(gen, Config{Timeout: 50 * time.Millisecond})

	papers := []*domain.UnifiedPaper{
		testPaper("a", "abstract a"),
		testPaper("slow", "abstract slow"),
		testPaper("c", "abstract c"),
		testPaper("empty", ""),
	}

	res := s.Batch(context.Background(), "query", "en", papers)

	require.Len(t, res.Summaries, 4)
	assert.Equal(t, "summary of Title a", res.Summaries[0])
	assert.Equal(t, "", res.Summaries[1])
	assert.Equal(t, "summary of Title c", res.Summaries[2])
	assert.Equal(t, "", res.Summaries[3])
	assert.Equal(t, "overview text", res.Overview)
}

func TestOverview(t *testing.T) {
	gen := &llmtest.Generator{
		TextFunc: func(context.Context, string, string) (string, error) { return "answer", nil },
	}
	s, _ := newTestSummarizer(gen, Config{})

	assert.Equal(t, "", s.Overview(context.Background(), "q", "ja", nil))
	assert.Equal(t, 0, gen.CallCount())

	var papers []*domain.UnifiedPaper
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		papers = append(papers, testPaper(id, strings.Repeat("x", 400)))
	}
	assert.Equal(t, "answer", s.Overview(context.Background(), "sleep", "ko", papers))

	user := gen.Calls()[0].User
	assert.Contains(t, user, "User search query: sleep")
	assert.Contains(t, user, "Answer language: Korean (ko)")
	assert.Contains(t, user, "[5] Title 5")
	assert.NotContains(t, user, "[6]")
	assert.Contains(t, user, "Journal: Lancet, Year: 2023, Citations: 42")
	assert.Contains(t, user, "Abstract: "+strings.Repeat("x", 300)+"\n")
	assert.NotContains(t, user, strings.Repeat("x", 301))
}

func TestTranslateTitles(t *testing.T) {
	titles := []string{"Sleep and memory", "Coffee and heart disease", "Vitamin D"}

	t.Run("english passes through", func(t *testing.T) {
		gen := &llmtest.Generator{}
		s, _ := newTestSummarizer(gen, Config{})
		assert.Equal(t, titles, s.TranslateTitles(context.Background(), titles, "en"))
		assert.Equal(t, titles, s.TranslateTitles(context.Background(), titles, ""))
		assert.Equal(t, 0, gen.CallCount())
	})

	t.Run("numbered reply", func(t *testing.T) {
		gen := &llmtest.Generator{
			TextFunc: func(context.Context, string, string) (string, error) {
				return "1. 睡眠と記憶\n\n2．コーヒーと心臓病\n3.ビタミンD\n", nil
			},
		}
		s, _ := newTestSummarizer(gen, Config{})
		got := s.TranslateTitles(context.Background(), titles, "ja")
		assert.Equal(t, []string{"睡眠と記憶", "コーヒーと心臓病", "ビタミンD"}, got)
		assert.Contains(t, gen.Calls()[0].User, "1. Sleep and memory\n2. Coffee and heart disease\n3. Vitamin D")
	})

	t.Run("short reply padded with originals", func(t *testing.T) {
		gen := &llmtest.Generator{
			TextFunc: func(context.Context, string, string) (string, error) {
				return "1. 睡眠と記憶", nil
			},
		}
		s, _ := newTestSummarizer(gen, Config{})
		got := s.TranslateTitles(context.Background(), titles, "ja")
		assert.Equal(t, []string{"睡眠と記憶", "Coffee and heart disease", "Vitamin D"}, got)
	})

	t.Run("failure returns originals", func(t *testing.T) {
		gen := &llmtest.Generator{
			TextFunc: func(context.Context, string, string) (string, error) {
				return "", domain.ErrServiceUnavailable
			},
		}
		s, _ := newTestSummarizer(gen, Config{})
		assert.Equal(t, titles, s.TranslateTitles(context.Background(), titles, "ko"))
	})
}

func TestTranslateAllLevels(t *testing.T) {
	gen := &llmtest.Generator{
		TextFunc: func(_ context.Context, system, _ string) (string, error) {
			switch system {
			case expertPrompt:
				return "expert text", nil
			case childrenPrompt:
				return "", errors.New("boom")
			default:
				return "layperson text", nil
			}
		},
	}
	s, _ := newTestSummarizer(gen, Config{})
	ctx := context.Background()

	got := s.TranslateAllLevels(ctx, "p", "abstract", "ja", "title")
	assert.Equal(t, []domain.AbstractTranslation{
		{Difficulty: domain.DifficultyExpert, Text: "expert text"},
		{Difficulty: domain.DifficultyLayperson, Text: "layperson text"},
		{Difficulty: domain.DifficultyChildren, Text: ""},
	}, got)
	assert.Equal(t, 3, gen.CallCount())

	// Successful levels are cached; the failed one is retried.
	s.TranslateAllLevels(ctx, "p", "abstract", "ja", "title")
	assert.Equal(t, 4, gen.CallCount())

	// Unknown difficulty maps to layperson and hits its cache.
	assert.Equal(t, "layperson text", s.TranslateAbstract(ctx, "p", "abstract", "ja", "title", "advanced"))
	assert.Equal(t, 4, gen.CallCount())
}

func TestPrecache(t *testing.T) {
	gen := &llmtest.Generator{
		TextFunc: func(context.Context, string, string) (string, error) { return "summary", nil },
	}
	s, _ := newTestSummarizer(gen, Config{Concurrency: 2})
	ctx := context.Background()

	// Already cached in ja.
	s.cache.SetString(ctx, cache.NamespaceSummary, "existing", "a", "ja")

	papers := []*domain.UnifiedPaper{testPaper("a", "abstract"), testPaper("b", "")}
	generated := s.Precache(ctx, papers, []string{"ja", "en", "ko"})

	assert.Equal(t, 2, generated)
	assert.Equal(t, 2, gen.CallCount())

	text, ok := s.Cached(ctx, "a", "ja")
	require.True(t, ok)
	assert.Equal(t, "existing", text)
	_, ok = s.Cached(ctx, "b", "en")
	assert.False(t, ok)
}
