package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/llm"
	"github.com/helixir/paper-search-service/internal/llm/llmtest"
	"github.com/helixir/paper-search-service/internal/observability"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
}

func paper(id string, citations int, year int) *domain.UnifiedPaper {
	p := &domain.UnifiedPaper{
		ID:            id,
		Title:         "Paper " + id,
		CitationCount: citations,
		Abstract:      "Abstract of " + id,
		Source:        domain.SourceTypeSemanticScholar,
	}
	if year > 0 {
		p.Year = domain.IntPtr(year)
	}
	return p
}

func ids(scored []domain.ScoredPaper) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Paper.ID
	}
	return out
}

func TestHybridScore(t *testing.T) {
	// Most cited and published this year.
	assert.InDelta(t, 1.0, HybridScore(paper("a", 100, 2025), 100, 2025), 1e-9)
	// No citations, ten years old.
	assert.InDelta(t, 0.2, HybridScore(paper("b", 0, 2015), 100, 2025), 1e-9)
	// Older than the window contributes no recency.
	assert.InDelta(t, 0.3, HybridScore(paper("c", 50, 1990), 100, 2025), 1e-9)
	// Unknown year counts as 2000.
	assert.InDelta(t, 0.0, HybridScore(paper("d", 0, 0), 100, 2025), 1e-9)
	assert.InDelta(t, 0.4*0.5, HybridScore(paper("e", 0, 0), 100, 2010), 1e-9)
	// Zero max citations is treated as one.
	assert.InDelta(t, 0.4, HybridScore(paper("f", 0, 2025), 0, 2025), 1e-9)
}

func TestPrefilter(t *testing.T) {
	papers := []*domain.UnifiedPaper{
		paper("old", 10, 1995),
		paper("cited", 1000, 2010),
		paper("recent", 5, 2025),
		paper("tie-1", 0, 2005),
		paper("tie-2", 0, 2005),
	}

	top := Prefilter(papers, 3, 2025)
	require.Len(t, top, 3)
	assert.Equal(t, "cited", top[0].ID)
	assert.Equal(t, "recent", top[1].ID)

	all := Prefilter(papers, 10, 2025)
	require.Len(t, all, 5)
	// Equal scores keep input order.
	var tieOrder []string
	for _, p := range all {
		if p.ID == "tie-1" || p.ID == "tie-2" {
			tieOrder = append(tieOrder, p.ID)
		}
	}
	assert.Equal(t, []string{"tie-1", "tie-2"}, tieOrder)
}

func TestFallback_Deterministic(t *testing.T) {
	candidates := []*domain.UnifiedPaper{
		paper("a", 30, 2020),
		paper("b", 90, 2020),
		paper("c", 0, 2020),
	}

	first := Fallback(candidates)
	second := Fallback(candidates)
	assert.Equal(t, first, second)

	require.Len(t, first, 3)
	assert.Equal(t, "a", first[0].PaperID)
	assert.Equal(t, 0.33, first[0].RelevanceScore)
	assert.Equal(t, 1.0, first[1].RelevanceScore)
	assert.Equal(t, 0.0, first[2].RelevanceScore)
	for _, r := range first {
		assert.Equal(t, domain.EvidenceLevelModerate, r.EvidenceLevel)
		assert.Equal(t, domain.StudyTypeOther, r.StudyType)
		assert.Equal(t, FallbackReason, r.Reason)
	}

	// All zero citations: every score is zero.
	zero := Fallback([]*domain.UnifiedPaper{paper("x", 0, 0), paper("y", 0, 0)})
	assert.Equal(t, 0.0, zero[0].RelevanceScore)
	assert.Equal(t, 0.0, zero[1].RelevanceScore)
}

func TestOrder(t *testing.T) {
	papers := []*domain.UnifiedPaper{
		paper("p1", 0, 0),
		paper("p2", 0, 0),
		paper("p3", 0, 0),
		paper("p4", 0, 0),
		paper("p5", 0, 0),
	}
	rankings := []domain.RankedPaper{
		{PaperID: "p4", RelevanceScore: 0.5},
		{PaperID: "p2", RelevanceScore: 0.9},
		{PaperID: "p5", RelevanceScore: 0.5},
		{PaperID: "ghost", RelevanceScore: 1},
	}

	ordered := Order(papers, rankings)
	assert.Equal(t, []string{"p2", "p4", "p5", "p1", "p3"}, ids(ordered))

	assert.Equal(t, 0.9, ordered[0].Score())
	require.NotNil(t, ordered[1].Ranking)
	assert.Nil(t, ordered[3].Ranking)
	assert.Equal(t, 0.0, ordered[3].Score())
}

func TestOrder_SharedIDsKeepEveryPaper(t *testing.T) {
	first := paper("dup", 0, 0)
	first.Title = "First"
	second := paper("dup", 0, 0)
	second.Title = "Second"
	papers := []*domain.UnifiedPaper{paper("a", 0, 0), first, second}

	ordered := Order(papers, []domain.RankedPaper{
		{PaperID: "dup", RelevanceScore: 0.8},
		{PaperID: "dup", RelevanceScore: 0.1},
	})

	require.Len(t, ordered, 3)
	assert.Same(t, first, ordered[0].Paper)
	assert.Equal(t, 0.8, ordered[0].Score())
	assert.Same(t, papers[0], ordered[1].Paper)
	assert.Same(t, second, ordered[2].Paper)
	assert.Nil(t, ordered[2].Ranking)
}

func TestOrder_NoRankings(t *testing.T) {
	papers := []*domain.UnifiedPaper{paper("a", 0, 0), paper("b", 0, 0)}
	assert.Equal(t, []string{"a", "b"}, ids(Order(papers, nil)))
}

func TestRanker_Rank_Validates(t *testing.T) {
	body := `{"rankings": [
		{"paper_id": "b", "relevance_score": 1.7, "evidence_level": "high", "study_type": "RCT", "reason": " strong trial "},
		{"paper_id": "unknown", "relevance_score": 0.9, "evidence_level": "high", "study_type": "RCT"},
		{"paper_id": "a", "relevance_score": -0.2, "evidence_level": "very strong", "study_type": "editorial"},
		{"paper_id": "b", "relevance_score": 0.1, "evidence_level": "low", "study_type": "other"}
	]}`
	gen := &llmtest.Generator{StructuredFunc: llmtest.JSON(body)}
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	r := New(gen, Config{Now: fixedNow}, zerolog.Nop(), metrics)

	res := r.Rank(context.Background(), "statins", "statin benefits", []*domain.UnifiedPaper{
		paper("a", 10, 2020),
		paper("b", 20, 2021),
	})

	assert.Equal(t, ModeLLM, res.Mode)
	require.Len(t, res.Rankings, 2)

	assert.Equal(t, domain.RankedPaper{
		PaperID:        "b",
		RelevanceScore: 1,
		EvidenceLevel:  domain.EvidenceLevelHigh,
		StudyType:      domain.StudyTypeRCT,
		Reason:         "strong trial",
	}, res.Rankings[0])
	assert.Equal(t, "a", res.Rankings[1].PaperID)
	assert.Equal(t, 0.0, res.Rankings[1].RelevanceScore)
	assert.Equal(t, domain.EvidenceLevelModerate, res.Rankings[1].EvidenceLevel)
	assert.Equal(t, domain.StudyTypeOther, res.Rankings[1].StudyType)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RankingRuns.WithLabelValues(ModeLLM)))

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, DefaultMaxTokens, calls[0].MaxTokens)
	assert.Contains(t, calls[0].User, "User search query: statins")
	assert.Contains(t, calls[0].User, "Search intent: statin benefits")
	assert.Contains(t, calls[0].User, "- ID: b\n  Title: Paper b\n  Year: 2021\n  Citations: 20\n")
}

func TestRanker_Rank_Fallback(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, string, string, any) error
	}{
		{name: "generator unavailable", fn: llmtest.Fail(domain.ErrServiceUnavailable)},
		{name: "malformed output", fn: llmtest.Fail(&llm.ParseError{Raw: "{", Err: errors.New("unexpected end")})},
		{name: "only unknown ids", fn: llmtest.JSON(`{"rankings": [{"paper_id": "zzz", "relevance_score": 0.9}]}`)},
		{name: "empty rankings", fn: llmtest.JSON(`{"rankings": []}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			metrics := observability.NewMetrics("test", reg)
			r := New(&llmtest.Generator{StructuredFunc: tt.fn}, Config{Now: fixedNow}, zerolog.Nop(), metrics)

			papers := []*domain.UnifiedPaper{paper("a", 50, 2024), paper("b", 100, 2024)}
			res := r.Rank(context.Background(), "q", "intent", papers)

			assert.Equal(t, ModeFallback, res.Mode)
			assert.Equal(t, Fallback(Prefilter(papers, DefaultTopK, 2025)), res.Rankings)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RankingRuns.WithLabelValues(ModeFallback)))
		})
	}
}

func TestRanker_Rank_LimitsCandidates(t *testing.T) {
	gen := &llmtest.Generator{StructuredFunc: llmtest.Fail(errors.New("down"))}
	r := New(gen, Config{TopK: 2, Now: fixedNow}, zerolog.Nop(), nil)

	res := r.Rank(context.Background(), "q", "i", []*domain.UnifiedPaper{
		paper("a", 1, 2000),
		paper("b", 100, 2025),
		paper("c", 50, 2025),
	})

	require.Len(t, res.Rankings, 2)
	assert.Equal(t, "b", res.Rankings[0].PaperID)
	assert.Equal(t, "c", res.Rankings[1].PaperID)
}

func TestRanker_Rank_Empty(t *testing.T) {
	gen := &llmtest.Generator{}
	r := New(gen, Config{}, zerolog.Nop(), nil)

	res := r.Rank(context.Background(), "q", "i", nil)
	assert.Empty(t, res.Rankings)
	assert.Equal(t, 0, gen.CallCount())
}

func TestRanker_NilGenerator(t *testing.T) {
	r := New(nil, Config{Now: fixedNow}, zerolog.Nop(), nil)
	res := r.Rank(context.Background(), "q", "i", []*domain.UnifiedPaper{paper("a", 3, 2020)})
	assert.Equal(t, ModeFallback, res.Mode)
	require.Len(t, res.Rankings, 1)
	assert.Equal(t, 1.0, res.Rankings[0].RelevanceScore)
}
