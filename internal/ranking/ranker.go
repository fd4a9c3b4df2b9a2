// Package ranking orders deduplicated papers by relevance to the user's query.
//
// A hybrid citation/recency score pre-filters the candidates sent to the text
// generator. When the generator fails, returns malformed output, or ranks
// nothing recognizable, a deterministic citation-based ranking is used
// instead.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/llm"
	"github.com/helixir/paper-search-service/internal/observability"
)

const (
	// DefaultTopK is the number of pre-filtered candidates sent for ranking.
	DefaultTopK = 30
	// DefaultMaxTokens bounds the ranking reply.
	DefaultMaxTokens = 4096

	// FallbackReason explains rankings produced without the generator.
	FallbackReason = "Ranked by citation count (ranking service unavailable)"

	// Mode labels for metrics and logs.
	ModeLLM      = "llm"
	ModeFallback = "fallback"

	citationWeight = 0.6
	recencyWeight  = 0.4
	recencyWindow  = 20.0
	unknownYear    = 2000
	previewLength  = 200
)

const systemPrompt = `You are a relevance ranking engine for academic papers.

You receive a user's search query, the interpreted search intent, and a list of candidate papers.
Score how relevant each paper is to what the user actually wants to know.

Criteria, most important first:
1. Direct relevance to the user's intent: does the paper answer what a non-expert is asking?
2. Evidence level: meta-analysis > systematic review > RCT > cohort study > case series > case report > basic research > narrative review.
3. Practicality: prefer clinical results over molecular mechanism detail.
4. Recency: at equal evidence level, prefer newer papers.
5. Citations: all else equal, prefer more cited papers.

Respond with a single JSON object and nothing else:
{
  "rankings": [
    {
      "paper_id": "<the ID exactly as given>",
      "relevance_score": 0.95,
      "evidence_level": "high",
      "study_type": "meta-analysis",
      "reason": "<short English explanation, at most 50 words>"
    }
  ]
}

evidence_level is one of "high", "moderate", "low".
study_type is one of "meta-analysis", "systematic-review", "RCT", "cohort", "case-series", "case-report", "basic-research", "review", "other".`

// rankingResponse is the generator's reply. Fields are decoded loosely and
// validated afterwards.
type rankingResponse struct {
	Rankings []struct {
		PaperID        string  `json:"paper_id"`
		RelevanceScore float64 `json:"relevance_score"`
		EvidenceLevel  string  `json:"evidence_level"`
		StudyType      string  `json:"study_type"`
		Reason         string  `json:"reason"`
	} `json:"rankings"`
}

// Config configures a Ranker.
type Config struct {
	TopK      int
	MaxTokens int
	// Now supplies the current year for the recency score. Defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of one ranking pass.
type Result struct {
	Rankings []domain.RankedPaper
	Mode     string
}

// Ranker scores papers. It is safe for concurrent use.
type Ranker struct {
	generator llm.Generator
	cfg       Config
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// New creates a Ranker. A nil generator always ranks with the fallback.
func New(generator llm.Generator, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Ranker {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ranker{
		generator: generator,
		cfg:       cfg,
		logger:    logger.With().Str("component", "ranking").Logger(),
		metrics:   metrics,
	}
}

// Rank scores the pre-filtered candidates among papers. It never fails.
func (r *Ranker) Rank(ctx context.Context, query, intent string, papers []*domain.UnifiedPaper) Result {
	if len(papers) == 0 {
		return Result{Mode: ModeLLM}
	}

	candidates := Prefilter(papers, r.cfg.TopK, r.cfg.Now().Year())

	rankings, err := r.generate(ctx, query, intent, candidates)
	if err == nil && len(rankings) == 0 {
		err = fmt.Errorf("no valid rankings: %w", domain.ErrMalformedOutput)
	}
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("kind", string(domain.Classify(err))).
			Int("candidates", len(candidates)).
			Msg("relevance ranking failed, using citation fallback")
		r.metrics.RecordRanking(ModeFallback)
		return Result{Rankings: Fallback(candidates), Mode: ModeFallback}
	}

	r.metrics.RecordRanking(ModeLLM)
	return Result{Rankings: rankings, Mode: ModeLLM}
}

func (r *Ranker) generate(ctx context.Context, query, intent string, candidates []*domain.UnifiedPaper) ([]domain.RankedPaper, error) {
	if r.generator == nil {
		return nil, fmt.Errorf("relevance ranking: %w", domain.ErrServiceUnavailable)
	}

	var resp rankingResponse
	if err := r.generator.GenerateStructured(ctx, systemPrompt, buildUserPrompt(query, intent, candidates), r.cfg.MaxTokens, &resp); err != nil {
		return nil, fmt.Errorf("relevance ranking: %w", err)
	}

	known := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		known[p.ID] = struct{}{}
	}

	rankings := make([]domain.RankedPaper, 0, len(resp.Rankings))
	seen := make(map[string]struct{}, len(resp.Rankings))
	for _, item := range resp.Rankings {
		id := strings.TrimSpace(item.PaperID)
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		rankings = append(rankings, domain.RankedPaper{
			PaperID:        id,
			RelevanceScore: clamp(item.RelevanceScore),
			EvidenceLevel:  domain.ParseEvidenceLevel(item.EvidenceLevel),
			StudyType:      domain.ParseStudyType(item.StudyType),
			Reason:         strings.TrimSpace(item.Reason),
		})
	}

	return rankings, nil
}

func buildUserPrompt(query, intent string, candidates []*domain.UnifiedPaper) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User search query: %s\n", query)
	fmt.Fprintf(&b, "Search intent: %s\n\n", intent)
	b.WriteString("Papers:\n")
	for _, p := range candidates {
		year := "unknown"
		if p.Year != nil {
			year = fmt.Sprintf("%d", *p.Year)
		}
		fmt.Fprintf(&b, "- ID: %s\n", p.ID)
		fmt.Fprintf(&b, "  Title: %s\n", p.Title)
		fmt.Fprintf(&b, "  Year: %s\n", year)
		fmt.Fprintf(&b, "  Citations: %d\n", p.CitationCount)
		fmt.Fprintf(&b, "  Abstract: %s\n\n", preview(p.Abstract, previewLength))
	}
	return b.String()
}

// HybridScore weighs a paper's citations against the most cited paper in the
// set and its age against a twenty-year window. Papers without a year count
// as published in 2000.
func HybridScore(p *domain.UnifiedPaper, maxCitations, currentYear int) float64 {
	if maxCitations <= 0 {
		maxCitations = 1
	}
	year := unknownYear
	if p.Year != nil {
		year = *p.Year
	}
	citation := float64(p.CitationCount) / float64(maxCitations)
	recency := math.Max(0, 1-float64(currentYear-year)/recencyWindow)
	return citationWeight*citation + recencyWeight*recency
}

// Prefilter returns the topK papers by HybridScore, ties kept in input order.
func Prefilter(papers []*domain.UnifiedPaper, topK, currentYear int) []*domain.UnifiedPaper {
	maxCitations := maxCitationCount(papers)

	type scored struct {
		paper *domain.UnifiedPaper
		score float64
	}
	all := make([]scored, len(papers))
	for i, p := range papers {
		all[i] = scored{paper: p, score: HybridScore(p, maxCitations, currentYear)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].score > all[j].score
	})

	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	out := make([]*domain.UnifiedPaper, len(all))
	for i, s := range all {
		out[i] = s.paper
	}
	return out
}

// Fallback ranks candidates by citation count relative to the most cited
// candidate, preserving candidate order.
func Fallback(candidates []*domain.UnifiedPaper) []domain.RankedPaper {
	maxCitations := maxCitationCount(candidates)
	rankings := make([]domain.RankedPaper, len(candidates))
	for i, p := range candidates {
		rankings[i] = domain.RankedPaper{
			PaperID:        p.ID,
			RelevanceScore: math.Round(float64(p.CitationCount)/float64(maxCitations)*100) / 100,
			EvidenceLevel:  domain.EvidenceLevelModerate,
			StudyType:      domain.StudyTypeOther,
			Reason:         FallbackReason,
		}
	}
	return rankings
}

// Order returns papers ranked by score descending, ties in ranking order,
// followed by every paper without a ranking in its original order. Every
// input paper appears exactly once; when several papers share an ID the
// ranking attaches to the first of them.
func Order(papers []*domain.UnifiedPaper, rankings []domain.RankedPaper) []domain.ScoredPaper {
	byID := make(map[string]int, len(papers))
	for i, p := range papers {
		if _, exists := byID[p.ID]; !exists {
			byID[p.ID] = i
		}
	}

	ranked := make([]domain.ScoredPaper, 0, len(rankings))
	used := make([]bool, len(papers))
	for i := range rankings {
		rk := rankings[i]
		idx, ok := byID[rk.PaperID]
		if !ok || used[idx] {
			continue
		}
		used[idx] = true
		ranked = append(ranked, domain.ScoredPaper{Paper: papers[idx], Ranking: &rk})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})

	out := ranked
	for i, p := range papers {
		if used[i] {
			continue
		}
		out = append(out, domain.ScoredPaper{Paper: p})
	}
	return out
}

func maxCitationCount(papers []*domain.UnifiedPaper) int {
	m := 0
	for _, p := range papers {
		if p.CitationCount > m {
			m = p.CitationCount
		}
	}
	if m == 0 {
		return 1
	}
	return m
}

func clamp(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
