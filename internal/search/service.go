// Package search composes the paper search pipeline.
//
// A search runs: composed-response cache lookup, query expansion, provider
// fan-out, deduplication, ranking in parallel with title translation,
// pagination, per-paper summaries in parallel with the overview, response
// composition and caching. Every enrichment step degrades instead of failing
// the request; only exhausting every provider call with nothing cached is an
// error (domain.ErrNoResultsAvailable).
//
// After a response is composed, summary precaching and event publishing run
// as supervised background tasks.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/cache"
	"github.com/helixir/paper-search-service/internal/dedup"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/events"
	"github.com/helixir/paper-search-service/internal/fanout"
	"github.com/helixir/paper-search-service/internal/observability"
	"github.com/helixir/paper-search-service/internal/papersources"
	"github.com/helixir/paper-search-service/internal/ranking"
	"github.com/helixir/paper-search-service/internal/summary"
	"github.com/helixir/paper-search-service/internal/supervisor"
)

// Search outcomes reported to metrics.
const (
	outcomeOK        = "ok"
	outcomeEmpty     = "empty"
	outcomeNoResults = "no_results"
)

const (
	// DefaultMaxQueryVariants caps the expanded queries searched.
	DefaultMaxQueryVariants = 5
	// DefaultPrecacheTopN is how many page papers are precached in the background.
	DefaultPrecacheTopN = 5
)

// Expander turns a user query into academic search queries.
type Expander interface {
	Transform(ctx context.Context, query, language string) domain.QueryExpansion
}

// Searcher fans query variants out across the enabled providers.
type Searcher interface {
	FanOut(ctx context.Context, queries []string, yearFrom, yearTo *int) papersources.FanOutResult
}

// PaperFetcher looks up a single paper by identifier.
type PaperFetcher interface {
	FetchPaper(ctx context.Context, id string) (*domain.UnifiedPaper, error)
}

// Ranker scores papers for relevance.
type Ranker interface {
	Rank(ctx context.Context, query, intent string, papers []*domain.UnifiedPaper) ranking.Result
}

// Summarizer produces generated text about papers.
type Summarizer interface {
	Summarize(ctx context.Context, paperID, abstract, language, title string) (string, bool)
	Cached(ctx context.Context, paperID, language string) (string, bool)
	Batch(ctx context.Context, query, language string, papers []*domain.UnifiedPaper) summary.BatchResult
	TranslateTitles(ctx context.Context, titles []string, language string) []string
	TranslateAbstract(ctx context.Context, paperID, abstract, language, title string, difficulty domain.Difficulty) string
	TranslateAllLevels(ctx context.Context, paperID, abstract, language, title string) []domain.AbstractTranslation
	Precache(ctx context.Context, papers []*domain.UnifiedPaper, languages []string) int
}

// TaskRunner runs background work.
type TaskRunner interface {
	Go(name string, fn supervisor.Task) (id string, ok bool)
}

// Config tunes the pipeline.
type Config struct {
	MaxQueryVariants  int
	PrecacheTopN      int
	PrecacheLanguages []string
	// Now is the clock used for durations. Defaults to time.Now.
	Now func() time.Time
}

// Deps are the collaborators of a Service. Cache, Tasks, Events and Metrics
// may be nil.
type Deps struct {
	Expander   Expander
	Searcher   Searcher
	Fetcher    PaperFetcher
	Ranker     Ranker
	Summarizer Summarizer
	Cache      *cache.Store
	Tasks      TaskRunner
	Events     events.Publisher
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
}

// Service runs searches and per-paper operations.
type Service struct {
	expander   Expander
	searcher   Searcher
	fetcher    PaperFetcher
	ranker     Ranker
	summarizer Summarizer
	cache      *cache.Store
	tasks      TaskRunner
	events     events.Publisher
	cfg        Config
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewService creates a Service.
func NewService(deps Deps, cfg Config) *Service {
	if cfg.MaxQueryVariants <= 0 {
		cfg.MaxQueryVariants = DefaultMaxQueryVariants
	}
	if cfg.PrecacheTopN < 0 {
		cfg.PrecacheTopN = 0
	}
	if cfg.PrecacheLanguages == nil {
		cfg.PrecacheLanguages = domain.SupportedLanguages
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	pub := deps.Events
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		expander:   deps.Expander,
		searcher:   deps.Searcher,
		fetcher:    deps.Fetcher,
		ranker:     deps.Ranker,
		summarizer: deps.Summarizer,
		cache:      deps.Cache,
		tasks:      deps.Tasks,
		events:     pub,
		cfg:        cfg,
		logger:     deps.Logger.With().Str("component", "search").Logger(),
		metrics:    deps.Metrics,
	}
}

// Search runs the full pipeline for req.
func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := s.cfg.Now()
	parts := cacheKeyParts(req)
	searchID := cache.Key(cache.NamespaceSearch, parts...)
	ctx = observability.WithSearchID(ctx, searchID)
	logger := observability.WithSearchContext(s.logger, observability.RequestIDFromContext(ctx), req.Language, req.Page).
		With().Str("search_id", searchID).Logger()

	var cached domain.SearchResponse
	if s.cache.GetJSON(ctx, cache.NamespaceSearch, &cached, parts...) {
		s.metrics.RecordSearchRequest(true)
		logger.Debug().Msg("serving cached search response")
		cached.Cached = true
		return &cached, nil
	}
	s.metrics.RecordSearchRequest(false)

	expansion := s.expander.Transform(ctx, req.Query, req.Language)
	queries := expansion.AcademicQueries
	if len(queries) > s.cfg.MaxQueryVariants {
		queries = queries[:s.cfg.MaxQueryVariants]
	}

	fan := s.searcher.FanOut(ctx, queries, req.Filters.YearFrom, req.Filters.YearTo)
	papers := dedup.Deduplicate(fan.Papers)
	s.metrics.RecordDedup(len(fan.Papers), len(papers))

	if len(papers) == 0 {
		if fan.AllFailed() {
			s.metrics.RecordSearchOutcome(outcomeNoResults, s.cfg.Now().Sub(start))
			logger.Error().
				Int("calls", fan.Calls).
				Int("failures", fan.Failures).
				Msg("every provider call failed")
			return nil, fmt.Errorf("search %q: %d of %d provider calls failed: %w",
				req.Query, fan.Failures, fan.Calls, domain.ErrNoResultsAvailable)
		}
		s.metrics.RecordSearchOutcome(outcomeEmpty, s.cfg.Now().Sub(start))
		logger.Info().Int("calls", fan.Calls).Msg("search returned no papers")
		return emptyResponse(req, queries), nil
	}

	rankRes, titleRes := fanout.Both(ctx,
		func(ctx context.Context) (ranking.Result, error) {
			return s.ranker.Rank(ctx, req.Query, expansion.InterpretedIntent, papers), nil
		},
		func(ctx context.Context) ([]string, error) {
			return s.summarizer.TranslateTitles(ctx, titles(papers), req.Language), nil
		},
	)
	if !rankRes.OK() {
		logger.Error().Err(rankRes.Err).Msg("ranking task failed, leaving papers unranked")
	}
	translated := titleRes.Value
	if !titleRes.OK() || len(translated) != len(papers) {
		if !titleRes.OK() {
			logger.Error().Err(titleRes.Err).Msg("title translation task failed")
		}
		translated = titles(papers)
	}
	translatedTitles := make(map[*domain.UnifiedPaper]string, len(papers))
	for i, p := range papers {
		if translated[i] != p.Title {
			translatedTitles[p] = translated[i]
		}
	}

	ordered := ranking.Order(papers, rankRes.Value.Rankings)
	page := Paginate(ordered, req.Page, req.PerPage)

	pagePapers := make([]*domain.UnifiedPaper, len(page))
	for i, sp := range page {
		pagePapers[i] = sp.Paper
	}
	batch := s.summarizer.Batch(ctx, req.Query, req.Language, pagePapers)

	resp := &domain.SearchResponse{
		AISummaryText:    batch.Overview,
		Language:         req.Language,
		GeneratedQueries: queries,
		Papers:           make([]domain.PaperResult, len(page)),
		TotalResults:     len(ordered),
		Page:             req.Page,
		PerPage:          req.PerPage,
	}
	for i, sp := range page {
		resp.Papers[i] = composePaper(sp, translatedTitles[sp.Paper], req.Language, batch.Summaries[i])
	}

	s.cache.SetJSON(ctx, cache.NamespaceSearch, resp, parts...)

	elapsed := s.cfg.Now().Sub(start)
	s.metrics.RecordSearchOutcome(outcomeOK, elapsed)
	logger.Info().
		Int("variants", len(queries)).
		Int("fetched", len(fan.Papers)).
		Int("unique", len(papers)).
		Int("page_papers", len(page)).
		Str("ranking_mode", rankRes.Value.Mode).
		Dur("duration", elapsed).
		Msg("search completed")

	s.submitBackground(ctx, searchID, req, resp, pagePapers, len(queries), rankRes.Value.Mode, elapsed)

	return resp, nil
}

// submitBackground schedules summary precaching and the completion event.
func (s *Service) submitBackground(
	ctx context.Context,
	searchID string,
	req domain.SearchRequest,
	resp *domain.SearchResponse,
	pagePapers []*domain.UnifiedPaper,
	variants int,
	rankingMode string,
	elapsed time.Duration,
) {
	if s.tasks == nil {
		return
	}

	top := pagePapers
	if len(top) > s.cfg.PrecacheTopN {
		top = top[:s.cfg.PrecacheTopN]
	}
	if len(top) > 0 {
		languages := s.cfg.PrecacheLanguages
		if _, ok := s.tasks.Go("precache_summaries", func(ctx context.Context) error {
			n := s.summarizer.Precache(ctx, top, languages)
			s.logger.Debug().Str("search_id", searchID).Int("generated", n).Msg("summary precache finished")
			return nil
		}); !ok {
			s.logger.Debug().Str("search_id", searchID).Msg("summary precache not scheduled")
		}
	}

	event := domain.NewSearchCompletedEvent(searchID, req.Language, req.Page, req.PerPage, resp.TotalResults)
	event.RequestID = observability.RequestIDFromContext(ctx)
	event.QueryVariants = variants
	event.RankingMode = rankingMode
	event.DurationMs = elapsed.Milliseconds()
	s.tasks.Go("publish_search_completed", func(ctx context.Context) error {
		if err := s.events.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish search completed: %w", err)
		}
		return nil
	})
}

// GetSummary returns the summary of one paper, fetching the paper when no
// summary is cached. It returns a NotFoundError when the paper is unknown or
// has no abstract.
func (s *Service) GetSummary(ctx context.Context, paperID, language string) (*domain.PaperSummary, error) {
	language, err := normalizeLanguage(language)
	if err != nil {
		return nil, err
	}

	if text, ok := s.summarizer.Cached(ctx, paperID, language); ok {
		return &domain.PaperSummary{PaperID: paperID, Language: language, Summary: text, Cached: true}, nil
	}

	paper, err := s.fetchWithAbstract(ctx, paperID)
	if err != nil {
		return nil, err
	}

	text, cached := s.summarizer.Summarize(ctx, paperID, paper.Abstract, language, paper.Title)
	if text == "" {
		return nil, fmt.Errorf("summary for %s: %w", paperID, domain.ErrServiceUnavailable)
	}
	return &domain.PaperSummary{PaperID: paperID, Language: language, Summary: text, Cached: cached}, nil
}

// BatchSummaries returns a summary for each paper ID, in order. Each lookup is
// isolated; failures yield an empty, uncached summary.
func (s *Service) BatchSummaries(ctx context.Context, paperIDs []string, language string) ([]domain.PaperSummary, error) {
	language, err := normalizeLanguage(language)
	if err != nil {
		return nil, err
	}

	tasks := make([]fanout.Task[domain.PaperSummary], len(paperIDs))
	for i, id := range paperIDs {
		tasks[i] = func(ctx context.Context) (domain.PaperSummary, error) {
			if text, ok := s.summarizer.Cached(ctx, id, language); ok {
				return domain.PaperSummary{PaperID: id, Language: language, Summary: text, Cached: true}, nil
			}
			paper, err := s.fetchWithAbstract(ctx, id)
			if err != nil {
				return domain.PaperSummary{}, err
			}
			text, cached := s.summarizer.Summarize(ctx, id, paper.Abstract, language, paper.Title)
			return domain.PaperSummary{PaperID: id, Language: language, Summary: text, Cached: cached}, nil
		}
	}

	out := make([]domain.PaperSummary, len(paperIDs))
	for i, r := range fanout.All(ctx, 0, tasks) {
		if !r.OK() {
			if !errors.Is(r.Err, domain.ErrNotFound) {
				logger := observability.WithPaperContext(s.logger, paperIDs[i], language)
				logger.Warn().Err(r.Err).Msg("batch summary failed")
			}
			out[i] = domain.PaperSummary{PaperID: paperIDs[i], Language: language}
			continue
		}
		out[i] = r.Value
	}
	return out, nil
}

// GetTranslations returns graded abstract translations of one paper. An
// empty difficulty produces every level; otherwise only the requested one
// (unknown values mean layperson).
func (s *Service) GetTranslations(ctx context.Context, paperID, language, difficulty string) (*domain.PaperDetail, error) {
	language, err := normalizeLanguage(language)
	if err != nil {
		return nil, err
	}

	paper, err := s.fetchWithAbstract(ctx, paperID)
	if err != nil {
		return nil, err
	}

	var translations []domain.AbstractTranslation
	if difficulty == "" {
		translations = s.summarizer.TranslateAllLevels(ctx, paper.ID, paper.Abstract, language, paper.Title)
	} else {
		d := domain.ParseDifficulty(difficulty)
		translations = []domain.AbstractTranslation{{
			Difficulty: d,
			Text:       s.summarizer.TranslateAbstract(ctx, paper.ID, paper.Abstract, language, paper.Title, d),
		}}
	}

	return &domain.PaperDetail{Paper: paper, Language: language, Translations: translations}, nil
}

func (s *Service) fetchWithAbstract(ctx context.Context, paperID string) (*domain.UnifiedPaper, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("paper lookup: %w", domain.ErrServiceUnavailable)
	}
	paper, err := s.fetcher.FetchPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if !paper.HasAbstract() {
		return nil, domain.NewNotFoundError("abstract", paperID)
	}
	return paper, nil
}

// Paginate returns the items in [(page-1)*perPage, page*perPage).
func Paginate[T any](items []T, page, perPage int) []T {
	if page < 1 || perPage < 1 {
		return []T{}
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func composePaper(sp domain.ScoredPaper, translatedTitle, language, summaryText string) domain.PaperResult {
	p := sp.Paper
	authors := p.Authors
	if authors == nil {
		authors = []string{}
	}
	res := domain.PaperResult{
		ID:                p.ID,
		Title:             p.Title,
		TitleTranslated:   translatedTitle,
		Authors:           authors,
		Journal:           p.Journal,
		Year:              p.Year,
		DOI:               p.DOI,
		CitationCount:     p.CitationCount,
		IsOpenAccess:      p.IsOpenAccess,
		PDFURL:            p.PDFURL,
		AbstractOriginal:  p.Abstract,
		SummaryByLanguage: map[string]string{},
		RelevanceScore:    sp.Score(),
	}
	if summaryText != "" {
		res.SummaryByLanguage[language] = summaryText
	}
	if sp.Ranking != nil {
		res.StudyType = sp.Ranking.StudyType
		res.EvidenceLevel = sp.Ranking.EvidenceLevel
		res.RelevanceReason = sp.Ranking.Reason
	}
	return res
}

func emptyResponse(req domain.SearchRequest, queries []string) *domain.SearchResponse {
	return &domain.SearchResponse{
		Language:         req.Language,
		GeneratedQueries: queries,
		Papers:           []domain.PaperResult{},
		TotalResults:     0,
		Page:             req.Page,
		PerPage:          req.PerPage,
	}
}

// cacheKeyParts identifies a composed response. Year filters are appended
// only when set.
func cacheKeyParts(req domain.SearchRequest) []string {
	parts := []string{req.Query, strconv.Itoa(req.Page), strconv.Itoa(req.PerPage), req.Language}
	if req.Filters.YearFrom != nil || req.Filters.YearTo != nil {
		parts = append(parts, yearPart(req.Filters.YearFrom), yearPart(req.Filters.YearTo))
	}
	return parts
}

func yearPart(y *int) string {
	if y == nil {
		return "-"
	}
	return strconv.Itoa(*y)
}

func titles(papers []*domain.UnifiedPaper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.Title
	}
	return out
}

func normalizeLanguage(language string) (string, error) {
	if language == "" {
		return domain.DefaultLanguage, nil
	}
	if !domain.IsSupportedLanguage(language) {
		return "", domain.NewValidationError("language", "unsupported language "+language)
	}
	return language, nil
}
