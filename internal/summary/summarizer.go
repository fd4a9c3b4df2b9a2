// Package summary generates plain-language summaries, result overviews,
// title translations and graded abstract translations.
//
// Every operation degrades instead of failing: a generator error or timeout
// yields empty text (or the untranslated input) and is logged. Summaries and
// graded translations are cached permanently once generated.
package summary

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/cache"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/fanout"
	"github.com/helixir/paper-search-service/internal/llm"
	"github.com/helixir/paper-search-service/internal/observability"
)

const (
	// DefaultTimeout bounds each summary and overview generation.
	DefaultTimeout = 15 * time.Second
	// DefaultTranslationTimeout bounds each graded abstract translation.
	DefaultTranslationTimeout = 60 * time.Second
	// DefaultOverviewPapers is how many page papers feed the overview.
	DefaultOverviewPapers = 5

	summaryMaxTokens     = 1024
	overviewMaxTokens    = 1500
	titleMaxTokens       = 2048
	translationMaxTokens = 2048

	overviewPreviewLength = 300
)

// Summary lookup outcomes reported to metrics.
const (
	outcomeCached    = "cached"
	outcomeGenerated = "generated"
	outcomeSkipped   = "skipped"
	outcomeTimeout   = "timeout"
	outcomeFailed    = "failed"
)

var numberPrefix = regexp.MustCompile(`^\s*\d+\s*(\.|．|\)|:)\s*`)

// Config configures a Summarizer.
type Config struct {
	// Timeout bounds each summary and overview generation.
	Timeout time.Duration
	// TranslationTimeout bounds each graded abstract translation.
	TranslationTimeout time.Duration
	// Concurrency bounds concurrent generations within one batch; zero is unbounded.
	Concurrency int
	// OverviewPapers is how many papers feed the overview.
	OverviewPapers int
}

// BatchResult holds per-paper summaries aligned with the input papers and
// the overview text.
type BatchResult struct {
	Summaries []string
	Overview  string
}

// Summarizer produces generated text about papers. It is safe for concurrent use.
type Summarizer struct {
	generator llm.Generator
	cache     *cache.Store
	cfg       Config
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// New creates a Summarizer. A nil cache disables caching.
func New(generator llm.Generator, store *cache.Store, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Summarizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TranslationTimeout <= 0 {
		cfg.TranslationTimeout = DefaultTranslationTimeout
	}
	if cfg.OverviewPapers <= 0 {
		cfg.OverviewPapers = DefaultOverviewPapers
	}
	return &Summarizer{
		generator: generator,
		cache:     store,
		cfg:       cfg,
		logger:    logger.With().Str("component", "summary").Logger(),
		metrics:   metrics,
	}
}

// GetOrGenerate returns the summary of a paper in language, generating and
// caching it on a miss. It returns "" when the abstract is empty or the
// generation fails or times out.
func (s *Summarizer) GetOrGenerate(ctx context.Context, paperID, abstract, language, title string) string {
	text, _ := s.Summarize(ctx, paperID, abstract, language, title)
	return text
}

// Summarize is GetOrGenerate that also reports whether the summary came from
// the cache.
func (s *Summarizer) Summarize(ctx context.Context, paperID, abstract, language, title string) (string, bool) {
	if strings.TrimSpace(abstract) == "" {
		s.metrics.RecordSummary(outcomeSkipped)
		return "", false
	}

	if text, ok := s.Cached(ctx, paperID, language); ok {
		s.metrics.RecordSummary(outcomeCached)
		return text, true
	}

	user := fmt.Sprintf("Language: %s (%s)\n\nPaper title: %s\n\nAbstract:\n%s",
		languageName(language), language, title, abstract)

	text, err := s.generate(ctx, s.cfg.Timeout, summaryPrompt, user, summaryMaxTokens)
	if err != nil {
		s.recordFailure(err)
		s.logger.Warn().
			Err(err).
			Str("paper_id", paperID).
			Str("language", language).
			Msg("summary generation failed")
		return "", false
	}
	if text == "" {
		s.metrics.RecordSummary(outcomeFailed)
		return "", false
	}

	s.cache.SetString(ctx, cache.NamespaceSummary, text, paperID, language)
	s.metrics.RecordSummary(outcomeGenerated)
	return text, false
}

// Cached returns a previously stored summary without generating one.
func (s *Summarizer) Cached(ctx context.Context, paperID, language string) (string, bool) {
	text, ok := s.cache.GetString(ctx, cache.NamespaceSummary, paperID, language)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}

// Batch summarizes every paper and writes the overview concurrently. Each
// task is isolated: a failed or timed-out task yields "" without affecting
// the others.
func (s *Summarizer) Batch(ctx context.Context, query, language string, papers []*domain.UnifiedPaper) BatchResult {
	tasks := make([]fanout.Task[string], 0, len(papers)+1)
	for _, p := range papers {
		tasks = append(tasks, func(ctx context.Context) (string, error) {
			return s.GetOrGenerate(ctx, p.ID, p.Abstract, language, p.Title), nil
		})
	}
	tasks = append(tasks, func(ctx context.Context) (string, error) {
		return s.Overview(ctx, query, language, papers), nil
	})

	results := fanout.All(ctx, s.cfg.Concurrency, tasks)

	out := BatchResult{Summaries: make([]string, len(papers))}
	for i := range papers {
		out.Summaries[i] = results[i].Value
	}
	out.Overview = results[len(papers)].Value
	return out
}

// Overview writes an answer to query grounded in the first papers of the
// page. It returns "" when there are no papers or generation fails.
func (s *Summarizer) Overview(ctx context.Context, query, language string, papers []*domain.UnifiedPaper) string {
	if len(papers) == 0 {
		return ""
	}
	if len(papers) > s.cfg.OverviewPapers {
		papers = papers[:s.cfg.OverviewPapers]
	}

	user := fmt.Sprintf("User search query: %s\nAnswer language: %s (%s)\n\nRelevant papers:\n%s",
		query, languageName(language), language, overviewContext(papers))

	text, err := s.generate(ctx, s.cfg.Timeout, overviewPrompt, user, overviewMaxTokens)
	if err != nil {
		s.logger.Warn().Err(err).Str("language", language).Msg("overview generation failed")
		return ""
	}
	return text
}

func overviewContext(papers []*domain.UnifiedPaper) string {
	var b strings.Builder
	for i, p := range papers {
		year := "unknown"
		if p.Year != nil {
			year = fmt.Sprintf("%d", *p.Year)
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Title)
		fmt.Fprintf(&b, "Journal: %s, Year: %s, Citations: %d\n", p.Journal, year, p.CitationCount)
		fmt.Fprintf(&b, "Abstract: %s\n\n", preview(p.Abstract, overviewPreviewLength))
	}
	return b.String()
}

// TranslateTitles translates titles into language with a single numbered
// request. English and empty input are returned unchanged; on failure the
// original titles are returned, and missing lines are padded with them.
func (s *Summarizer) TranslateTitles(ctx context.Context, titles []string, language string) []string {
	if len(titles) == 0 || language == "" || language == domain.LanguageEnglish {
		return titles
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Language: %s (%s)\n\n", languageName(language), language)
	for i, t := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}

	text, err := s.generate(ctx, 0, titlePrompt, b.String(), titleMaxTokens)
	if err != nil {
		s.logger.Warn().Err(err).Str("language", language).Int("titles", len(titles)).Msg("title translation failed")
		return titles
	}

	return alignTitles(parseNumberedLines(text), titles)
}

func parseNumberedLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, strings.TrimSpace(numberPrefix.ReplaceAllString(line, "")))
	}
	return out
}

func alignTitles(translated, originals []string) []string {
	out := make([]string, len(originals))
	for i, orig := range originals {
		if i < len(translated) && translated[i] != "" {
			out[i] = translated[i]
		} else {
			out[i] = orig
		}
	}
	return out
}

// TranslateAbstract rewrites abstract in language at the given reading level,
// caching the result permanently. It returns "" on failure.
func (s *Summarizer) TranslateAbstract(ctx context.Context, paperID, abstract, language, title string, difficulty domain.Difficulty) string {
	if strings.TrimSpace(abstract) == "" {
		return ""
	}
	difficulty = domain.ParseDifficulty(string(difficulty))

	if text, ok := s.cache.GetString(ctx, cache.NamespaceTranslation, paperID, language, string(difficulty)); ok && text != "" {
		return text
	}

	user := fmt.Sprintf("Language: %s (%s)\nPaper title: %s\n\nAbstract:\n%s",
		languageName(language), language, title, abstract)

	text, err := s.generate(ctx, s.cfg.TranslationTimeout, difficultyPrompts[difficulty], user, translationMaxTokens)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("paper_id", paperID).
			Str("language", language).
			Str("difficulty", string(difficulty)).
			Msg("abstract translation failed")
		return ""
	}
	if text != "" {
		s.cache.SetString(ctx, cache.NamespaceTranslation, text, paperID, language, string(difficulty))
	}
	return text
}

// TranslateAllLevels produces the translation at every reading level
// concurrently, in domain.Difficulties order.
func (s *Summarizer) TranslateAllLevels(ctx context.Context, paperID, abstract, language, title string) []domain.AbstractTranslation {
	tasks := make([]fanout.Task[string], len(domain.Difficulties))
	for i, d := range domain.Difficulties {
		tasks[i] = func(ctx context.Context) (string, error) {
			return s.TranslateAbstract(ctx, paperID, abstract, language, title, d), nil
		}
	}

	results := fanout.All(ctx, 0, tasks)

	out := make([]domain.AbstractTranslation, len(domain.Difficulties))
	for i, d := range domain.Difficulties {
		out[i] = domain.AbstractTranslation{Difficulty: d, Text: results[i].Value}
	}
	return out
}

// Precache fills the summary cache for papers with abstracts in every
// language where no summary is stored yet. It returns how many summaries
// were generated.
func (s *Summarizer) Precache(ctx context.Context, papers []*domain.UnifiedPaper, languages []string) int {
	var tasks []fanout.Task[bool]
	for _, p := range papers {
		if !p.HasAbstract() {
			continue
		}
		for _, lang := range languages {
			tasks = append(tasks, func(ctx context.Context) (bool, error) {
				if _, ok := s.Cached(ctx, p.ID, lang); ok {
					return false, nil
				}
				text, _ := s.Summarize(ctx, p.ID, p.Abstract, lang, p.Title)
				return text != "", nil
			})
		}
	}

	generated := 0
	for _, r := range fanout.All(ctx, s.cfg.Concurrency, tasks) {
		if r.Value {
			generated++
		}
	}
	return generated
}

// generate calls the text generator, bounded by timeout when positive.
func (s *Summarizer) generate(ctx context.Context, timeout time.Duration, system, user string, maxTokens int) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("text generation: %w", domain.ErrServiceUnavailable)
	}

	call := func(ctx context.Context) (string, error) {
		return s.generator.GenerateText(ctx, system, user, maxTokens)
	}

	var (
		text string
		err  error
	)
	if timeout > 0 {
		text, err = fanout.WithTimeout(ctx, timeout, call)
	} else {
		text, err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Summarizer) recordFailure(err error) {
	if errors.Is(err, domain.ErrTimeout) {
		s.metrics.RecordSummary(outcomeTimeout)
		return
	}
	s.metrics.RecordSummary(outcomeFailed)
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
