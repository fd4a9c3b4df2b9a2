package papersources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/fanout"
	"github.com/helixir/paper-search-service/internal/observability"
)

// FanOutPolicy selects how query variants are dispatched.
type FanOutPolicy string

const (
	// FanOutParallel issues every (variant, source) call concurrently.
	FanOutParallel FanOutPolicy = "parallel"
	// FanOutSerialized runs variants one after another, sources within a
	// variant in parallel, pausing VariantDelay between variants.
	FanOutSerialized FanOutPolicy = "serialized"
)

// DefaultPerQueryLimit is the number of papers requested per source per variant.
const DefaultPerQueryLimit = 20

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Policy        FanOutPolicy
	VariantDelay  time.Duration
	PerQueryLimit int
}

// FanOutResult is the outcome of one fan-out.
type FanOutResult struct {
	// Papers is the concatenation of every call's papers, variant-major then
	// source-major, independent of completion order.
	Papers []*domain.UnifiedPaper
	// Calls is the number of (variant, source) calls issued.
	Calls int
	// Failures is the number of calls that failed.
	Failures int
}

// AllFailed reports whether calls were made and every one of them failed.
func (r FanOutResult) AllFailed() bool {
	return r.Calls > 0 && r.Failures == r.Calls
}

// Gateway is the uniform search surface over the registered sources.
type Gateway struct {
	registry *Registry
	config   GatewayConfig
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewGateway creates a Gateway over registry.
func NewGateway(registry *Registry, cfg GatewayConfig, logger zerolog.Logger, metrics *observability.Metrics) *Gateway {
	if cfg.Policy == "" {
		cfg.Policy = FanOutParallel
	}
	if cfg.PerQueryLimit <= 0 {
		cfg.PerQueryLimit = DefaultPerQueryLimit
	}
	return &Gateway{
		registry: registry,
		config:   cfg,
		logger:   observability.WithComponent(logger, "gateway"),
		metrics:  metrics,
	}
}

// SearchPapers runs one search against source. It never fails: errors are
// logged, counted and reduced to an empty slice.
func (g *Gateway) SearchPapers(ctx context.Context, source PaperSource, params SearchParams) []*domain.UnifiedPaper {
	papers, _ := g.search(ctx, source, params)
	return papers
}

func (g *Gateway) search(ctx context.Context, source PaperSource, params SearchParams) ([]*domain.UnifiedPaper, error) {
	logger := observability.WithSourceContext(g.logger, string(source.SourceType()), params.Query)
	start := time.Now()

	papers, err := source.Search(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		kind := domain.Classify(err)
		g.metrics.RecordSourceFailure(string(source.SourceType()), string(kind), elapsed)

		event := logger.Warn()
		if kind == domain.ErrorKindCanceled {
			event = logger.Debug()
		}
		event.Err(err).Str("error_kind", string(kind)).Dur("duration", elapsed).Msg("source search failed")
		return []*domain.UnifiedPaper{}, err
	}

	g.metrics.RecordSourceRequest(string(source.SourceType()), len(papers), elapsed)
	logger.Debug().Int("papers", len(papers)).Dur("duration", elapsed).Msg("source search completed")
	if papers == nil {
		papers = []*domain.UnifiedPaper{}
	}
	return papers, nil
}

// FanOut searches every enabled source for every query variant according to
// the configured policy and returns the papers in deterministic slot order.
func (g *Gateway) FanOut(ctx context.Context, queries []string, yearFrom, yearTo *int) FanOutResult {
	sources := g.registry.EnabledSources()
	if len(sources) == 0 || len(queries) == 0 {
		return FanOutResult{Papers: []*domain.UnifiedPaper{}}
	}

	variantTask := func(query string) fanout.Task[[]fanout.Result[[]*domain.UnifiedPaper]] {
		return func(ctx context.Context) ([]fanout.Result[[]*domain.UnifiedPaper], error) {
			params := SearchParams{Query: query, Limit: g.config.PerQueryLimit, YearFrom: yearFrom, YearTo: yearTo}
			tasks := make([]fanout.Task[[]*domain.UnifiedPaper], len(sources))
			for i, s := range sources {
				tasks[i] = func(ctx context.Context) ([]*domain.UnifiedPaper, error) {
					return g.search(ctx, s, params)
				}
			}
			return fanout.All(ctx, 0, tasks), nil
		}
	}

	variants := make([]fanout.Task[[]fanout.Result[[]*domain.UnifiedPaper]], len(queries))
	for i, q := range queries {
		variants[i] = variantTask(q)
	}

	var variantResults []fanout.Result[[]fanout.Result[[]*domain.UnifiedPaper]]
	switch g.config.Policy {
	case FanOutSerialized:
		variantResults = fanout.Sequential(ctx, g.config.VariantDelay, variants)
	default:
		variantResults = fanout.All(ctx, 0, variants)
	}

	result := FanOutResult{Papers: []*domain.UnifiedPaper{}}
	for _, vr := range variantResults {
		if !vr.OK() {
			// The variant never started; count its calls as failed.
			result.Calls += len(sources)
			result.Failures += len(sources)
			continue
		}
		for _, r := range vr.Value {
			result.Calls++
			if !r.OK() {
				result.Failures++
				continue
			}
			result.Papers = append(result.Papers, r.Value...)
		}
	}

	g.logger.Info().
		Int("variants", len(queries)).
		Int("sources", len(sources)).
		Int("calls", result.Calls).
		Int("failures", result.Failures).
		Int("papers", len(result.Papers)).
		Str("policy", string(g.config.Policy)).
		Msg("fan-out search completed")

	return result
}

// FetchPaper looks id up in the first enabled source that supports single
// paper retrieval, trying the primary source first.
func (g *Gateway) FetchPaper(ctx context.Context, id string) (*domain.UnifiedPaper, error) {
	var fetchers []PaperFetcher
	if s := g.registry.Get(domain.PrimarySource); s != nil && s.IsEnabled() {
		if f, ok := s.(PaperFetcher); ok {
			fetchers = append(fetchers, f)
		}
	}
	for _, s := range g.registry.EnabledSources() {
		if s.SourceType() == domain.PrimarySource {
			continue
		}
		if f, ok := s.(PaperFetcher); ok {
			fetchers = append(fetchers, f)
		}
	}
	if len(fetchers) == 0 {
		return nil, fmt.Errorf("no source supports paper lookup: %w", domain.ErrServiceUnavailable)
	}

	var lastErr error
	for _, f := range fetchers {
		paper, err := f.GetByID(ctx, id)
		if err == nil {
			return paper, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.Warn().Err(err).Str("paper_id", id).Msg("paper lookup failed")
		}
		lastErr = err
	}
	return nil, lastErr
}
