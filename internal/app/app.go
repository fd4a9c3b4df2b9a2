// Package app wires configuration into the running search pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/config"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/events"
	"github.com/helixir/paper-search-service/internal/llm"
	"github.com/helixir/paper-search-service/internal/observability"
	"github.com/helixir/paper-search-service/internal/papersources"
	"github.com/helixir/paper-search-service/internal/papersources/openalex"
	"github.com/helixir/paper-search-service/internal/papersources/pubmed"
	"github.com/helixir/paper-search-service/internal/papersources/semanticscholar"
	"github.com/helixir/paper-search-service/internal/querytransform"
	"github.com/helixir/paper-search-service/internal/ranking"
	"github.com/helixir/paper-search-service/internal/search"
	"github.com/helixir/paper-search-service/internal/summary"
	"github.com/helixir/paper-search-service/internal/supervisor"
)

// App holds the long-lived components of the service.
type App struct {
	*Storage

	Service    *search.Service
	Gateway    *papersources.Gateway
	Supervisor *supervisor.Supervisor
	Events     events.Publisher

	cfg    *config.Config
	logger zerolog.Logger
}

// Build constructs every component from cfg. metrics may be nil.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{
		Storage: OpenStorage(ctx, cfg, logger, metrics),
		cfg:     cfg,
		logger:  observability.WithComponent(logger, "app"),
	}

	generator, err := llm.NewGenerator(llm.FactoryConfig{
		Provider:          cfg.LLM.Provider,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout,
		MaxRetries:        cfg.LLM.MaxRetries,
		RetryDelay:        cfg.LLM.RetryDelay,
		StructuredRetries: cfg.LLM.StructuredRetries,
		RateLimitRPS:      cfg.LLM.RateLimitRPS,
		RateLimitBurst:    cfg.LLM.RateLimitBurst,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
		Metrics: metrics,
	})
	if err != nil {
		_ = a.Storage.Close()
		return nil, fmt.Errorf("create llm generator: %w", err)
	}

	registry := NewRegistry(cfg.PaperSources, metrics)
	a.Gateway = papersources.NewGateway(registry, papersources.GatewayConfig{
		Policy:        papersources.FanOutPolicy(cfg.Search.FanOutPolicy),
		VariantDelay:  cfg.Search.VariantDelay,
		PerQueryLimit: cfg.Search.PerQueryLimit,
	}, logger, metrics)

	a.Supervisor = supervisor.New(supervisor.Config{
		MaxConcurrent: cfg.Supervisor.MaxConcurrent,
		Logger:        logger,
		Metrics:       metrics,
	})

	a.Events = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		a.Events = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			ServiceName:  events.DefaultServiceName,
		}, logger)
	}

	a.Service = search.NewService(search.Deps{
		Expander: querytransform.New(generator, a.Cache, querytransform.Config{
			MaxQueryLength: cfg.Search.MaxQueryLength,
			MaxQueries:     cfg.Search.MaxQueryVariants,
		}, logger),
		Searcher: a.Gateway,
		Fetcher:  a.Gateway,
		Ranker: ranking.New(generator, ranking.Config{
			TopK: cfg.Search.RankTopK,
		}, logger, metrics),
		Summarizer: summary.New(generator, a.Cache, summary.Config{
			Timeout:     cfg.Search.SummaryTimeout,
			Concurrency: cfg.Search.SummaryConcurrency,
		}, logger, metrics),
		Cache:   a.Cache,
		Tasks:   a.Supervisor,
		Events:  a.Events,
		Logger:  logger,
		Metrics: metrics,
	}, search.Config{
		MaxQueryVariants:  cfg.Search.MaxQueryVariants,
		PrecacheTopN:      cfg.Search.PrecacheTopN,
		PrecacheLanguages: cfg.Search.PrecacheLanguages,
	})

	a.logger.Info().
		Str("cache_backend", cfg.Cache.Backend).
		Str("llm_provider", cfg.LLM.Provider).
		Str("fanout_policy", cfg.Search.FanOutPolicy).
		Int("sources", len(registry.EnabledSources())).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("application built")

	return a, nil
}

// NewRegistry registers the configured sources in primary-first order.
func NewRegistry(cfg config.PaperSourcesConfig, metrics *observability.Metrics) *papersources.Registry {
	rateLimited := func(st domain.SourceType) func() {
		return func() { metrics.RecordSourceRateLimited(string(st)) }
	}

	registry := papersources.NewRegistry()
	registry.Register(semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:       cfg.SemanticScholar.BaseURL,
		APIKey:        cfg.SemanticScholar.APIKey,
		Timeout:       cfg.SemanticScholar.Timeout,
		RateLimit:     cfg.SemanticScholar.RateLimit,
		MaxResults:    cfg.SemanticScholar.MaxResults,
		MaxAttempts:   cfg.RetryAttempts,
		Enabled:       cfg.SemanticScholar.Enabled,
		OnRateLimited: rateLimited(domain.SourceTypeSemanticScholar),
	}, nil))
	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:       cfg.PubMed.BaseURL,
		APIKey:        cfg.PubMed.APIKey,
		Email:         cfg.PubMed.Email,
		Timeout:       cfg.PubMed.Timeout,
		RateLimit:     cfg.PubMed.RateLimit,
		MaxResults:    cfg.PubMed.MaxResults,
		MaxAttempts:   cfg.RetryAttempts,
		Enabled:       cfg.PubMed.Enabled,
		OnRateLimited: rateLimited(domain.SourceTypePubMed),
	}))
	registry.Register(openalex.New(openalex.Config{
		BaseURL:       cfg.OpenAlex.BaseURL,
		Email:         cfg.OpenAlex.Email,
		Timeout:       cfg.OpenAlex.Timeout,
		RateLimit:     cfg.OpenAlex.RateLimit,
		MaxResults:    cfg.OpenAlex.MaxResults,
		MaxAttempts:   cfg.RetryAttempts,
		Enabled:       cfg.OpenAlex.Enabled,
		OnRateLimited: rateLimited(domain.SourceTypeOpenAlex),
	}))
	return registry
}

// Drain stops the supervisor, letting queued work finish when the config asks
// for it. ctx bounds the wait.
func (a *App) Drain(ctx context.Context) error {
	err := a.Supervisor.Shutdown(ctx, a.cfg.Supervisor.DrainOnShutdown)
	if errors.Is(err, supervisor.ErrClosed) {
		return nil
	}
	return err
}

// Close releases the publisher and storage. Call it after Drain.
func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close events: %w", err))
		}
	}
	if err := a.Storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
