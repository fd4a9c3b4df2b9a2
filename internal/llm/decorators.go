package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/observability"
)

// WithRateLimit paces calls to g with a token bucket. A non-positive rps
// returns g unchanged.
func WithRateLimit(g Generator, rps float64, burst int) Generator {
	if rps <= 0 {
		return g
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedGenerator{next: g, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

type rateLimitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

func (g *rateLimitedGenerator) GenerateText(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limiter wait: %w", err)
	}
	return g.next.GenerateText(ctx, system, user, maxTokens)
}

func (g *rateLimitedGenerator) GenerateStructured(ctx context.Context, system, user string, maxTokens int, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm rate limiter wait: %w", err)
	}
	return g.next.GenerateStructured(ctx, system, user, maxTokens, out)
}

// WithMetrics records request counts, failures and latency for g under
// the given model label. A nil metrics returns g unchanged.
func WithMetrics(g Generator, metrics *observability.Metrics, model string) Generator {
	if metrics == nil {
		return g
	}
	return &instrumentedGenerator{next: g, metrics: metrics, model: model}
}

type instrumentedGenerator struct {
	next    Generator
	metrics *observability.Metrics
	model   string
}

func (g *instrumentedGenerator) GenerateText(ctx context.Context, system, user string, maxTokens int) (string, error) {
	start := time.Now()
	text, err := g.next.GenerateText(ctx, system, user, maxTokens)
	g.record("text", start, err)
	return text, err
}

func (g *instrumentedGenerator) GenerateStructured(ctx context.Context, system, user string, maxTokens int, out any) error {
	start := time.Now()
	err := g.next.GenerateStructured(ctx, system, user, maxTokens, out)
	g.record("structured", start, err)
	return err
}

func (g *instrumentedGenerator) record(operation string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		g.metrics.RecordLLMFailure(operation, g.model, string(domain.Classify(err)), elapsed)
		return
	}
	g.metrics.RecordLLMRequest(operation, g.model, elapsed)
}
