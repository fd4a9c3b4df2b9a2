package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/observability"
)

// FactoryConfig holds the parameters needed to create a Generator.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai" or "anthropic").
	Provider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int
	// RetryDelay is the base delay between transient retries.
	RetryDelay time.Duration
	// StructuredRetries is how many times malformed structured output is re-requested.
	StructuredRetries int
	// RateLimitRPS paces requests; zero disables pacing.
	RateLimitRPS float64
	// RateLimitBurst is the pacing burst size.
	RateLimitBurst int
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
	// Metrics is optional.
	Metrics *observability.Metrics
}

// NewGenerator creates a Generator based on the configuration.
// Supports "openai" and "anthropic" providers. Returns an error for unsupported
// or empty provider values.
func NewGenerator(cfg FactoryConfig) (Generator, error) {
	var provider textProvider
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		provider = NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.RetryDelay)
	case "anthropic":
		provider = NewAnthropicProvider(cfg.Anthropic, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.RetryDelay)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}

	retries := cfg.StructuredRetries
	if retries < 0 {
		retries = 0
	}

	var g Generator = &client{provider: provider, structuredRetries: retries}
	g = WithRateLimit(g, cfg.RateLimitRPS, cfg.RateLimitBurst)
	g = WithMetrics(g, cfg.Metrics, provider.Model())
	return g, nil
}

