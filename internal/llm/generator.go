// Package llm provides text generation clients for the paper search service.
//
// A Generator produces free text (summaries, overviews, translations) or
// structured JSON decoded into a caller-supplied value (query expansion,
// relevance ranking). Providers are Anthropic and OpenAI; decorators add
// request pacing and metrics.
//
// Example usage:
//
//	gen, err := llm.NewGenerator(llm.FactoryConfig{
//		Provider:  "anthropic",
//		Timeout:   60 * time.Second,
//		Anthropic: llm.AnthropicConfig{APIKey: key, Model: model},
//	})
//	var out struct{ Queries []string `json:"queries"` }
//	err = gen.GenerateStructured(ctx, systemPrompt, userPrompt, 500, &out)
package llm

import (
	"context"
)

// Generator is the text generation capability used by the pipeline.
type Generator interface {
	// GenerateText returns the model's reply to the given prompts.
	GenerateText(ctx context.Context, system, user string, maxTokens int) (string, error)

	// GenerateStructured asks for a JSON reply and decodes it into out.
	// Malformed output is re-requested a bounded number of times and then
	// reported as a *ParseError.
	GenerateStructured(ctx context.Context, system, user string, maxTokens int, out any) error
}

// textProvider is a single provider round trip. structured asks the
// provider for JSON output where it supports a native switch for it.
type textProvider interface {
	complete(ctx context.Context, system, user string, maxTokens int, structured bool) (string, error)
	Provider() string
	Model() string
}

// client adapts a textProvider to Generator.
type client struct {
	provider          textProvider
	structuredRetries int
}

func (c *client) GenerateText(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return c.provider.complete(ctx, system, user, maxTokens, false)
}

func (c *client) GenerateStructured(ctx context.Context, system, user string, maxTokens int, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.structuredRetries; attempt++ {
		prompt := system
		if attempt > 0 {
			prompt = system + "\n\n" + jsonReminder
		}

		text, err := c.provider.complete(ctx, prompt, user, maxTokens, true)
		if err != nil {
			return err
		}
		if lastErr = DecodeStructured(text, out); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
