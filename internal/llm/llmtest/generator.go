// Package llmtest provides a scriptable llm.Generator for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrNotScripted is returned by calls that have no function configured.
var ErrNotScripted = errors.New("llmtest: call not scripted")

// Call records one generator invocation.
type Call struct {
	System     string
	User       string
	MaxTokens  int
	Structured bool
}

// Generator is an llm.Generator whose replies come from the configured
// functions. It records every call and is safe for concurrent use.
type Generator struct {
	TextFunc       func(ctx context.Context, system, user string) (string, error)
	StructuredFunc func(ctx context.Context, system, user string, out any) error

	mu    sync.Mutex
	calls []Call
}

// GenerateText implements llm.Generator.
func (g *Generator) GenerateText(ctx context.Context, system, user string, maxTokens int) (string, error) {
	g.record(Call{System: system, User: user, MaxTokens: maxTokens})
	if g.TextFunc == nil {
		return "", ErrNotScripted
	}
	return g.TextFunc(ctx, system, user)
}

// GenerateStructured implements llm.Generator.
func (g *Generator) GenerateStructured(ctx context.Context, system, user string, maxTokens int, out any) error {
	g.record(Call{System: system, User: user, MaxTokens: maxTokens, Structured: true})
	if g.StructuredFunc == nil {
		return ErrNotScripted
	}
	return g.StructuredFunc(ctx, system, user, out)
}

func (g *Generator) record(c Call) {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	g.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (g *Generator) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// CallCount returns the number of recorded calls.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// JSON returns a StructuredFunc that decodes body into out on every call.
func JSON(body string) func(context.Context, string, string, any) error {
	return func(_ context.Context, _, _ string, out any) error {
		return json.Unmarshal([]byte(body), out)
	}
}

// Fail returns a StructuredFunc that always returns err.
func Fail(err error) func(context.Context, string, string, any) error {
	return func(context.Context, string, string, any) error {
		return err
	}
}
