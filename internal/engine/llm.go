package engine

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// LLM is a thin chat-completion wrapper around the go-kit client.
// It counts calls and errors and strips markdown fences from replies.
type LLM struct {
	complete func(ctx context.Context, system, prompt string) (string, error)
}

// NewLLM builds an OpenAI-compatible client from cfg.
func NewLLM(cfg Config) *LLM {
	cfg = cfg.WithDefaults()
	client := llm.NewClient(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel,
		llm.WithFallbackKeys(cfg.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)
	return &LLM{complete: func(ctx context.Context, system, prompt string) (string, error) {
		return client.Complete(ctx, system, prompt)
	}}
}

// NewLLMFunc wraps an arbitrary completion function. Used by tests and
// by callers that bring their own client.
func NewLLMFunc(fn func(ctx context.Context, system, prompt string) (string, error)) *LLM {
	return &LLM{complete: fn}
}

// Complete sends a system + user prompt and returns the fence-stripped reply.
func (l *LLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	IncrLLMCalls()
	resp, err := l.complete(ctx, system, prompt)
	if err != nil {
		IncrLLMErrors()
		return "", err
	}
	return StripFences(resp), nil
}

// StripFences removes markdown code fences from LLM output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
