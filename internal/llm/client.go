// Package llm talks to OpenAI-compatible chat completion APIs (Groq, OpenAI,
// OpenRouter, local servers) with retries on transient failures.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Known providers and their default endpoints.
var providerBaseURLs = map[string]string{
	"groq":       "https://api.groq.com/openai/v1",
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

// Config holds configuration for an LLM client.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	MaxRetries  int
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// RetryBackoff is the first pause between attempts, doubled each time
	// up to RetryMaxDelay.
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

// Client is the interface the rest of the application depends on.
type Client interface {
	// Generate sends a prompt and returns the model's answer.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GenerateJSON requests JSON mode and unmarshals the answer into out.
	GenerateJSON(ctx context.Context, req *Request, out any) error
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request holds the parameters of one generation.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// UserPrompt is a shorthand for a single user message request.
func UserPrompt(system, prompt string) *Request {
	return &Request{System: system, Messages: []Message{{Role: "user", Content: prompt}}}
}

// Response holds the result of a generation.
type Response struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

// NewClient builds a client for cfg, wrapped with retries.
func NewClient(cfg Config, logger logrus.FieldLogger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if cfg.BaseURL == "" {
		base, ok := providerBaseURLs[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("llm: unknown provider %q and no base URL", cfg.Provider)
		}
		cfg.BaseURL = base
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}

	log := logger.WithFields(logrus.Fields{"component": "llm", "model": cfg.Model})
	return withRetry(newOpenAIClient(cfg), policyFor(cfg), log), nil
}
