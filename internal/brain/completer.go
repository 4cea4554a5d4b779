// Package brain talks to hosted language models. It turns token candidates
// into validated trading signals and recent findings into a market brief.
package brain

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	GroqBaseURL      = "https://api.groq.com/openai/v1"
	DefaultGroqModel = "llama-3.3-70b-versatile"
)

// Prompt is a single-turn request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer sends a prompt to a model and returns the raw text reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Model() string
}

// NewCompleter builds the completer for provider. Groq and OpenAI share the
// OpenAI-compatible client; baseURL may be empty to use the provider default.
func NewCompleter(provider, apiKey, baseURL, model string) (Completer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is empty", provider)
	}
	switch strings.ToLower(provider) {
	case ProviderGroq, "":
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
		if model == "" {
			model = DefaultGroqModel
		}
		return NewOpenAICompleter(apiKey, baseURL, model), nil
	case ProviderOpenAI:
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAICompleter(apiKey, baseURL, model), nil
	case ProviderAnthropic:
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
		return NewAnthropicCompleter(apiKey, baseURL, model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// cleanJSONResponse strips markdown fences and any prose around the first
// JSON object in a model reply.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
