package brain

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicCompleter struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicCompleter(apiKey, baseURL, model string, opts ...option.RequestOption) *AnthropicCompleter {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(append(base, opts...)...)
	return &AnthropicCompleter{client: &client, model: model}
}

func (c *AnthropicCompleter) Model() string { return c.model }

func (c *AnthropicCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	maxTokens := int64(p.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(p.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: p.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return resp.Content[0].Text, nil
}
