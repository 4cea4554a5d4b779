package brain

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompleter calls any OpenAI-compatible chat completions endpoint.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

func NewOpenAICompleter(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAICompleter {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// failed calls are skipped until the next cycle
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(append(base, opts...)...)
	return &OpenAICompleter{client: &client, model: model}
}

func (c *OpenAICompleter) Model() string { return c.model }

func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		Temperature: openai.Float(p.Temperature),
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from %s", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}
