// ABOUTME: Anthropic Messages API completion client
// ABOUTME: Alternative provider for extraction and briefings when no local vLLM is deployed
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel = "claude-haiku-4-5"
	defaultMaxTokens      = 1024
)

// AnthropicClient wraps the Anthropic SDK with the same retry policy as OpenAIClient
type AnthropicClient struct {
	client     anthropic.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewAnthropicClient(config *ClientConfig) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	model := config.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// Retries are owned by withRetry
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(config.BaseURL, "/")+"/"))
	}

	return &AnthropicClient{
		client:     anthropic.NewClient(opts...),
		model:      model,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
	}, nil
}

func (c *AnthropicClient) Model() string {
	return c.model
}

// Complete sends one system+user exchange and concatenates the text blocks of the reply
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return withRetry(ctx, c.maxRetries, c.retryDelay, func(attempt int) (string, error) {
		callCtx, cancel := withTimeout(ctx, c.timeout)
		defer cancel()

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
			Temperature: anthropic.Float(float64(req.Temperature)),
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.System}}
		}

		resp, err := c.client.Messages.New(callCtx, params)
		if err != nil {
			return "", fmt.Errorf("attempt %d: claude api error: %w", attempt+1, err)
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), nil
	})
}
