// ABOUTME: OpenAI-compatible chat completion client for vLLM or OpenAI endpoints
// ABOUTME: Used by insight extraction and briefing summaries with optional retry backoff
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ClientConfig holds configuration for the completion clients
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// OpenAIClient wraps the go-openai client with retry logic
type OpenAIClient struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIClient creates a client for any OpenAI-compatible server
func NewOpenAIClient(config *ClientConfig) (*OpenAIClient, error) {
	if config.BaseURL == "" && config.APIKey == "" {
		return nil, errors.New("either a base URL or an API key is required")
	}
	if config.Model == "" {
		return nil, errors.New("model is required")
	}

	clientCfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      config.Model,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
	}, nil
}

// Model returns the configured completion model
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends one system+user exchange and returns the first choice's text
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return withRetry(ctx, c.maxRetries, c.retryDelay, func(attempt int) (string, error) {
		callCtx, cancel := withTimeout(ctx, c.timeout)
		defer cancel()

		messages := make([]openai.ChatCompletionMessage, 0, 2)
		if req.System != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})

		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("attempt %d: %w", attempt+1, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
		}
		return resp.Choices[0].Message.Content, nil
	})
}
