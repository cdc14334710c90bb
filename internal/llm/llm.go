// ABOUTME: Provider-neutral completion contract and the provider factory
// ABOUTME: Shared retry loop uses exponential backoff and stops as soon as the context ends
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/util"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// CompletionRequest is a single-turn request with an optional system prompt
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Completer is the one LLM capability the memory subsystem needs
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// New builds the completer for provider.
func New(provider string, config *ClientConfig) (Completer, error) {
	switch provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(config)
	case ProviderAnthropic:
		return NewAnthropicClient(config)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// withRetry runs call up to maxRetries+1 times with backoff between attempts.
func withRetry(ctx context.Context, maxRetries int, delay time.Duration, call func(attempt int) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := util.Sleep(ctx, util.CalculateBackoff(delay, attempt)); err != nil {
				return "", err
			}
		}

		out, err := call(attempt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", maxRetries+1, lastErr)
}
