// ABOUTME: Tests for the OpenAI-compatible and Anthropic completion clients
// ABOUTME: Each client talks to an httptest server; retry behavior is checked with a failing handler
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClientConfig(baseURL string) *ClientConfig {
	return &ClientConfig{
		BaseURL:    baseURL,
		Model:      "Qwen/Qwen3-32B-FP8",
		Timeout:    30 * time.Second,
		RetryDelay: 2 * time.Second,
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[]"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL + "/v1")
	cfg.Model = "Qwen/Qwen3-32B-FP8"
	client, err := NewOpenAIClient(cfg)
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	out, err := client.Complete(context.Background(), CompletionRequest{
		System:      "extract",
		Prompt:      "User: hi",
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "[]" {
		t.Errorf("Complete() = %q, want []", out)
	}
	if got.Model != "Qwen/Qwen3-32B-FP8" || got.MaxTokens != 512 {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "User: hi" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAIClient_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestOpenAIClient_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	client, err := NewOpenAIClient(cfg)
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	out, err := client.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "ok" || calls.Load() != 2 {
		t.Errorf("out = %q calls = %d", out, calls.Load())
	}
}

func TestNewOpenAIClient_Validation(t *testing.T) {
	if _, err := NewOpenAIClient(&ClientConfig{Model: "m"}); err == nil {
		t.Error("expected error without base URL or key")
	}
	if _, err := NewOpenAIClient(&ClientConfig{BaseURL: "http://x"}); err == nil {
		t.Error("expected error without model")
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "sk-ant-test" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5",
			"content":[{"type":"text","text":"Good "},{"type":"text","text":"morning"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(&ClientConfig{BaseURL: server.URL, APIKey: "sk-ant-test", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewAnthropicClient() error = %v", err)
	}
	out, err := client.Complete(context.Background(), CompletionRequest{System: "brief", Prompt: "go"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "Good morning" {
		t.Errorf("Complete() = %q", out)
	}
	if got.Model != DefaultAnthropicModel || got.MaxTokens != defaultMaxTokens {
		t.Errorf("request = %+v", got)
	}
	if len(got.System) != 1 || got.System[0].Text != "brief" {
		t.Errorf("system = %+v", got.System)
	}
}

func TestNew_Providers(t *testing.T) {
	if _, err := New("bogus", testClientConfig("http://x")); err == nil {
		t.Error("expected unknown provider error")
	}
	c, err := New(ProviderOpenAI, testClientConfig("http://x"))
	if err != nil {
		t.Fatalf("New(openai) error = %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Errorf("New(openai) = %T", c)
	}
	if _, err := New(ProviderAnthropic, &ClientConfig{}); err == nil {
		t.Error("expected missing key error for anthropic")
	}
}

func TestWithRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, 5, time.Hour, func(int) (string, error) {
		calls++
		cancel()
		return "", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
