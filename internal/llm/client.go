package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Completer produces chat completions.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder produces embedding vectors for texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds connection settings for the OpenAI APIs.
type Config struct {
	APIKey      string
	BaseURL     string // Optional override for OpenAI-compatible endpoints.
	Model       string
	EmbedModel  string
	Temperature float32
}

// OpenAIClient talks to the OpenAI chat and embeddings APIs and records
// call latencies.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	embedModel  string
	temperature float32
	stats       *Stats
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = string(openai.SmallEmbedding3)
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		embedModel:  embedModel,
		temperature: temperature,
		stats:       NewStats(time.Hour),
	}
}

// Model returns the configured chat model name.
func (c *OpenAIClient) Model() string { return c.model }

// Stats returns the rolling latency tracker.
func (c *OpenAIClient) Stats() *Stats { return c.stats }

// Complete sends a system and user prompt pair and returns the assistant
// text.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", classify("chat completion", err)
	}
	c.stats.Record("completion", time.Since(start).Milliseconds())

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one embedding vector per input text, in input order.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, classify("embeddings", err)
	}
	c.stats.Record("embedding", time.Since(start).Milliseconds())

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings: vector index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// classify wraps API errors, marking rate limits, server errors, and
// connection failures as retryable.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return &RetryableError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500 {
			return &RetryableError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// A canceled caller is terminal. Anything else that never produced an
	// API response failed in transit and is worth retrying.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &RetryableError{Message: fmt.Sprintf("%s: %s", op, err)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
