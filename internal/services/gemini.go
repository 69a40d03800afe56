package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ModelProvider is the judging model seen as a black-box text-completion
// service. Its output channel is untrusted and unstructured; everything
// structured about it is recovered downstream.
type ModelProvider interface {
	GenerateText(ctx context.Context, prompt string, temperature float32) (string, error)
	GenerateTextWithRetry(ctx context.Context, prompt string, temperature float32) (string, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type geminiProvider struct {
	client       *genai.Client
	logger       *zap.Logger
	modelName    string
	embedModel   string
	maxRetries   int
	initialDelay time.Duration
}

func NewGeminiProvider(apiKey string, maxRetries int, initialDelay time.Duration, logger *zap.Logger) (ModelProvider, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiProvider{
		client:       client,
		logger:       logger,
		modelName:    "gemini-2.5-flash",
		embedModel:   "text-embedding-004",
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
	}, nil
}

// GenerateText implements ModelProvider.
func (g *geminiProvider) GenerateText(ctx context.Context, prompt string, temperature float32) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 4096,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if resp == nil {
		return "", fmt.Errorf("no response generated (nil response)")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no text content in response")
	}

	return text, nil
}

// GenerateTextWithRetry implements ModelProvider. Provider-side failures are
// retried a bounded number of times with exponential backoff before being
// surfaced.
func (g *geminiProvider) GenerateTextWithRetry(ctx context.Context, prompt string, temperature float32) (string, error) {
	var lastErr error
	delay := g.initialDelay

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		result, err := g.GenerateText(ctx, prompt, temperature)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < g.maxRetries {
			g.logger.Warn("model call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return "", fmt.Errorf("context cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return "", fmt.Errorf("model provider failed after %d attempts: %w", g.maxRetries, lastErr)
}

// GenerateEmbedding implements ModelProvider.
func (g *geminiProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	// Keep well under the embedding model's token limit.
	if len(text) > 40000 {
		text = text[:40000]
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}
