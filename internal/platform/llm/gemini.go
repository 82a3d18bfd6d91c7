package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/family-finance-ledger/internal/config"
	"google.golang.org/genai"
)

// ContentGenerator is the part of genai.Models we use
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient drafts statements with Google's Gemini API
type GeminiClient struct {
	models      ContentGenerator
	model       string
	temperature float32
	timeout     time.Duration
	logger      *slog.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*GeminiClient, error) {
	client := &GeminiClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
	if cfg.APIKey == "" {
		// Reported on first use so the service can still start without a key
		return client, nil
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	client.models = genaiClient.Models
	return client, nil
}

func NewGeminiClientWithGenerator(models ContentGenerator, cfg config.LLMConfig, logger *slog.Logger) *GeminiClient {
	return &GeminiClient{
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

func (c *GeminiClient) Provider() string { return ProviderGemini }

func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.models == nil {
		return "", ErrLLM{Message: msgKeyMissing}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(c.temperature),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		c.logger.Error("LLM request failed",
			"provider", ProviderGemini,
			"model", c.model,
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", requestFailed(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrLLM{Message: msgMissingChoices}
	}
	content := resp.Text()
	if content == "" {
		return "", ErrLLM{Message: msgMissingContent}
	}

	c.logger.Debug("LLM request completed",
		"provider", ProviderGemini,
		"model", c.model,
		"latency_ms", time.Since(start).Milliseconds())
	return content, nil
}
