package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/family-finance-ledger/internal/config"
	"github.com/sashabaranov/go-openai"
)

// ChatCompleter is the part of the go-openai client we use
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	api         ChatCompleter
	model       string
	temperature float32
	timeout     time.Duration
	configured  bool
	logger      *slog.Logger
}

func NewOpenAIClient(cfg config.LLMConfig, logger *slog.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return NewOpenAIClientWithAPI(openai.NewClientWithConfig(clientConfig), cfg, logger)
}

func NewOpenAIClientWithAPI(api ChatCompleter, cfg config.LLMConfig, logger *slog.Logger) *OpenAIClient {
	return &OpenAIClient{
		api:         api,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		configured:  cfg.APIKey != "",
		logger:      logger,
	}
}

func (c *OpenAIClient) Provider() string { return ProviderOpenAI }

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.configured {
		return "", ErrLLM{Message: msgKeyMissing}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			"provider", ProviderOpenAI,
			"model", c.model,
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", requestFailed(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrLLM{Message: msgMissingChoices}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", ErrLLM{Message: msgMissingContent}
	}

	c.logger.Debug("LLM request completed",
		"provider", ProviderOpenAI,
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"latency_ms", time.Since(start).Milliseconds())
	return content, nil
}
