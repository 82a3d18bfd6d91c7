// Package llm is the boundary to the language model that drafts statements.
// Providers return the raw message text; callers own JSON decoding.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/family-finance-ledger/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	msgRequestFailed  = "LLM request failed"
	msgMissingChoices = "LLM response missing choices"
	msgMissingContent = "LLM response missing content"
	msgInvalidJSON    = "LLM returned invalid JSON"
	msgKeyMissing     = "LLM_API_KEY is not configured"
)

// Client sends one system + user exchange and returns the model's message text
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Provider() string
	Model() string
}

// ErrLLM is any failure on the model side. RawResponse carries what the model said, if anything.
type ErrLLM struct {
	Message     string
	RawResponse string
}

func (e ErrLLM) Error() string {
	return e.Message
}

func requestFailed(err error) ErrLLM {
	return ErrLLM{Message: fmt.Sprintf("%s: %v", msgRequestFailed, err)}
}

// InvalidJSON wraps model output that could not be decoded
func InvalidJSON(raw string) ErrLLM {
	return ErrLLM{Message: msgInvalidJSON, RawResponse: raw}
}

// NewClient builds the provider selected in configuration
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
}

// StripCodeFences removes a ```json ... ``` wrapper some models put around JSON
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start > 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
