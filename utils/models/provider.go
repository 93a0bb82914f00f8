package models

import (
	"context"
	"strings"
)

// Chat roles understood by every provider
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat-style completion request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelConfig represents configuration options for model calls
type ModelConfig struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Provider represents a model provider (e.g., Anthropic, OpenAI)
type Provider interface {
	Name() string
	SupportsModel(modelName string) bool
	SendMessages(ctx context.Context, modelName string, messages []Message, cfg ModelConfig) (string, error)
	Configure(apiKey string) error
	SetVerbose(verbose bool)
}

// BaseURLSetter is implemented by providers whose endpoint can be overridden
type BaseURLSetter interface {
	SetBaseURL(baseURL string)
}

// Request is a fully rendered completion request
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Prompt returns the content of the last user message
func (r Request) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// System returns the concatenated system messages
func (r Request) System() string {
	var parts []string
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Completer turns a rendered request into generated text
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func withDefaults(cfg ModelConfig) ModelConfig {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.TopP <= 0 {
		cfg.TopP = 1.0
	}
	return cfg
}
