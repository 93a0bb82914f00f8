package models

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider handles OpenAI models and OpenAI-compatible endpoints
type OpenAIProvider struct {
	name     string
	label    string
	baseURL  string
	prefixes []string
	apiKey   string
	verbose  bool
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider() *OpenAIProvider {
	return &OpenAIProvider{
		name:     "openai",
		label:    "OpenAI",
		prefixes: []string{"gpt-", "o1", "o3", "o4"},
	}
}

// Name returns the provider name
func (o *OpenAIProvider) Name() string {
	return o.name
}

// debugf prints debug information if verbose mode is enabled
func (o *OpenAIProvider) debugf(format string, args ...interface{}) {
	if o.verbose {
		fmt.Printf("[DEBUG]["+o.label+"] "+format+"\n", args...)
	}
}

// SupportsModel checks if the given model name is served by this endpoint
func (o *OpenAIProvider) SupportsModel(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range o.prefixes {
		if strings.HasPrefix(modelName, prefix) {
			o.debugf("Model %s is supported (matches prefix %s)", modelName, prefix)
			return true
		}
	}
	o.debugf("Model %s is not supported (no matching prefix)", modelName)
	return false
}

// Configure sets up the provider with necessary credentials
func (o *OpenAIProvider) Configure(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("API key is required for %s provider", o.label)
	}
	o.apiKey = apiKey
	o.debugf("API key configured successfully")
	return nil
}

// SetBaseURL overrides the API endpoint, e.g. for a proxy or self-hosted gateway
func (o *OpenAIProvider) SetBaseURL(baseURL string) {
	if baseURL != "" {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// SetVerbose enables or disables verbose mode
func (o *OpenAIProvider) SetVerbose(verbose bool) {
	o.verbose = verbose
}

// isReasoningModel reports whether the model only accepts default sampling parameters
func (o *OpenAIProvider) isReasoningModel(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, p := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(modelName, p) {
			return true
		}
	}
	return false
}

func (o *OpenAIProvider) createChatCompletionRequest(modelName string, messages []Message, cfg ModelConfig) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: modelName,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	if o.isReasoningModel(modelName) {
		req.MaxCompletionTokens = cfg.MaxTokens
		o.debugf("Using default sampling parameters for reasoning model %s", modelName)
	} else {
		req.MaxTokens = cfg.MaxTokens
		req.Temperature = float32(cfg.Temperature)
		req.TopP = float32(cfg.TopP)
		o.debugf("Using Temperature=%.2f, TopP=%.2f, MaxTokens=%d", cfg.Temperature, cfg.TopP, cfg.MaxTokens)
	}
	return req
}

// SendMessages sends a chat request to the specified model and returns the response
func (o *OpenAIProvider) SendMessages(ctx context.Context, modelName string, messages []Message, cfg ModelConfig) (string, error) {
	o.debugf("Preparing to send %d messages to model: %s", len(messages), modelName)

	if o.apiKey == "" {
		return "", fmt.Errorf("%s provider not configured: missing API key", o.label)
	}

	clientConfig := openai.DefaultConfig(o.apiKey)
	if o.baseURL != "" {
		clientConfig.BaseURL = o.baseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	req := o.createChatCompletionRequest(modelName, messages, withDefaults(cfg))
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", o.label, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned from %s", o.label)
	}

	response := resp.Choices[0].Message.Content
	o.debugf("API call completed, response length: %d characters", len(response))
	return response, nil
}
