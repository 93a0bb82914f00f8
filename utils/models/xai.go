package models

// NewXAIProvider serves grok models through X.AI's OpenAI-compatible endpoint
func NewXAIProvider() *OpenAIProvider {
	return &OpenAIProvider{
		name:     "xai",
		label:    "XAI",
		baseURL:  "https://api.x.ai/v1",
		prefixes: []string{"grok-"},
	}
}
