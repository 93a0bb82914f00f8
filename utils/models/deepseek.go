package models

// NewDeepseekProvider serves deepseek-chat and deepseek-reasoner through the
// OpenAI-compatible Deepseek API. Local deepseek-r1 models belong to Ollama.
func NewDeepseekProvider() *OpenAIProvider {
	return &OpenAIProvider{
		name:     "deepseek",
		label:    "Deepseek",
		baseURL:  "https://api.deepseek.com/v1",
		prefixes: []string{"deepseek-chat", "deepseek-reasoner", "deepseek-coder"},
	}
}
