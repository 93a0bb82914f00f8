package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider handles locally served Ollama models
type OllamaProvider struct {
	baseURL string
	client  *http.Client
	verbose bool
}

// OllamaRequest represents the request structure for the Ollama chat API
type OllamaRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  OllamaOptions `json:"options"`
}

// OllamaOptions carries sampling parameters
type OllamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

// OllamaResponse represents one response object from the Ollama chat API
type OllamaResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// NewOllamaProvider creates a new Ollama provider instance
func NewOllamaProvider() *OllamaProvider {
	return &OllamaProvider{
		baseURL: defaultOllamaURL,
		client:  http.DefaultClient,
	}
}

// Name returns the provider name
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// debugf prints debug information if verbose mode is enabled
func (o *OllamaProvider) debugf(format string, args ...interface{}) {
	if o.verbose {
		fmt.Printf("[DEBUG][Ollama] "+format+"\n", args...)
	}
}

// ollamaPrefixes lists the model families served locally
var ollamaPrefixes = []string{
	"llama", "codellama", "mistral", "mixtral", "neural-chat", "dolphin", "orca",
	"vicuna", "nous", "wizard", "phi", "openchat", "solar", "yi", "qwen", "gemma",
	"deepseek-r1",
}

// SupportsModel checks if the given model name is supported by Ollama
func (o *OllamaProvider) SupportsModel(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range ollamaPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			return true
		}
	}
	return false
}

// Configure accepts an optional base URL in place of an API key
func (o *OllamaProvider) Configure(apiKey string) error {
	if strings.HasPrefix(apiKey, "http://") || strings.HasPrefix(apiKey, "https://") {
		o.baseURL = strings.TrimRight(apiKey, "/")
	}
	o.debugf("Using Ollama at %s", o.baseURL)
	return nil
}

// SetBaseURL points the provider at another Ollama server
func (o *OllamaProvider) SetBaseURL(baseURL string) {
	if baseURL != "" {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// SetVerbose enables or disables verbose mode
func (o *OllamaProvider) SetVerbose(verbose bool) {
	o.verbose = verbose
}

// SendMessages sends a chat request to the local Ollama server
func (o *OllamaProvider) SendMessages(ctx context.Context, modelName string, messages []Message, cfg ModelConfig) (string, error) {
	cfg = withDefaults(cfg)
	reqBody := OllamaRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   false,
		Options: OllamaOptions{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			NumPredict:  cfg.MaxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	o.debugf("Sending request to Ollama API for model %s", modelName)
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling Ollama API: %w (is Ollama running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	// Ollama may still stream newline-delimited objects; accumulate until done.
	var fullResponse strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk OllamaResponse
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("error decoding response: %w", err)
		}
		fullResponse.WriteString(chunk.Message.Content)
		if chunk.Done {
			break
		}
	}

	result := fullResponse.String()
	o.debugf("API call completed, response length: %d characters", len(result))
	return result, nil
}
