package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kris-hansen/personaflow/utils/config"
)

// ProviderRegistry manages registered provider factories
type ProviderRegistry struct {
	factories map[string]Factory
	mutex     sync.RWMutex
}

// Factory creates provider instances and provides metadata
type Factory interface {
	CreateProvider() Provider
	GetMetadata() ProviderMetadata
}

// ProviderFactory is a reusable factory for all provider types
type ProviderFactory struct {
	constructor func() Provider
	metadata    ProviderMetadata
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(constructor func() Provider, metadata ProviderMetadata) *ProviderFactory {
	return &ProviderFactory{
		constructor: constructor,
		metadata:    metadata,
	}
}

// CreateProvider creates a new provider instance using the constructor function
func (f *ProviderFactory) CreateProvider() Provider {
	return f.constructor()
}

// GetMetadata returns the provider metadata
func (f *ProviderFactory) GetMetadata() ProviderMetadata {
	return f.metadata
}

// ProviderMetadata contains information about a provider
type ProviderMetadata struct {
	Name          string
	Description   string
	ModelPrefixes []string // e.g., ["claude-", "gpt-"]
	Priority      int      // Higher priority = checked first
}

// NewRegistry returns an empty registry
func NewRegistry() *ProviderRegistry {
	return &ProviderRegistry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in provider registered
func DefaultRegistry() *ProviderRegistry {
	r := NewRegistry()
	builtins := []struct {
		ctor func() Provider
		meta ProviderMetadata
	}{
		{func() Provider { return NewOpenAIProvider() }, ProviderMetadata{
			Name: "openai", Description: "OpenAI chat completions",
			ModelPrefixes: []string{"gpt-", "o1", "o3", "o4"}, Priority: 100}},
		{func() Provider { return NewAnthropicProvider() }, ProviderMetadata{
			Name: "anthropic", Description: "Anthropic Messages API",
			ModelPrefixes: []string{"claude-"}, Priority: 100}},
		{func() Provider { return NewGoogleProvider() }, ProviderMetadata{
			Name: "google", Description: "Google Gemini",
			ModelPrefixes: []string{"gemini-"}, Priority: 100}},
		{func() Provider { return NewXAIProvider() }, ProviderMetadata{
			Name: "xai", Description: "X.AI grok models",
			ModelPrefixes: []string{"grok-"}, Priority: 90}},
		{func() Provider { return NewDeepseekProvider() }, ProviderMetadata{
			Name: "deepseek", Description: "Deepseek hosted models",
			ModelPrefixes: []string{"deepseek-chat", "deepseek-reasoner", "deepseek-coder"}, Priority: 90}},
		{func() Provider { return NewOllamaProvider() }, ProviderMetadata{
			Name: "ollama", Description: "Local Ollama server",
			ModelPrefixes: ollamaPrefixes, Priority: 10}},
	}
	for _, b := range builtins {
		// names are unique, registration cannot fail here
		_ = r.RegisterProvider(b.meta.Name, NewProviderFactory(b.ctor, b.meta))
	}
	return r
}

// RegisterProvider adds a provider factory to the registry
func (r *ProviderRegistry) RegisterProvider(name string, factory Factory) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.factories[name] = factory
	config.DebugLog("[Registry] Registered provider: %s", name)
	return nil
}

// FindProvider detects appropriate provider for model
func (r *ProviderRegistry) FindProvider(modelName string) Provider {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	type providerCandidate struct {
		factory  Factory
		metadata ProviderMetadata
	}

	var candidates []providerCandidate
	lower := strings.ToLower(modelName)
	for _, factory := range r.factories {
		metadata := factory.GetMetadata()
		for _, prefix := range metadata.ModelPrefixes {
			if strings.HasPrefix(lower, prefix) {
				candidates = append(candidates, providerCandidate{factory: factory, metadata: metadata})
				break
			}
		}
	}

	// Sort by priority, then name for a stable choice
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].metadata.Priority != candidates[j].metadata.Priority {
			return candidates[i].metadata.Priority > candidates[j].metadata.Priority
		}
		return candidates[i].metadata.Name < candidates[j].metadata.Name
	})

	if len(candidates) > 0 {
		selected := candidates[0]
		config.DebugLog("[Registry] Selected provider %s for model %s (priority: %d)",
			selected.metadata.Name, modelName, selected.metadata.Priority)
		return selected.factory.CreateProvider()
	}

	config.DebugLog("[Registry] No provider found for model %s", modelName)
	return nil
}

// GetAvailableProviders returns metadata for every registered provider
func (r *ProviderRegistry) GetAvailableProviders() []ProviderMetadata {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var providers []ProviderMetadata
	for _, factory := range r.factories {
		providers = append(providers, factory.GetMetadata())
	}

	sort.Slice(providers, func(i, j int) bool {
		if providers[i].Priority != providers[j].Priority {
			return providers[i].Priority > providers[j].Priority
		}
		return providers[i].Name < providers[j].Name
	})

	return providers
}
