package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/metrics"
)

// Router dispatches completion requests to the provider that serves the model
type Router struct {
	registry     *ProviderRegistry
	envConfig    *config.EnvConfig
	defaultModel string
}

// NewRouter creates a router over registry using keys from envConfig
func NewRouter(registry *ProviderRegistry, envConfig *config.EnvConfig) *Router {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if envConfig == nil {
		envConfig = config.NewEnvConfig()
	}
	return &Router{
		registry:     registry,
		envConfig:    envConfig,
		defaultModel: envConfig.DefaultModel,
	}
}

// Complete implements Completer
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = r.defaultModel
	}

	provider := r.registry.FindProvider(model)
	if provider == nil {
		return "", fmt.Errorf("%w: no provider found for model %s", domain.ErrUpstream, model)
	}
	provider.SetVerbose(config.Verbose)
	if setter, ok := provider.(BaseURLSetter); ok {
		if baseURL := r.envConfig.BaseURL(provider.Name()); baseURL != "" {
			setter.SetBaseURL(baseURL)
		}
	}

	if err := provider.Configure(r.envConfig.APIKey(provider.Name())); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	return provider.SendMessages(ctx, model, req.Messages, ModelConfig{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

// WithTimeout bounds every call made through c by d. Expiry and provider
// errors are reported as domain.ErrUpstream.
func WithTimeout(c Completer, d time.Duration) Completer {
	return CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		out, err := c.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: completion timed out after %s", domain.ErrUpstream, d)
		}
		if errors.Is(err, domain.ErrUpstream) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	})
}

// Instrumented records latency and failures of every call made through c
func Instrumented(c Completer) Completer {
	return CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		start := time.Now()
		out, err := c.Complete(ctx, req)
		label := req.Model
		if label == "" {
			label = "default"
		}
		metrics.CompletionLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CompletionFailures.WithLabelValues(label).Inc()
		}
		return out, err
	})
}
