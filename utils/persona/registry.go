// Package persona holds the persona registry, the built-in personas and the
// template rules personas are rendered with.
package persona

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
)

// Persister stores caller-defined personas across restarts
type Persister interface {
	SavePersona(ctx context.Context, p *domain.Persona) error
	DeletePersona(ctx context.Context, id string) error
	ListPersonas(ctx context.Context) ([]*domain.Persona, error)
}

// Spec describes a caller-defined persona
type Spec struct {
	Name        string
	Description string
	Template    string
	FocusTags   []string
	CreatedBy   string
	Temperature *float64
	MaxTokens   int
	Model       string
	Independent bool
	Strategy    domain.Strategy
}

// Registry is the set of known personas. Built-ins are listed first in
// declaration order, custom personas after them by creation time.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]*domain.Persona
	builtins []string
	persist  Persister
}

// NewRegistry creates a registry seeded with the built-in personas.
// When persist is non-nil, previously created custom personas are restored.
func NewRegistry(ctx context.Context, persist Persister) (*Registry, error) {
	r := &Registry{
		personas: make(map[string]*domain.Persona),
		persist:  persist,
	}
	r.AddBuiltins(Builtins()...)

	if persist != nil {
		custom, err := persist.ListPersonas(ctx)
		if err != nil {
			return nil, fmt.Errorf("error restoring custom personas: %w", err)
		}
		for _, p := range custom {
			if _, clash := r.personas[p.ID]; clash {
				continue
			}
			p.Custom = true
			r.personas[p.ID] = p
		}
		config.DebugLog("[Personas] Restored %d custom personas", len(custom))
	}
	return r, nil
}

// AddBuiltins registers or replaces non-deletable personas
func (r *Registry) AddBuiltins(personas ...*domain.Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range personas {
		p.Custom = false
		if p.Strategy == "" {
			p.Strategy = domain.StrategyPrompt
		}
		if _, exists := r.personas[p.ID]; !exists {
			r.builtins = append(r.builtins, p.ID)
		}
		r.personas[p.ID] = p
	}
}

// List returns every persona
func (r *Registry) List(ctx context.Context) []*domain.Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Persona, 0, len(r.personas))
	for _, id := range r.builtins {
		out = append(out, r.personas[id])
	}
	var custom []*domain.Persona
	for _, p := range r.personas {
		if p.Custom {
			custom = append(custom, p)
		}
	}
	sort.Slice(custom, func(i, j int) bool {
		if custom[i].CreatedAt.Equal(custom[j].CreatedAt) {
			return custom[i].ID < custom[j].ID
		}
		return custom[i].CreatedAt.Before(custom[j].CreatedAt)
	})
	return append(out, custom...)
}

// Get looks up a persona by id
func (r *Registry) Get(ctx context.Context, id string) (*domain.Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: persona %s", domain.ErrNotFound, id)
	}
	return p, nil
}

// Resolve looks up every id and reports all missing ones together
func (r *Registry) Resolve(ctx context.Context, ids []string) ([]*domain.Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := make([]*domain.Persona, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := r.personas[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		resolved = append(resolved, p)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown personas: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return resolved, nil
}

// Create registers a caller-defined persona under a fresh id
func (r *Registry) Create(ctx context.Context, spec Spec) (*domain.Persona, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("%w: persona name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(spec.Template) == "" {
		return nil, fmt.Errorf("%w: prompt template is required", domain.ErrValidation)
	}
	if _, err := Placeholders(spec.Template); err != nil {
		return nil, fmt.Errorf("%w: invalid prompt template: %v", domain.ErrValidation, err)
	}

	strategy := spec.Strategy
	switch strategy {
	case "":
		strategy = domain.StrategyPrompt
	case domain.StrategyPrompt, domain.StrategyStructured:
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrValidation, strategy)
	}

	temperature := defaultTemperature
	if spec.Temperature != nil {
		if *spec.Temperature < 0 || *spec.Temperature > 2 {
			return nil, fmt.Errorf("%w: temperature must be between 0 and 2", domain.ErrValidation)
		}
		temperature = *spec.Temperature
	}
	if spec.MaxTokens < 0 {
		return nil, fmt.Errorf("%w: max_tokens must not be negative", domain.ErrValidation)
	}

	p := &domain.Persona{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		Description: spec.Description,
		Template:    spec.Template,
		FocusTags:   spec.FocusTags,
		Temperature: temperature,
		MaxTokens:   spec.MaxTokens,
		Model:       spec.Model,
		Independent: spec.Independent,
		Strategy:    strategy,
		Custom:      true,
		CreatedBy:   spec.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}

	if r.persist != nil {
		if err := r.persist.SavePersona(ctx, p); err != nil {
			return nil, fmt.Errorf("error saving persona: %w", err)
		}
	}

	r.mu.Lock()
	r.personas[p.ID] = p
	r.mu.Unlock()

	config.VerboseLog("[Personas] Created custom persona %s (%s)", p.ID, p.Name)
	return p, nil
}

// Delete removes a caller-defined persona. It reports false for unknown ids
// and for built-ins, which are never removable.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.personas[id]
	if !ok || !p.Custom {
		return false, nil
	}
	if r.persist != nil {
		if err := r.persist.DeletePersona(ctx, id); err != nil {
			return false, fmt.Errorf("error deleting persona: %w", err)
		}
	}
	delete(r.personas, id)
	config.VerboseLog("[Personas] Deleted custom persona %s", id)
	return true, nil
}
