package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kris-hansen/personaflow/utils/domain"
)

// BuiltinPipelines returns the pipeline templates available out of the box
func BuiltinPipelines() []*domain.Pipeline {
	return []*domain.Pipeline{
		{
			ID:          "full_analysis",
			Name:        "Full Analysis",
			Description: "Complete multi-perspective review: risk, claims, compliance, financial and operational analysis followed by a summary",
			PersonaIDs: []string{
				"risk_assessment", "claims_analysis", "compliance_review",
				"financial_analysis", "operational_excellence", "summary_only",
			},
		},
		{
			ID:          "quick_review",
			Name:        "Quick Review",
			Description: "Fast risk and claims review with a summary",
			PersonaIDs:  []string{"risk_assessment", "claims_analysis", "summary_only"},
		},
		{
			ID:          "compliance_focus",
			Name:        "Compliance Focus",
			Description: "Regulatory compliance review backed by a risk assessment",
			PersonaIDs:  []string{"compliance_review", "risk_assessment", "summary_only"},
		},
		{
			ID:          "financial_focus",
			Name:        "Financial Focus",
			Description: "Financial analysis backed by a risk assessment",
			PersonaIDs:  []string{"financial_analysis", "risk_assessment", "summary_only"},
		},
	}
}

func (e *Executor) seedPipelines() {
	for _, p := range BuiltinPipelines() {
		p.Builtin = true
		e.builtin[p.ID] = p
		e.builtinOrder = append(e.builtinOrder, p.ID)
	}
}

// CreatePipeline stores a caller-defined pipeline. Persona ids are kept verbatim
// and only resolved when the pipeline is executed.
func (e *Executor) CreatePipeline(ctx context.Context, name, description string, personaIDs []string, creator string) (*domain.Pipeline, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: pipeline name is required", domain.ErrValidation)
	}
	if len(personaIDs) == 0 {
		return nil, fmt.Errorf("%w: pipeline needs at least one persona", domain.ErrValidation)
	}

	p := &domain.Pipeline{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		PersonaIDs:  append([]string(nil), personaIDs...),
		CreatedBy:   creator,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.SavePipeline(ctx, p); err != nil {
		return nil, fmt.Errorf("error saving pipeline: %w", err)
	}
	e.debugf("Created pipeline %s (%s) with %d personas", p.ID, p.Name, len(p.PersonaIDs))
	return p, nil
}

// GetPipeline returns a built-in or stored pipeline
func (e *Executor) GetPipeline(ctx context.Context, id string) (*domain.Pipeline, error) {
	if p, ok := e.builtin[id]; ok {
		return p, nil
	}
	p, err := e.store.GetPipeline(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error loading pipeline %s: %w", id, err)
	}
	return p, nil
}

// ListPipelines returns the built-in pipelines followed by stored ones
func (e *Executor) ListPipelines(ctx context.Context) ([]*domain.Pipeline, error) {
	stored, err := e.store.ListPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing pipelines: %w", err)
	}
	out := make([]*domain.Pipeline, 0, len(e.builtinOrder)+len(stored))
	for _, id := range e.builtinOrder {
		out = append(out, e.builtin[id])
	}
	return append(out, stored...), nil
}
