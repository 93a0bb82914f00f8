package processor

import (
	"context"

	"github.com/kris-hansen/personaflow/utils/domain"
)

// AdhocPipelineID is recorded on runs started from a bare persona list
const AdhocPipelineID = "adhoc"

// stepSystemMessage is sent ahead of every persona prompt
const stepSystemMessage = "You are an expert document analyst. Provide clear, structured analysis."

// Document is the input a pipeline is run against
type Document struct {
	Name    string
	Content string
	// Variables fill template placeholders beyond the built-in ones
	Variables map[string]string
}

// Options tunes an Executor
type Options struct {
	// ParallelLimit caps concurrent completions in the independent phase
	ParallelLimit int
	// DefaultModel is used for personas without a model override
	DefaultModel string
}

// Personas is the part of the persona registry the executor needs
type Personas interface {
	Resolve(ctx context.Context, ids []string) ([]*domain.Persona, error)
}

// Pipelines persists caller-defined pipelines
type Pipelines interface {
	SavePipeline(ctx context.Context, p *domain.Pipeline) error
	GetPipeline(ctx context.Context, id string) (*domain.Pipeline, error)
	ListPipelines(ctx context.Context) ([]*domain.Pipeline, error)
}

// Runs persists completed runs
type Runs interface {
	SaveRun(ctx context.Context, r *domain.RunResult) error
}

// step is one persona scheduled at a fixed position of the execution order
type step struct {
	persona *domain.Persona
	number  int
	phase   domain.Phase
}
