// Package domain holds the records shared by the registry, executor, store and
// conversation layer.
package domain

import "time"

// Strategy selects how a persona's reply is post-processed
type Strategy string

const (
	// StrategyPrompt keeps the reply as plain text
	StrategyPrompt Strategy = "prompt"
	// StrategyStructured additionally decodes the reply as a JSON object
	StrategyStructured Strategy = "structured"
)

// Phase identifies which part of a run produced a step output
type Phase string

const (
	PhaseIndependent Phase = "independent"
	PhaseSequential  Phase = "sequential"
)

// Persona is one analytical viewpoint: a prompt template plus generation parameters.
// Personas are never mutated after creation.
type Persona struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Template    string    `json:"prompt_template" yaml:"prompt_template"`
	FocusTags   []string  `json:"focus,omitempty" yaml:"focus,omitempty"`
	Temperature float64   `json:"temperature" yaml:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Model       string    `json:"model,omitempty" yaml:"model,omitempty"`
	Independent bool      `json:"independent" yaml:"independent"`
	Strategy    Strategy  `json:"strategy" yaml:"strategy"`
	Custom      bool      `json:"custom" yaml:"-"`
	CreatedBy   string    `json:"created_by,omitempty" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Pipeline is an ordered list of persona ids. The ids are stored verbatim and
// only resolved when the pipeline is executed.
type Pipeline struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PersonaIDs  []string  `json:"persona_ids"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Builtin     bool      `json:"builtin"`
}

// StepOutput is the result slot of one persona within a run
type StepOutput struct {
	PersonaID   string         `json:"persona_id"`
	PersonaName string         `json:"persona_name"`
	Step        int            `json:"step"`
	Phase       Phase          `json:"phase"`
	Text        string         `json:"analysis,omitempty"`
	Structured  map[string]any `json:"structured,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	DurationMS  int64          `json:"duration_ms"`
}

// Failed reports whether the step recorded an error instead of an output
func (s StepOutput) Failed() bool {
	return s.Error != ""
}

// RunMetadata carries timing, ownership and per-step errors of a run
type RunMetadata struct {
	UserID            string    `json:"user_id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	TotalPersonas     int       `json:"total_personas"`
	CompletedPersonas int       `json:"completed_personas"`
	Errors            []string  `json:"errors,omitempty"`
	ExecutionOrder    []string  `json:"execution_order"`
}

// RunResult is one completed execution of a pipeline against one document
type RunResult struct {
	ID           string                `json:"id"`
	PipelineID   string                `json:"pipeline_id"`
	DocumentName string                `json:"document_name"`
	Outputs      map[string]StepOutput `json:"outputs"`
	Metadata     RunMetadata           `json:"metadata"`
	CreatedAt    time.Time             `json:"created_at"`
}

// OrderedOutputs returns the step outputs in execution order
func (r *RunResult) OrderedOutputs() []StepOutput {
	out := make([]StepOutput, 0, len(r.Outputs))
	for _, id := range r.Metadata.ExecutionOrder {
		if s, ok := r.Outputs[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Turn is one question/answer exchange about a run
type Turn struct {
	ID                string    `json:"id"`
	RunID             string    `json:"analysis_id"`
	UserID            string    `json:"user_id,omitempty"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Timestamp         time.Time `json:"timestamp"`
}
