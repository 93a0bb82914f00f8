// Package processor runs persona pipelines against documents.
//
// A run resolves every persona before the first model call, then executes the
// independent personas concurrently against the document and the context
// available before that phase, then the remaining personas one after another.
// Each successful step appends its labelled output to the shared context.
package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/metrics"
	"github.com/kris-hansen/personaflow/utils/models"
	"github.com/kris-hansen/personaflow/utils/persona"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the executor writes to
type Store interface {
	Pipelines
	Runs
}

// Executor runs pipelines and keeps the pipeline catalogue
type Executor struct {
	personas  Personas
	store     Store
	completer models.Completer
	opts      Options
	log       zerolog.Logger

	builtin      map[string]*domain.Pipeline
	builtinOrder []string
}

// NewExecutor creates an executor with the built-in pipelines seeded
func NewExecutor(personas Personas, store Store, completer models.Completer, opts Options) *Executor {
	if opts.ParallelLimit <= 0 {
		opts.ParallelLimit = config.DefaultParallelLimit
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = config.DefaultModel
	}
	e := &Executor{
		personas:  personas,
		store:     store,
		completer: completer,
		opts:      opts,
		log:       config.Logger("executor"),
		builtin:   make(map[string]*domain.Pipeline),
	}
	e.seedPipelines()
	return e
}

func (e *Executor) debugf(format string, args ...interface{}) {
	config.DebugLog("[Executor] "+format, args...)
}

// RunOption customizes a single execution
type RunOption func(*runConfig)

type runConfig struct {
	progress ProgressWriter
}

// WithProgress streams progress updates of the run to w
func WithProgress(w ProgressWriter) RunOption {
	return func(c *runConfig) { c.progress = w }
}

// Execute runs the pipeline identified by pipelineID against doc and stores the result
func (e *Executor) Execute(ctx context.Context, pipelineID string, doc Document, userID string, opts ...RunOption) (*domain.RunResult, error) {
	p, err := e.GetPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, p.ID, p.PersonaIDs, doc, userID, opts)
}

// ExecuteSequence runs an ad-hoc list of personas as if it were a pipeline
func (e *Executor) ExecuteSequence(ctx context.Context, personaIDs []string, doc Document, userID string, opts ...RunOption) (*domain.RunResult, error) {
	return e.run(ctx, AdhocPipelineID, personaIDs, doc, userID, opts)
}

func (e *Executor) run(ctx context.Context, pipelineID string, ids []string, doc Document, userID string, opts []RunOption) (*domain.RunResult, error) {
	var rc runConfig
	for _, o := range opts {
		o(&rc)
	}

	steps, err := e.plan(ctx, ids, doc)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		e.notify(rc.progress, ProgressUpdate{Type: ProgressError, Message: "run rejected", Error: err})
		return nil, err
	}

	result := &domain.RunResult{
		ID:           uuid.NewString(),
		PipelineID:   pipelineID,
		DocumentName: doc.Name,
		Outputs:      make(map[string]domain.StepOutput, len(steps)),
		Metadata: domain.RunMetadata{
			UserID:        userID,
			StartedAt:     time.Now().UTC(),
			TotalPersonas: len(steps),
		},
	}
	e.debugf("Starting run %s of pipeline %s with %d personas", result.ID, pipelineID, len(steps))

	var independent, sequential []step
	for _, s := range steps {
		if s.phase == domain.PhaseIndependent {
			independent = append(independent, s)
		} else {
			sequential = append(sequential, s)
		}
	}

	var sharedContext strings.Builder

	if len(independent) > 0 {
		outputs := e.runIndependent(ctx, independent, doc, sharedContext.String(), len(steps), rc.progress)
		if err := ctx.Err(); err != nil {
			return nil, e.abort(result, rc.progress, err)
		}
		for _, out := range outputs {
			e.record(result, &sharedContext, out)
		}
	}

	for _, s := range sequential {
		if err := ctx.Err(); err != nil {
			return nil, e.abort(result, rc.progress, err)
		}
		e.notify(rc.progress, ProgressUpdate{
			Type:    ProgressStep,
			Message: fmt.Sprintf("Running %s", s.persona.Name),
			Step:    e.stepInfo(s, len(steps)),
		})
		out := e.runStep(ctx, s, doc, sharedContext.String(), len(steps), rc.progress)
		if err := ctx.Err(); err != nil {
			return nil, e.abort(result, rc.progress, err)
		}
		e.record(result, &sharedContext, out)
	}

	result.Metadata.FinishedAt = time.Now().UTC()
	result.CreatedAt = result.Metadata.FinishedAt
	if err := e.store.SaveRun(ctx, result); err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		err = fmt.Errorf("error saving run: %w", err)
		e.notify(rc.progress, ProgressUpdate{Type: ProgressError, Message: "run not saved", Error: err})
		return nil, err
	}

	outcome := "completed"
	if len(result.Metadata.Errors) > 0 {
		outcome = "partial"
		e.log.Warn().
			Str("run_id", result.ID).
			Strs("errors", result.Metadata.Errors).
			Msg("run finished with failed steps")
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()
	e.debugf("Run %s finished: %d/%d personas completed", result.ID, result.Metadata.CompletedPersonas, len(steps))
	e.notify(rc.progress, ProgressUpdate{
		Type:    ProgressComplete,
		Message: fmt.Sprintf("Completed %d of %d personas", result.Metadata.CompletedPersonas, len(steps)),
		RunID:   result.ID,
	})
	return result, nil
}

// plan resolves every persona and dry-renders every template. Nothing reaches
// the completer unless the whole sequence is valid.
func (e *Executor) plan(ctx context.Context, ids []string, doc Document) ([]step, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no personas to run", domain.ErrValidation)
	}
	resolved, err := e.personas.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range resolved {
		if err := persona.Check(p.Template, doc.Variables); err != nil {
			return nil, fmt.Errorf("%w: persona %s: %v", domain.ErrValidation, p.ID, err)
		}
	}

	// independent personas come first in execution order, each group keeping
	// its relative order
	steps := make([]step, 0, len(resolved))
	for _, p := range resolved {
		if p.Independent {
			steps = append(steps, step{persona: p, phase: domain.PhaseIndependent})
		}
	}
	for _, p := range resolved {
		if !p.Independent {
			steps = append(steps, step{persona: p, phase: domain.PhaseSequential})
		}
	}
	for i := range steps {
		steps[i].number = i + 1
	}
	return steps, nil
}

// runIndependent executes steps concurrently against the same prior context and
// returns their outputs in the order of steps
func (e *Executor) runIndependent(ctx context.Context, steps []step, doc Document, prior string, total int, progress ProgressWriter) []domain.StepOutput {
	outputs := make([]domain.StepOutput, len(steps))

	var g errgroup.Group
	g.SetLimit(e.opts.ParallelLimit)
	for i, s := range steps {
		i, s := i, s // per-iteration copies; module targets go 1.21 loop semantics
		e.notify(progress, ProgressUpdate{
			Type:    ProgressParallelStep,
			Message: fmt.Sprintf("Queued %s", s.persona.Name),
			Step:    e.stepInfo(s, total),
		})
		g.Go(func() error {
			outputs[i] = e.runStep(ctx, s, doc, prior, total, progress)
			return nil
		})
	}
	g.Wait()
	return outputs
}

func (e *Executor) runStep(ctx context.Context, s step, doc Document, prior string, total int, progress ProgressWriter) domain.StepOutput {
	p := s.persona
	out := domain.StepOutput{
		PersonaID:   p.ID,
		PersonaName: p.Name,
		Step:        s.number,
		Phase:       s.phase,
		StartedAt:   time.Now().UTC(),
	}

	prompt, err := persona.Render(p.Template, persona.Values{
		Input:        doc.Content,
		Context:      prior,
		DocumentName: doc.Name,
		Variables:    doc.Variables,
	})
	if err == nil {
		model := p.Model
		if model == "" {
			model = e.opts.DefaultModel
		}
		e.debugf("Step %d/%d: %s on %s", s.number, total, p.ID, model)

		var reply string
		reply, err = e.completer.Complete(ctx, models.Request{
			Model: model,
			Messages: []models.Message{
				{Role: models.RoleSystem, Content: stepSystemMessage},
				{Role: models.RoleUser, Content: prompt},
			},
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
		})
		if err == nil {
			applyStrategy(p.Strategy, &out, reply)
		}
	}
	out.DurationMS = time.Since(out.StartedAt).Milliseconds()

	outcome := "ok"
	if err != nil {
		out.Error = err.Error()
		outcome = "failed"
		e.log.Warn().Err(err).Str("persona", p.ID).Int("step", s.number).Msg("persona step failed")
	}
	metrics.StepsTotal.WithLabelValues(string(s.phase), outcome).Inc()

	info := e.stepInfo(s, total)
	info.Failed = out.Failed()
	info.DurationMS = out.DurationMS
	e.notify(progress, ProgressUpdate{
		Type:    ProgressStepDone,
		Message: fmt.Sprintf("%s finished", p.Name),
		Error:   err,
		Step:    info,
	})
	return out
}

// record stores out in the result and folds a successful output into the context
func (e *Executor) record(result *domain.RunResult, sharedContext *strings.Builder, out domain.StepOutput) {
	result.Outputs[out.PersonaID] = out
	result.Metadata.ExecutionOrder = append(result.Metadata.ExecutionOrder, out.PersonaID)
	if out.Failed() {
		result.Metadata.Errors = append(result.Metadata.Errors, fmt.Sprintf("Error in %s: %s", out.PersonaName, out.Error))
		return
	}
	result.Metadata.CompletedPersonas++
	fmt.Fprintf(sharedContext, "\n%s Analysis:\n%s\n", out.PersonaName, out.Text)
}

func (e *Executor) abort(result *domain.RunResult, progress ProgressWriter, err error) error {
	metrics.RunsTotal.WithLabelValues("cancelled").Inc()
	e.log.Info().Str("run_id", result.ID).Err(err).Msg("run cancelled")
	e.notify(progress, ProgressUpdate{Type: ProgressError, Message: "run cancelled", Error: err})
	return fmt.Errorf("run cancelled: %w", err)
}

func (e *Executor) stepInfo(s step, total int) *StepInfo {
	model := s.persona.Model
	if model == "" {
		model = e.opts.DefaultModel
	}
	return &StepInfo{
		PersonaID:   s.persona.ID,
		PersonaName: s.persona.Name,
		Step:        s.number,
		Total:       total,
		Model:       model,
	}
}

func (e *Executor) notify(w ProgressWriter, update ProgressUpdate) {
	if w == nil {
		return
	}
	if err := w.WriteProgress(update); err != nil {
		e.debugf("progress writer: %v", err)
	}
}
