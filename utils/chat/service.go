// Package chat answers questions about stored runs and produces structured
// summaries and comparisons of them.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/metrics"
	"github.com/kris-hansen/personaflow/utils/models"
	"github.com/kris-hansen/personaflow/utils/processor"
	"github.com/rs/zerolog"
)

// Store is the persistence the conversation layer reads runs from and writes turns to
type Store interface {
	GetRun(ctx context.Context, id string) (*domain.RunResult, error)
	AppendTurn(ctx context.Context, t *domain.Turn) error
	ListTurns(ctx context.Context, runID string) ([]*domain.Turn, error)
	ClearTurns(ctx context.Context, runID string) (int, error)
}

// Pipelines looks up the pipeline a run was executed with
type Pipelines interface {
	GetPipeline(ctx context.Context, id string) (*domain.Pipeline, error)
}

// Personas looks up persona descriptions for the preamble
type Personas interface {
	Get(ctx context.Context, id string) (*domain.Persona, error)
}

// Options tunes the conversation layer
type Options struct {
	Model       string
	Temperature float64
}

// DefaultTemperature is used for conversational replies
const DefaultTemperature = 0.7

// SummaryResult is a structured summary together with the run it describes
type SummaryResult struct {
	RunID        string         `json:"analysis_id"`
	DocumentName string         `json:"document_name"`
	PipelineID   string         `json:"workflow_id"`
	CreatedAt    time.Time      `json:"created_at"`
	Summary      domain.Summary `json:"summary"`
	Fallback     bool           `json:"fallback"`
}

// ComparisonResult is a structured comparison of several runs
type ComparisonResult struct {
	RunIDs     []string          `json:"analysis_ids"`
	Comparison domain.Comparison `json:"comparison"`
	Timestamp  time.Time         `json:"timestamp"`
	Fallback   bool              `json:"fallback"`
}

// Service is the conversation layer. Ask and Clear on the same run are serialized.
type Service struct {
	store     Store
	pipelines Pipelines
	personas  Personas
	completer models.Completer
	opts      Options
	log       zerolog.Logger

	mu    sync.Mutex
	locks map[string]*runLock
}

type runLock struct {
	sync.Mutex
	refs int
}

// NewService creates a conversation layer
func NewService(store Store, pipelines Pipelines, personas Personas, completer models.Completer, opts Options) *Service {
	if opts.Model == "" {
		opts.Model = config.DefaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	return &Service{
		store:     store,
		pipelines: pipelines,
		personas:  personas,
		completer: completer,
		opts:      opts,
		log:       config.Logger("chat"),
		locks:     make(map[string]*runLock),
	}
}

// lock serializes work on one run. The entry is dropped once nobody holds or
// waits for it, so the map only tracks runs in use.
func (s *Service) lock(runID string) func() {
	s.mu.Lock()
	l, ok := s.locks[runID]
	if !ok {
		l = &runLock{}
		s.locks[runID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, runID)
		}
		s.mu.Unlock()
	}
}

// Ask sends message with the run and its conversation so far, and records the exchange
func (s *Service) Ask(ctx context.Context, runID, message, userID string) (*domain.Turn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(runID)
	defer unlock()

	history, err := s.store.ListTurns(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("error loading history: %w", err)
	}

	messages := make([]models.Message, 0, 2*len(history)+2)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: s.preamble(ctx, run)})
	for _, t := range history {
		messages = append(messages,
			models.Message{Role: models.RoleUser, Content: t.UserMessage},
			models.Message{Role: models.RoleAssistant, Content: t.AssistantResponse},
		)
	}
	messages = append(messages, models.Message{Role: models.RoleUser, Content: message})

	config.DebugLog("[Chat] Asking about run %s with %d prior turns", runID, len(history))
	reply, err := s.completer.Complete(ctx, models.Request{
		Model:       s.opts.Model,
		Messages:    messages,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}

	turn := &domain.Turn{
		ID:                uuid.NewString(),
		RunID:             runID,
		UserID:            userID,
		UserMessage:       message,
		AssistantResponse: reply,
		Timestamp:         time.Now().UTC(),
	}
	if err := s.store.AppendTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("error saving turn: %w", err)
	}
	return turn, nil
}

// History returns the turns recorded for runID in the order they happened
func (s *Service) History(ctx context.Context, runID string) ([]*domain.Turn, error) {
	return s.store.ListTurns(ctx, runID)
}

// Clear drops the conversation of a run. It reports false for an unknown run.
func (s *Service) Clear(ctx context.Context, runID string) (bool, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return false, err
	}

	unlock := s.lock(runID)
	defer unlock()

	n, err := s.store.ClearTurns(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("error clearing history: %w", err)
	}
	config.DebugLog("[Chat] Cleared %d turns of run %s", n, runID)
	return true, nil
}

// Summarize produces a structured summary of one run. A reply that is not a
// usable summary is replaced by the fixed fallback.
func (s *Service) Summarize(ctx context.Context, runID string) (*SummaryResult, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	reply, err := s.completer.Complete(ctx, models.Request{
		Model: s.opts.Model,
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: summarySystem},
			{Role: models.RoleUser, Content: s.summaryPrompt(ctx, run)},
		},
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}

	res := &SummaryResult{
		RunID:        run.ID,
		DocumentName: run.DocumentName,
		PipelineID:   run.PipelineID,
		CreatedAt:    run.CreatedAt,
	}
	if !processor.DecodeJSONObject(reply, &res.Summary) || res.Summary.ExecutiveSummary == "" {
		res.Summary = domain.FallbackSummary()
		res.Fallback = true
		s.fallback("summary", runID, reply)
	}
	res.Summary.Normalize()
	return res, nil
}

// Compare produces a structured comparison of two or more runs
func (s *Service) Compare(ctx context.Context, runIDs []string) (*ComparisonResult, error) {
	if len(runIDs) < 2 {
		return nil, fmt.Errorf("%w: at least 2 analysis ids are required for comparison", domain.ErrValidation)
	}
	runs := make([]*domain.RunResult, 0, len(runIDs))
	for _, id := range runIDs {
		run, err := s.store.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	prompt, err := s.comparisonPrompt(ctx, runs)
	if err != nil {
		return nil, err
	}
	reply, err := s.completer.Complete(ctx, models.Request{
		Model: s.opts.Model,
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: comparisonSystem},
			{Role: models.RoleUser, Content: prompt},
		},
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}

	res := &ComparisonResult{
		RunIDs:    append([]string(nil), runIDs...),
		Timestamp: time.Now().UTC(),
	}
	if !processor.DecodeJSONObject(reply, &res.Comparison) || res.Comparison.Overview == "" {
		res.Comparison = domain.FallbackComparison()
		res.Fallback = true
		s.fallback("comparison", strings.Join(runIDs, ","), reply)
	}
	res.Comparison.Normalize()
	return res, nil
}

func (s *Service) fallback(kind, runs, reply string) {
	metrics.FallbackTotal.WithLabelValues(kind).Inc()
	preview := reply
	if len(preview) > 200 {
		preview = preview[:200]
	}
	s.log.Warn().
		Str("kind", kind).
		Str("runs", runs).
		Str("reply", preview).
		Msg("model reply was not usable JSON, using fallback")
}
