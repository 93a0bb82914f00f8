package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kris-hansen/personaflow/utils/domain"
)

// Memory is a process-local Store. Each collection has its own lock.
type Memory struct {
	personaMu sync.RWMutex
	personas  map[string]*domain.Persona

	pipelineMu sync.RWMutex
	pipelines  map[string]*domain.Pipeline

	runMu sync.RWMutex
	runs  map[string]*domain.RunResult

	turnMu sync.RWMutex
	turns  map[string][]*domain.Turn
}

// NewMemory returns an empty memory store
func NewMemory() *Memory {
	return &Memory{
		personas:  make(map[string]*domain.Persona),
		pipelines: make(map[string]*domain.Pipeline),
		runs:      make(map[string]*domain.RunResult),
		turns:     make(map[string][]*domain.Turn),
	}
}

func (m *Memory) SavePersona(ctx context.Context, p *domain.Persona) error {
	m.personaMu.Lock()
	defer m.personaMu.Unlock()
	m.personas[p.ID] = p
	return nil
}

func (m *Memory) DeletePersona(ctx context.Context, id string) error {
	m.personaMu.Lock()
	defer m.personaMu.Unlock()
	delete(m.personas, id)
	return nil
}

func (m *Memory) ListPersonas(ctx context.Context) ([]*domain.Persona, error) {
	m.personaMu.RLock()
	defer m.personaMu.RUnlock()
	out := make([]*domain.Persona, 0, len(m.personas))
	for _, p := range m.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SavePipeline(ctx context.Context, p *domain.Pipeline) error {
	m.pipelineMu.Lock()
	defer m.pipelineMu.Unlock()
	m.pipelines[p.ID] = p
	return nil
}

func (m *Memory) GetPipeline(ctx context.Context, id string) (*domain.Pipeline, error) {
	m.pipelineMu.RLock()
	defer m.pipelineMu.RUnlock()
	p, ok := m.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("%w: pipeline %s", domain.ErrNotFound, id)
	}
	return p, nil
}

func (m *Memory) ListPipelines(ctx context.Context) ([]*domain.Pipeline, error) {
	m.pipelineMu.RLock()
	defer m.pipelineMu.RUnlock()
	out := make([]*domain.Pipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveRun(ctx context.Context, r *domain.RunResult) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if _, exists := m.runs[r.ID]; exists {
		return fmt.Errorf("run %s already saved", r.ID)
	}
	m.runs[r.ID] = r
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (*domain.RunResult, error) {
	m.runMu.RLock()
	defer m.runMu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, id)
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context) ([]*domain.RunResult, error) {
	return m.filterRuns(func(*domain.RunResult) bool { return true }), nil
}

func (m *Memory) ListRunsForUser(ctx context.Context, userID string) ([]*domain.RunResult, error) {
	return m.filterRuns(func(r *domain.RunResult) bool { return r.Metadata.UserID == userID }), nil
}

func (m *Memory) filterRuns(keep func(*domain.RunResult) bool) []*domain.RunResult {
	m.runMu.RLock()
	defer m.runMu.RUnlock()
	var out []*domain.RunResult
	for _, r := range m.runs {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortRunsNewestFirst(out)
	return out
}

func (m *Memory) DeleteRunsBefore(ctx context.Context, t time.Time) ([]string, error) {
	m.runMu.Lock()
	var removed []string
	for id, r := range m.runs {
		if r.CreatedAt.Before(t) {
			delete(m.runs, id)
			removed = append(removed, id)
		}
	}
	m.runMu.Unlock()

	m.turnMu.Lock()
	for _, id := range removed {
		delete(m.turns, id)
	}
	m.turnMu.Unlock()

	sort.Strings(removed)
	return removed, nil
}

func (m *Memory) AppendTurn(ctx context.Context, t *domain.Turn) error {
	m.turnMu.Lock()
	defer m.turnMu.Unlock()
	m.turns[t.RunID] = append(m.turns[t.RunID], t)
	return nil
}

func (m *Memory) ListTurns(ctx context.Context, runID string) ([]*domain.Turn, error) {
	m.turnMu.RLock()
	defer m.turnMu.RUnlock()
	turns := m.turns[runID]
	out := make([]*domain.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *Memory) ClearTurns(ctx context.Context, runID string) (int, error) {
	m.turnMu.Lock()
	defer m.turnMu.Unlock()
	n := len(m.turns[runID])
	delete(m.turns, runID)
	return n, nil
}

// Close is a no-op
func (m *Memory) Close() error { return nil }

func sortRunsNewestFirst(runs []*domain.RunResult) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
