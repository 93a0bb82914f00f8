// Package store persists personas, pipelines, runs and conversation turns.
//
// Three backends are available: an in-process memory store (the default), an
// embedded bbolt file and PostgreSQL (see package database). All of them keep
// the same ordering guarantees: runs are listed newest first and turns in the
// order they were appended.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/database"
	"github.com/kris-hansen/personaflow/utils/domain"
)

// PersonaStore keeps caller-defined personas
type PersonaStore interface {
	SavePersona(ctx context.Context, p *domain.Persona) error
	DeletePersona(ctx context.Context, id string) error
	ListPersonas(ctx context.Context) ([]*domain.Persona, error)
}

// PipelineStore keeps caller-defined pipelines
type PipelineStore interface {
	SavePipeline(ctx context.Context, p *domain.Pipeline) error
	GetPipeline(ctx context.Context, id string) (*domain.Pipeline, error)
	ListPipelines(ctx context.Context) ([]*domain.Pipeline, error)
}

// RunStore keeps completed runs
type RunStore interface {
	SaveRun(ctx context.Context, r *domain.RunResult) error
	GetRun(ctx context.Context, id string) (*domain.RunResult, error)
	ListRuns(ctx context.Context) ([]*domain.RunResult, error)
	ListRunsForUser(ctx context.Context, userID string) ([]*domain.RunResult, error)
	// DeleteRunsBefore removes runs created before t together with their turns
	DeleteRunsBefore(ctx context.Context, t time.Time) ([]string, error)
}

// TurnStore keeps the per-run conversation history
type TurnStore interface {
	AppendTurn(ctx context.Context, t *domain.Turn) error
	ListTurns(ctx context.Context, runID string) ([]*domain.Turn, error)
	ClearTurns(ctx context.Context, runID string) (int, error)
}

// Store groups the four collections
type Store interface {
	PersonaStore
	PipelineStore
	RunStore
	TurnStore
	Close() error
}

// Open creates the backend selected by cfg. dataDir is used for the bolt file
// when cfg.Path is empty.
func Open(ctx context.Context, cfg config.StorageConfig, dataDir string) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "bolt":
		path := cfg.Path
		if path == "" {
			if dataDir == "" {
				dataDir = "."
			}
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return nil, fmt.Errorf("error creating data directory: %w", err)
			}
			path = filepath.Join(dataDir, "personaflow.db")
		}
		return OpenBolt(path)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage driver postgres requires a dsn")
		}
		return database.Open(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
