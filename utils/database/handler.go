// Package database is the PostgreSQL backend of the result store. Every
// collection is a table with a JSONB payload plus the columns it is queried by.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/lib/pq"
)

// schema is applied on every open; statements are idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS personaflow_personas (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS personaflow_pipelines (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS personaflow_runs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS personaflow_runs_user_idx ON personaflow_runs (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS personaflow_turns (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		run_id TEXT NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS personaflow_turns_run_idx ON personaflow_turns (run_id, seq)`,
}

// Handler is a Store backed by PostgreSQL through lib/pq
type Handler struct {
	db *sql.DB
}

// Open connects to dsn, verifies the connection and ensures the schema exists
func Open(ctx context.Context, dsn string) (*Handler, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	config.DebugLog("[Database] Connected and schema ready")
	return &Handler{db: db}, nil
}

func (h *Handler) upsert(ctx context.Context, table, id string, createdAt time.Time, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, created_at, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`, pq.QuoteIdentifier(table))
	if _, err := h.db.ExecContext(ctx, query, id, createdAt, payload); err != nil {
		return fmt.Errorf("failed to write %s: %w", table, err)
	}
	return nil
}

// scanPayloads decodes the single payload column of every row into a new T
func scanPayloads[T any](rows *sql.Rows) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func (h *Handler) SavePersona(ctx context.Context, p *domain.Persona) error {
	return h.upsert(ctx, "personaflow_personas", p.ID, p.CreatedAt, p)
}

func (h *Handler) DeletePersona(ctx context.Context, id string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM personaflow_personas WHERE id = $1`, id)
	return err
}

func (h *Handler) ListPersonas(ctx context.Context) ([]*domain.Persona, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT payload FROM personaflow_personas ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	return scanPayloads[domain.Persona](rows)
}

func (h *Handler) SavePipeline(ctx context.Context, p *domain.Pipeline) error {
	return h.upsert(ctx, "personaflow_pipelines", p.ID, p.CreatedAt, p)
}

func (h *Handler) GetPipeline(ctx context.Context, id string) (*domain.Pipeline, error) {
	var raw []byte
	err := h.db.QueryRowContext(ctx, `SELECT payload FROM personaflow_pipelines WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pipeline %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	var p domain.Pipeline
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *Handler) ListPipelines(ctx context.Context) ([]*domain.Pipeline, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT payload FROM personaflow_pipelines ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	return scanPayloads[domain.Pipeline](rows)
}

func (h *Handler) SaveRun(ctx context.Context, r *domain.RunResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO personaflow_runs (id, user_id, created_at, payload) VALUES ($1, $2, $3, $4)`,
		r.ID, r.Metadata.UserID, r.CreatedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (h *Handler) GetRun(ctx context.Context, id string) (*domain.RunResult, error) {
	var raw []byte
	err := h.db.QueryRowContext(ctx, `SELECT payload FROM personaflow_runs WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	var r domain.RunResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (h *Handler) ListRuns(ctx context.Context) ([]*domain.RunResult, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT payload FROM personaflow_runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return scanPayloads[domain.RunResult](rows)
}

func (h *Handler) ListRunsForUser(ctx context.Context, userID string) ([]*domain.RunResult, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT payload FROM personaflow_runs WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return scanPayloads[domain.RunResult](rows)
}

func (h *Handler) DeleteRunsBefore(ctx context.Context, t time.Time) ([]string, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `DELETE FROM personaflow_runs WHERE created_at < $1 RETURNING id`, t)
	if err != nil {
		return nil, fmt.Errorf("failed to prune runs: %w", err)
	}
	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(removed) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM personaflow_turns WHERE run_id = ANY($1)`, pq.Array(removed)); err != nil {
			return nil, fmt.Errorf("failed to prune turns: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	sort.Strings(removed)
	return removed, nil
}

func (h *Handler) AppendTurn(ctx context.Context, t *domain.Turn) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO personaflow_turns (id, run_id, payload) VALUES ($1, $2, $3)`, t.ID, t.RunID, payload)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (h *Handler) ListTurns(ctx context.Context, runID string) ([]*domain.Turn, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT payload FROM personaflow_turns WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	return scanPayloads[domain.Turn](rows)
}

func (h *Handler) ClearTurns(ctx context.Context, runID string) (int, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM personaflow_turns WHERE run_id = $1`, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear turns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}

// Close closes the connection pool
func (h *Handler) Close() error {
	return h.db.Close()
}
