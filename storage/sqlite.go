package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/bookforge/internal/sqldb"
	"github.com/richinex/bookforge/model"
)

// SQLStore implements ProjectStore on sqlite (mattn/go-sqlite3) or Postgres
// (pgx stdlib driver). Queries are written with ? placeholders and rebound
// for Postgres. Thread-safe via sql.DB's connection pooling.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// OpenSqlite opens or creates a sqlite database at path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SQLStore, error) {
	if path == ":memory:" {
		return NewSqliteInMemory()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSQLStore(db, false)
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SQLStore, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	return newSQLStore(db, false)
}

// OpenPostgres connects to Postgres through the pgx stdlib driver.
func OpenPostgres(url string) (*SQLStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open Postgres database: %w", err)
	}
	return newSQLStore(db, true)
}

func newSQLStore(db *sql.DB, postgres bool) (*SQLStore, error) {
	s := &SQLStore{db: db, postgres: postgres}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			idea_summary TEXT NOT NULL DEFAULT '',
			research_guidelines TEXT NOT NULL DEFAULT '',
			spend_limit_cents BIGINT,
			total_cost_cents BIGINT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stage_artifacts (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			stage TEXT NOT NULL,
			version INTEGER NOT NULL,
			output TEXT NOT NULL,
			payload TEXT NOT NULL,
			extras TEXT,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (project_id, stage, version)
		)`,
		`CREATE TABLE IF NOT EXISTS fact_candidates (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (project_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fact_candidates_position
		ON fact_candidates(project_id, position)`,
		`CREATE TABLE IF NOT EXISTS stage_runs (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			run_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			outcome TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt_tokens INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			latency_ms DOUBLE PRECISION,
			cost_usd DOUBLE PRECISION,
			duration_ms DOUBLE PRECISION NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_runs_project
		ON stage_runs(project_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) rebind(query string) string {
	return sqldb.Rebind(query, s.postgres)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) ensureProject(ctx context.Context, q queryer, id string) error {
	var one int
	err := q.QueryRowContext(ctx, s.rebind("SELECT 1 FROM projects WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProjectNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up project: %w", err)
	}
	return nil
}

// CreateProject implements ProjectStore. An empty id is generated.
func (s *SQLStore) CreateProject(ctx context.Context, p Project) (*Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.TotalCostCents = 0

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO projects (id, title, idea_summary, research_guidelines, spend_limit_cents, total_cost_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`), p.ID, p.Title, p.IdeaSummary, p.ResearchGuidelines, nullInt64(p.SpendLimitCents), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return &p, nil
}

// GetProject implements ProjectStore.
func (s *SQLStore) GetProject(ctx context.Context, id string) (*Project, error) {
	var (
		p                    Project
		limit                sql.NullInt64
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, title, idea_summary, research_guidelines, spend_limit_cents, total_cost_cents, created_at, updated_at
		FROM projects WHERE id = ?
	`), id).Scan(&p.ID, &p.Title, &p.IdeaSummary, &p.ResearchGuidelines, &limit, &p.TotalCostCents, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if limit.Valid {
		p.SpendLimitCents = &limit.Int64
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &p, nil
}

// SetSpendLimit implements ProjectStore.
func (s *SQLStore) SetSpendLimit(ctx context.Context, id string, cents *int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE projects SET spend_limit_cents = ?, updated_at = ? WHERE id = ?"),
		nullInt64(cents), time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to set spend limit: %w", err)
	}
	return requireRow(res)
}

// Budget implements ProjectStore.
func (s *SQLStore) Budget(ctx context.Context, id string) (Budget, error) {
	var (
		b     Budget
		limit sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT spend_limit_cents, total_cost_cents FROM projects WHERE id = ?"), id,
	).Scan(&limit, &b.TotalCostCents)
	if errors.Is(err, sql.ErrNoRows) {
		return Budget{}, ErrProjectNotFound
	}
	if err != nil {
		return Budget{}, fmt.Errorf("failed to load budget: %w", err)
	}
	if limit.Valid {
		b.SpendLimitCents = &limit.Int64
	}
	return b, nil
}

// IncrementCost implements ProjectStore.
func (s *SQLStore) IncrementCost(ctx context.Context, id string, cents int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE projects SET total_cost_cents = total_cost_cents + ?, updated_at = ? WHERE id = ?"),
		cents, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to increment project cost: %w", err)
	}
	return requireRow(res)
}

// SaveArtifact implements ProjectStore.
func (s *SQLStore) SaveArtifact(ctx context.Context, a Artifact) (*Artifact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureProject(ctx, tx, a.ProjectID); err != nil {
		return nil, err
	}
	var latest int
	err = tx.QueryRowContext(ctx, s.rebind(
		"SELECT COALESCE(MAX(version), 0) FROM stage_artifacts WHERE project_id = ? AND stage = ?"),
		a.ProjectID, string(a.Stage)).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact version: %w", err)
	}

	a.Version = latest + 1
	a.CreatedAt = time.Now().UTC()
	if len(a.Payload) == 0 {
		a.Payload = json.RawMessage("null")
	}
	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO stage_artifacts (project_id, stage, version, output, payload, extras, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), a.ProjectID, string(a.Stage), a.Version, a.Output, string(a.Payload), nullRaw(a.Extras), a.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert artifact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &a, nil
}

// LatestArtifact implements ProjectStore.
func (s *SQLStore) LatestArtifact(ctx context.Context, projectID string, stage model.BookStage) (*Artifact, error) {
	var (
		a         Artifact
		stageName string
		payload   string
		extras    sql.NullString
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT project_id, stage, version, output, payload, extras, created_at
		FROM stage_artifacts
		WHERE project_id = ? AND stage = ?
		ORDER BY version DESC
		LIMIT 1
	`), projectID, string(stage)).Scan(&a.ProjectID, &stageName, &a.Version, &a.Output, &payload, &extras, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	a.Stage = model.BookStage(stageName)
	a.Payload = json.RawMessage(payload)
	if extras.Valid {
		a.Extras = json.RawMessage(extras.String)
	}
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &a, nil
}

// SaveCandidates implements ProjectStore.
func (s *SQLStore) SaveCandidates(ctx context.Context, projectID string, candidates []model.ResearchFactCandidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureProject(ctx, tx, projectID); err != nil {
		return err
	}
	var next int
	err = tx.QueryRowContext(ctx, s.rebind(
		"SELECT COALESCE(MAX(position), -1) + 1 FROM fact_candidates WHERE project_id = ?"), projectID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to read candidate position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO fact_candidates (project_id, id, position, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, id) DO NOTHING
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode candidate %s: %w", c.ID, err)
		}
		res, err := stmt.ExecContext(ctx, projectID, c.ID, next, string(payload))
		if err != nil {
			return fmt.Errorf("failed to insert candidate: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListCandidates implements ProjectStore.
func (s *SQLStore) ListCandidates(ctx context.Context, projectID string) ([]model.ResearchFactCandidate, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT payload FROM fact_candidates WHERE project_id = ? ORDER BY position ASC"), projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	out := []model.ResearchFactCandidate{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		var c model.ResearchFactCandidate
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, fmt.Errorf("failed to decode candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}
	return out, nil
}

// RecordStageRun implements ProjectStore. Empty id and zero time are filled in.
func (s *SQLStore) RecordStageRun(ctx context.Context, run StageRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if err := s.ensureProject(ctx, s.db, run.ProjectID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO stage_runs (id, project_id, run_id, stage, outcome, model, prompt_tokens, completion_tokens,
			latency_ms, cost_usd, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), run.ID, run.ProjectID, run.RunID, string(run.Stage), run.Outcome, run.Model, run.PromptTokens,
		run.CompletionTokens, nullFloat64(run.LatencyMs), nullFloat64(run.CostUSD), run.DurationMs, run.Error,
		run.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record stage run: %w", err)
	}
	return nil
}

// ListStageRuns implements ProjectStore.
func (s *SQLStore) ListStageRuns(ctx context.Context, projectID string) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, project_id, run_id, stage, outcome, model, prompt_tokens, completion_tokens,
			latency_ms, cost_usd, duration_ms, error, created_at
		FROM stage_runs
		WHERE project_id = ?
		ORDER BY created_at ASC, id ASC
	`), projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage runs: %w", err)
	}
	defer rows.Close()

	out := []StageRun{}
	for rows.Next() {
		var (
			r               StageRun
			stage           string
			latency, cost   sql.NullFloat64
			createdAtMillis int64
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.RunID, &stage, &r.Outcome, &r.Model, &r.PromptTokens,
			&r.CompletionTokens, &latency, &cost, &r.DurationMs, &r.Error, &createdAtMillis); err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}
		r.Stage = model.BookStage(stage)
		if latency.Valid {
			r.LatencyMs = &latency.Float64
		}
		if cost.Valid {
			r.CostUSD = &cost.Float64
		}
		r.CreatedAt = time.UnixMilli(createdAtMillis).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage runs: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullRaw(v json.RawMessage) sql.NullString {
	if len(v) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(v), Valid: true}
}

// Verify SQLStore implements ProjectStore
var _ ProjectStore = (*SQLStore)(nil)
