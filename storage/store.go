// Package storage persists projects, stage artifacts, fact candidates and
// stage run records.
//
// Information Hiding:
// - Backend selection from a URL
// - SQL dialect differences between sqlite and Postgres
// - Artifact versioning and candidate ordering
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/richinex/bookforge/internal/sqldb"
	"github.com/richinex/bookforge/model"
)

// ErrProjectNotFound is returned when a project id is unknown.
var ErrProjectNotFound = errors.New("project not found")

// ErrArtifactNotFound is returned when a project has no artifact for a stage.
var ErrArtifactNotFound = errors.New("artifact not found")

// Project is a book being produced.
type Project struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	IdeaSummary        string    `json:"idea_summary"`
	ResearchGuidelines string    `json:"research_guidelines"`
	SpendLimitCents    *int64    `json:"spend_limit_cents,omitempty"`
	TotalCostCents     int64     `json:"total_cost_cents"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Budget is a project's spend limit and running cost.
type Budget struct {
	SpendLimitCents *int64
	TotalCostCents  int64
}

// Artifact is one stored stage output. Versions start at 1 per project and stage.
type Artifact struct {
	ProjectID string          `json:"project_id"`
	Stage     model.BookStage `json:"stage"`
	Version   int             `json:"version"`
	Output    string          `json:"output"`
	Payload   json.RawMessage `json:"payload"`
	Extras    json.RawMessage `json:"extras,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// StageRun records one attempt to run a stage for a project.
type StageRun struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id"`
	RunID            string          `json:"run_id"`
	Stage            model.BookStage `json:"stage"`
	Outcome          string          `json:"outcome"`
	Model            string          `json:"model"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	LatencyMs        *float64        `json:"latency_ms,omitempty"`
	CostUSD          *float64        `json:"cost_usd,omitempty"`
	DurationMs       float64         `json:"duration_ms"`
	Error            string          `json:"error,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ProjectStore is the persistence gateway used by the project runner and CLI.
type ProjectStore interface {
	CreateProject(ctx context.Context, p Project) (*Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	// SetSpendLimit sets or, with nil, clears the spend limit.
	SetSpendLimit(ctx context.Context, id string, cents *int64) error
	Budget(ctx context.Context, id string) (Budget, error)
	IncrementCost(ctx context.Context, id string, cents int64) error

	// SaveArtifact stores a as the next version for its project and stage.
	SaveArtifact(ctx context.Context, a Artifact) (*Artifact, error)
	LatestArtifact(ctx context.Context, projectID string, stage model.BookStage) (*Artifact, error)

	// SaveCandidates appends candidates; ids already stored are skipped.
	SaveCandidates(ctx context.Context, projectID string, candidates []model.ResearchFactCandidate) error
	// ListCandidates returns candidates in insertion order.
	ListCandidates(ctx context.Context, projectID string) ([]model.ResearchFactCandidate, error)

	RecordStageRun(ctx context.Context, run StageRun) error
	// ListStageRuns returns runs oldest first.
	ListStageRuns(ctx context.Context, projectID string) ([]StageRun, error)

	Close() error
}

// Open selects a backend from url:
//   - "" or "memory://": in-memory store
//   - "postgres://..." or "postgresql://...": Postgres
//   - "sqlite://path", ":memory:" or a bare path: sqlite
func Open(url string) (ProjectStore, error) {
	switch {
	case url == "" || url == "memory://":
		return NewInMemoryStore(), nil
	case sqldb.IsPostgresURL(url):
		return OpenPostgres(url)
	default:
		return OpenSqlite(strings.TrimPrefix(url, "sqlite://"))
	}
}
