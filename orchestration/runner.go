package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
	"github.com/richinex/bookforge/storage"
)

// ErrPrerequisiteNotReady marks a stage skipped because upstream artifacts are missing.
var ErrPrerequisiteNotReady = errors.New("stage prerequisites not ready")

// PrerequisiteError lists what a skipped stage was missing.
type PrerequisiteError struct {
	Stage   model.BookStage
	Missing []ValidationError
}

func (e *PrerequisiteError) Error() string {
	msgs := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		msgs[i] = m.Message
	}
	return fmt.Sprintf("%s stage not ready: %s", e.Stage, strings.Join(msgs, " "))
}

// Is matches ErrPrerequisiteNotReady.
func (e *PrerequisiteError) Is(target error) bool {
	return target == ErrPrerequisiteNotReady
}

// Kind classifies errors for callers that map them to their own status codes.
type Kind string

const (
	KindBudgetExhausted Kind = "budget_exhausted"
	KindProviderError   Kind = "provider_error"
	KindNotReady        Kind = "not_ready"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

// ErrorKind classifies err. A nil error has no kind.
func ErrorKind(err error) Kind {
	var validation *model.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBudgetExhausted):
		return KindBudgetExhausted
	case errors.Is(err, ErrPrerequisiteNotReady):
		return KindNotReady
	case llm.IsProviderResponseError(err), errors.As(err, &validation):
		return KindProviderError
	case errors.Is(err, storage.ErrProjectNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// StageOutcome is the persisted result of a project stage run.
type StageOutcome struct {
	RunID     string            `json:"run_id"`
	Result    StageRunResult    `json:"result"`
	Artifact  *storage.Artifact `json:"artifact"`
	CostCents int64             `json:"cost_cents"`
}

// ProjectRunner runs single stages for a stored project: it gates on budget
// and prerequisites, builds the payload from stored artifacts, and persists
// the result.
type ProjectRunner struct {
	store        storage.ProjectStore
	orchestrator *Orchestrator
	contracts    *Coordinator
	logger       *zap.Logger
}

// RunnerOption configures a ProjectRunner.
type RunnerOption func(*ProjectRunner)

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *ProjectRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithContracts replaces the default stage contracts.
func WithContracts(c *Coordinator) RunnerOption {
	return func(r *ProjectRunner) {
		if c != nil {
			r.contracts = c
		}
	}
}

// NewProjectRunner creates a runner over store and orchestrator.
func NewProjectRunner(store storage.ProjectStore, orchestrator *Orchestrator, opts ...RunnerOption) *ProjectRunner {
	r := &ProjectRunner{
		store:        store,
		orchestrator: orchestrator,
		contracts:    DefaultCoordinator(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunStage executes one stage for a project.
//
// Errors: ErrBudgetExhausted when the spend limit is reached, a
// *PrerequisiteError when upstream artifacts are missing, otherwise the
// pipeline error. Skipped and failed runs are recorded as stage runs.
func (r *ProjectRunner) RunStage(ctx context.Context, projectID string, stage model.BookStage, opts StageOptions) (*StageOutcome, error) {
	logger := r.logger.With(zap.String("project_id", projectID), zap.String("stage", string(stage)))

	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "load project")
	}
	budget, err := r.store.Budget(ctx, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "load budget")
	}
	if err := CheckBudget(BudgetState(budget)); err != nil {
		logger.Warn("stage rejected by budget",
			zap.Int64("total_cost_cents", budget.TotalCostCents),
			zap.Int64p("spend_limit_cents", budget.SpendLimitCents),
		)
		return nil, err
	}

	state, err := loadProjectState(ctx, r.store, project)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if check := r.contracts.Validate(stage, state.availability()); !check.Valid {
		perr := &PrerequisiteError{Stage: stage, Missing: check.Errors}
		logger.Info("stage skipped", zap.String("reason", perr.Error()))
		r.record(ctx, logger, storage.StageRun{
			ProjectID: projectID,
			RunID:     runID,
			Stage:     stage,
			Outcome:   OutcomeSkipped,
			Error:     perr.Error(),
		})
		return nil, perr
	}

	prompt, err := state.buildPrompt(stage, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := r.orchestrator.Run(ctx, RunRequest{
		ProjectID: projectID,
		Provider:  opts.Provider,
		Stages:    []StageRequest{{Stage: stage, Prompt: prompt}},
	})
	if err != nil {
		r.record(ctx, logger, storage.StageRun{
			ProjectID:  projectID,
			RunID:      runID,
			Stage:      stage,
			Outcome:    OutcomeError,
			DurationMs: float64(time.Since(start).Microseconds()) / 1000,
			Error:      err.Error(),
		})
		return nil, err
	}
	result := resp.Stages[0]

	var extras json.RawMessage
	if len(result.Extras) > 0 {
		if extras, err = json.Marshal(result.Extras); err != nil {
			return nil, eris.Wrap(err, "encode stage extras")
		}
	}
	artifact, err := r.store.SaveArtifact(ctx, storage.Artifact{
		ProjectID: projectID,
		Stage:     stage,
		Output:    result.Output,
		Payload:   result.StructuredOutput,
		Extras:    extras,
	})
	if err != nil {
		return nil, eris.Wrap(err, "save stage artifact")
	}

	cents, err := ApplyCost(ctx, r.store, projectID, result.CostUSD)
	if err != nil {
		return nil, err
	}
	r.record(ctx, logger, storage.StageRun{
		ProjectID:        projectID,
		RunID:            resp.RunID,
		Stage:            stage,
		Outcome:          OutcomeSuccess,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		LatencyMs:        result.LatencyMs,
		CostUSD:          result.CostUSD,
		DurationMs:       result.DurationMs,
	})

	logger.Info("stage artifact stored",
		zap.Int("version", artifact.Version),
		zap.Int64("cost_cents", cents),
	)
	return &StageOutcome{
		RunID:     resp.RunID,
		Result:    result,
		Artifact:  artifact,
		CostCents: cents,
	}, nil
}

// record stores a stage run. Failures are logged, not returned, so they never
// mask the stage's own outcome.
func (r *ProjectRunner) record(ctx context.Context, logger *zap.Logger, run storage.StageRun) {
	if err := r.store.RecordStageRun(ctx, run); err != nil {
		logger.Warn("failed to record stage run", zap.Error(err))
	}
}
