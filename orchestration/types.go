// Package orchestration drives stage requests through the stage engines,
// gates runs on project budgets and stage prerequisites, and persists results.
//
// Information Hiding:
// - Dispatch from stage name to stage engine
// - Override merging and provider resolution per stage
// - Payload assembly from stored artifacts
// - Cost conversion and budget arithmetic
package orchestration

import (
	"encoding/json"
	"time"

	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
)

// Stage outcomes recorded in telemetry and stage run records.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// StageRequest is one stage to execute. Prompt is free text or, for the
// JSON-driven stages, a JSON payload.
type StageRequest struct {
	Stage            model.BookStage       `json:"stage" yaml:"stage"`
	Prompt           string                `json:"prompt" yaml:"prompt"`
	ProviderOverride *llm.ProviderOverride `json:"provider_override,omitempty" yaml:"provider_override,omitempty"`
}

// RunRequest is an ordered list of stages sharing a run-level provider override.
type RunRequest struct {
	ProjectID string                `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Provider  *llm.ProviderOverride `json:"provider,omitempty" yaml:"provider,omitempty"`
	Stages    []StageRequest        `json:"stages" yaml:"stages"`
}

// StageRunResult is the outcome of one executed stage.
type StageRunResult struct {
	Stage            model.BookStage `json:"stage"`
	Output           string          `json:"output"`
	Model            string          `json:"model"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	LatencyMs        *float64        `json:"latency_ms,omitempty"`
	CostUSD          *float64        `json:"cost_usd,omitempty"`
	ReceivedAt       time.Time       `json:"received_at"`
	StructuredOutput json.RawMessage `json:"structured_output,omitempty"`
	Extras           map[string]any  `json:"extras,omitempty"`
	DurationMs       float64         `json:"duration_ms"`
	Outcome          string          `json:"outcome"`
}

// RunResponse collects stage results in request order.
type RunResponse struct {
	RunID        string           `json:"run_id"`
	ProviderName string           `json:"provider_name"`
	Stages       []StageRunResult `json:"stages"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ValidationResult reports whether a stage's prerequisites are in place.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

// ValidationError names one missing or unusable prerequisite.
type ValidationError struct {
	Field     string  `json:"field"`
	ErrorType string  `json:"error_type"`
	Message   string  `json:"message"`
	Expected  *string `json:"expected,omitempty"`
	Actual    *string `json:"actual,omitempty"`
}

// NewValidationSuccess creates a successful validation result.
func NewValidationSuccess() ValidationResult {
	return ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []string{},
	}
}

// NewValidationFailure creates a failed validation result.
func NewValidationFailure(errors []ValidationError) ValidationResult {
	return ValidationResult{
		Valid:    false,
		Errors:   errors,
		Warnings: []string{},
	}
}

// WithWarnings adds warnings to the validation result.
func (v ValidationResult) WithWarnings(warnings []string) ValidationResult {
	v.Warnings = warnings
	return v
}
