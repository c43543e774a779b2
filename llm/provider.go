// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific parameter support (JSON schema, reasoning, thinking)
// - Cost estimation from reported token usage
//
// Providers never retry. Retry policy belongs to the caller.

package llm

import (
	"context"
	"time"

	"github.com/richinex/bookforge/config"
)

// Capabilities describes what a provider backend supports.
type Capabilities struct {
	SupportsJSONMode         bool
	MaxOutputTokens          *int
	SupportsToolCalls        bool
	SupportsReasoningEffort  bool
	SupportsVerbosity        bool
	SupportsThinking         bool
	SupportsThoughtSummaries bool
}

// Request is a single generation request.
//
// Nil sampling parameters fall back to the provider's configured settings.
// Metadata is an observability bag; the response cache records trimming details there.
type Request struct {
	Prompt          string
	SystemPrompt    string
	JSONSchema      map[string]any
	Temperature     *float64
	MaxOutputTokens *int
	TopP            *float64
	ReasoningEffort *string
	Verbosity       *string
	ThinkingBudget  *int
	IncludeThoughts *bool
	Metadata        map[string]any
}

// Response is the normalized result of one provider call.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	// CostUSD is nil when pricing for the provider/model is unknown.
	CostUSD    *float64
	LatencyMs  float64
	ReceivedAt time.Time
	// Cached is true when the response was served by the response cache.
	Cached bool
}

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent generate capability.
type Provider interface {
	// Name returns the provider name (for logging and pricing).
	Name() string

	// Model returns the model being used.
	Model() string

	// Capabilities reports backend feature support.
	Capabilities() Capabilities

	// Generate issues one request. It must not mutate req.
	// Returns *ProviderResponseError when the backend yields no usable content.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// params is a request merged with provider settings.
type params struct {
	temperature     float64
	maxOutputTokens *int
	topP            *float64
	reasoningEffort *string
	verbosity       *string
	thinkingBudget  *int
	includeThoughts bool
}

func resolveParams(req *Request, s config.ProviderSettings) params {
	p := params{
		temperature:     s.Temperature,
		maxOutputTokens: s.MaxOutputTokens,
		topP:            s.TopP,
		reasoningEffort: s.ReasoningEffort,
		verbosity:       s.Verbosity,
		thinkingBudget:  s.ThinkingBudget,
		includeThoughts: s.IncludeThoughts,
	}
	if req.Temperature != nil {
		p.temperature = *req.Temperature
	}
	if req.MaxOutputTokens != nil {
		p.maxOutputTokens = req.MaxOutputTokens
	}
	if req.TopP != nil {
		p.topP = req.TopP
	}
	if req.ReasoningEffort != nil {
		p.reasoningEffort = req.ReasoningEffort
	}
	if req.Verbosity != nil {
		p.verbosity = req.Verbosity
	}
	if req.ThinkingBudget != nil {
		p.thinkingBudget = req.ThinkingBudget
	}
	if req.IncludeThoughts != nil {
		p.includeThoughts = *req.IncludeThoughts
	}
	return p
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
