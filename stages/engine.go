// Package stages implements the per-stage agent loops of the book pipeline.
//
// Every stage except writing runs proposer → critic → implementer, where the
// proposer and implementer return schema-bound JSON and the critic returns
// plain text. Structure runs three critique/improve rounds and a summary.
// Writing runs a writer pass followed by up to three critic/implementer cycles.
//
// Information Hiding:
// - Prompt wording and rendering
// - Per-call sampling defaults
// - JSON extraction, normalisation and validation of agent output
// - Cost and token tallying across calls
package stages

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/bookforge/cache"
	"github.com/richinex/bookforge/config"
	jsonutil "github.com/richinex/bookforge/internal/json"
	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
)

// Target is the provider a stage runs against and the effective override
// (stage override merged onto the run override) used for sampling parameters.
type Target struct {
	Config   config.ProviderConfig
	Provider llm.Provider
	Override *llm.ProviderOverride
}

// Usage sums provider activity across the calls of one stage.
type Usage struct {
	Calls            int     `json:"calls"`
	CachedCalls      int     `json:"cached_calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	LatencyMs        float64 `json:"latency_ms"`
}

// Engine runs stage loops through the response cache.
type Engine struct {
	cache  *cache.StageCache
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine. Every provider call goes through c.
func NewEngine(c *cache.StageCache, opts ...Option) *Engine {
	e := &Engine{cache: c, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// call describes one agent invocation.
type call struct {
	prompt      string
	system      string
	schema      map[string]any
	temperature *float64
	agent       string
}

// session tallies the calls made for one stage run.
type session struct {
	engine *Engine
	target Target
	stage  model.BookStage

	costTotal   float64
	costSamples int
	usage       Usage
}

func (e *Engine) session(target Target, stage model.BookStage) *session {
	return &session{engine: e, target: target, stage: stage}
}

func (s *session) generate(ctx context.Context, c call) (*llm.Response, error) {
	req := &llm.Request{
		Prompt:       c.prompt,
		SystemPrompt: c.system,
		JSONSchema:   c.schema,
		Metadata:     map[string]any{"stage": string(s.stage)},
	}
	if c.agent != "" {
		req.Metadata["agent"] = c.agent
	}
	s.target.Override.Apply(req, c.temperature)

	resp, err := s.engine.cache.Generate(ctx, s.target.Config, s.target.Provider, req, string(s.stage))
	if err != nil {
		return nil, err
	}
	s.record(resp)
	s.engine.logger.Debug("agent call completed",
		zap.String("stage", string(s.stage)),
		zap.String("agent", c.agent),
		zap.Bool("cached", resp.Cached),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens),
	)
	return resp, nil
}

func (s *session) record(resp *llm.Response) {
	if resp.CostUSD != nil {
		s.costTotal += *resp.CostUSD
		s.costSamples++
	}
	s.usage.Calls++
	if resp.Cached {
		s.usage.CachedCalls++
	}
	s.usage.PromptTokens += resp.PromptTokens
	s.usage.CompletionTokens += resp.CompletionTokens
	s.usage.LatencyMs += resp.LatencyMs
}

// cost is nil when no call reported a cost.
func (s *session) cost() *float64 {
	if s.costSamples == 0 {
		return nil
	}
	total := s.costTotal
	return &total
}

// batch is implemented by every model-facing output type.
type batch interface {
	Normalize()
	Validate() error
}

// decodeBatch extracts, normalises and validates agent JSON. Failures are
// reported as provider response errors naming the agent output.
func decodeBatch[T any, P interface {
	*T
	batch
}](text, label string) (*T, error) {
	var out T
	if err := jsonutil.DecodeInto(text, &out); err != nil {
		return nil, llm.NewProviderResponseError(label+" response was not valid JSON", err)
	}
	p := P(&out)
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, llm.NewProviderResponseError(label+" response failed validation", err)
	}
	return &out, nil
}

// render substitutes {key} placeholders.
func render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// encode renders v as compact JSON for embedding in prompts.
func encode(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSpace(b.String())
}

// rawOr returns raw as text, or fallback when it is absent or null.
func rawOr(raw json.RawMessage, fallback string) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return fallback
	}
	return trimmed
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func optional(text string) *string {
	if text == "" {
		return nil
	}
	return &text
}

func temp(v float64) *float64 { return &v }
