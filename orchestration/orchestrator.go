package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/internal/telemetry"
	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
	"github.com/richinex/bookforge/stages"
)

// ProviderFactory builds a provider for a resolved configuration.
type ProviderFactory func(cfg config.ProviderConfig) (llm.Provider, error)

// ConfigResolver turns an effective override into a provider configuration.
type ConfigResolver func(override *llm.ProviderOverride) (config.ProviderConfig, error)

// Orchestrator executes stage requests in order, failing fast.
type Orchestrator struct {
	engine      *stages.Engine
	logger      *zap.Logger
	recorder    *telemetry.Recorder
	newProvider ProviderFactory
	resolve     ConfigResolver
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithProviderFactory replaces llm.NewProvider.
func WithProviderFactory(f ProviderFactory) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.newProvider = f
		}
	}
}

// WithConfigResolver replaces llm.ResolveConfig.
func WithConfigResolver(r ConfigResolver) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.resolve = r
		}
	}
}

// New creates an orchestrator over engine.
func New(engine *stages.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:      engine,
		logger:      zap.NewNop(),
		newProvider: llm.NewProvider,
		resolve:     llm.ResolveConfig,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Recorder returns the telemetry recorder, which may be nil.
func (o *Orchestrator) Recorder() *telemetry.Recorder {
	return o.recorder
}

// DefaultRequests converts the default stage sequence into stage requests.
func DefaultRequests() []StageRequest {
	seq := model.DefaultStageSequence()
	out := make([]StageRequest, len(seq))
	for i, s := range seq {
		out[i] = StageRequest{Stage: s.Stage, Prompt: s.Prompt}
	}
	return out
}

// Run executes every stage of req in order. The first failing stage aborts the
// run and its error is returned; no partial response is produced.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	runID := uuid.NewString()
	requests := req.Stages
	if len(requests) == 0 {
		requests = DefaultRequests()
	}

	providerName := "unknown"
	if req.Provider != nil {
		if req.Provider.Name != "" {
			providerName = req.Provider.Name
		}
		if cfg, err := o.resolve(req.Provider); err == nil {
			providerName = cfg.Name
		}
	}

	logger := o.logger.With(zap.String("run_id", runID))
	if req.ProjectID != "" {
		logger = logger.With(zap.String("project_id", req.ProjectID))
	}
	logger.Info("starting orchestrator run", zap.Int("stage_count", len(requests)))

	results := make([]StageRunResult, 0, len(requests))
	for _, sr := range requests {
		result, name, err := o.runStage(ctx, logger, req.Provider, sr)
		if name != "" {
			providerName = name
		}
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: stage %s", sr.Stage)
		}
		results = append(results, *result)
	}

	logger.Info("orchestrator run finished", zap.Int("stage_count", len(results)))
	return &RunResponse{
		RunID:        runID,
		ProviderName: providerName,
		Stages:       results,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// runStage resolves the provider for one stage and dispatches it. The returned
// name is the resolved provider name, empty when resolution failed.
func (o *Orchestrator) runStage(ctx context.Context, logger *zap.Logger, run *llm.ProviderOverride, sr StageRequest) (*StageRunResult, string, error) {
	stage := string(sr.Stage)
	start := time.Now()
	outcome := OutcomeSuccess
	defer func() {
		o.recorder.ObserveStage(stage, outcome, time.Since(start))
	}()

	effective := llm.MergeOverrides(sr.ProviderOverride, run)
	cfg, err := o.resolve(effective)
	if err != nil {
		outcome = OutcomeError
		logger.Error("stage execution failed", zap.String("stage", stage), zap.Error(err))
		return nil, "", eris.Wrap(err, "resolve provider")
	}

	logger = logger.With(zap.String("stage", stage), zap.String("provider", cfg.Name))
	logger.Info("executing stage", zap.Int("prompt_length", len(sr.Prompt)))

	result, err := o.dispatch(ctx, cfg, effective, sr)
	if err != nil {
		outcome = OutcomeError
		logger.Error("stage execution failed", zap.Error(err))
		return nil, cfg.Name, err
	}

	result.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	result.Outcome = OutcomeSuccess
	logger.Info("stage completed",
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Int("output_chars", len(result.Output)),
	)
	return result, cfg.Name, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, cfg config.ProviderConfig, effective *llm.ProviderOverride, sr StageRequest) (*StageRunResult, error) {
	provider, err := o.newProvider(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "create provider")
	}
	target := stages.Target{Config: cfg, Provider: provider, Override: effective}
	out := &dedicated{stage: sr.Stage, model: cfg.Name}

	switch sr.Stage {
	case model.StageStructure:
		res, err := o.engine.Structure(ctx, target, sr.Prompt, "")
		if err != nil {
			return nil, err
		}
		out.output = res.Summary
		out.receivedAt = res.Structure.UpdatedAt
		out.structured = res.Structure
		out.extras = map[string]any{"critiques": res.Critiques}
		out.usage, out.cost = res.Usage, res.CostUSD

	case model.StageTitle:
		res, err := o.engine.Titles(ctx, target, stages.TitleInput{Synopsis: sr.Prompt})
		if err != nil {
			return nil, err
		}
		titles := make([]string, len(res.Batch.Options))
		for i, opt := range res.Batch.Options {
			titles[i] = opt.Title
		}
		out.output = strings.Join(titles, "; ")
		out.receivedAt = time.Now().UTC()
		out.structured = res.Batch
		out.extras = map[string]any{"critique": res.Critique}
		out.usage, out.cost = res.Usage, res.CostUSD

	case model.StageResearch:
		res, err := o.engine.Research(ctx, target, stages.ParseResearchInput(sr.Prompt))
		if err != nil {
			return nil, err
		}
		texts := make([]string, len(res.Batch.Prompts))
		for i, p := range res.Batch.Prompts {
			texts[i] = p.PromptText
		}
		out.output = strings.Join(texts, "\n\n")
		out.receivedAt = time.Now().UTC()
		out.structured = res.Batch
		out.extras = map[string]any{"critique": res.Critique}
		out.usage, out.cost = res.Usage, res.CostUSD

	case model.StageFactMapping:
		in, err := decodePayload[stages.FactMappingInput](sr.Prompt, "Fact mapping")
		if err != nil {
			return nil, err
		}
		res, err := o.engine.MapFacts(ctx, target, in)
		if err != nil {
			return nil, err
		}
		out.output = fmt.Sprintf("Mapped %d facts", len(res.Batch.Facts))
		out.receivedAt = res.Batch.CreatedAt
		out.structured = res.Batch
		out.extras = map[string]any{
			"critique":   res.Critique,
			"coverage":   res.Batch.Coverage,
			"fact_count": len(res.Batch.Facts),
		}
		out.usage, out.cost = res.Usage, res.CostUSD

	case model.StageEmotional:
		in, err := decodePayload[stages.EmotionalInput](sr.Prompt, "Emotional")
		if err != nil {
			return nil, err
		}
		res, err := o.engine.EmotionalLayer(ctx, target, in)
		if err != nil {
			return nil, err
		}
		out.output = fmt.Sprintf("Persona crafted with %d emotional entries", len(res.Batch.Entries))
		out.receivedAt = res.Batch.CreatedAt
		out.structured = res.Batch
		out.extras = map[string]any{"critique": res.Critique}
		out.usage, out.cost = res.Usage, res.CostUSD

	case model.StageGuidelines:
		in, err := decodePayload[stages.GuidelinesInput](sr.Prompt, "Guidelines")
		if err != nil {
			return nil, err
		}
		res, err := o.engine.Guidelines(ctx, target, in)
		if err != nil {
			return nil, err
		}
		out.output = fmt.Sprintf("Guidelines prepared for %d subchapters", len(res.Batch.Guidelines))
		out.receivedAt = res.Batch.CreatedAt
		out.structured = res.Batch
		out.extras = map[string]any{"critique": res.Critique}
		out.usage, out.cost = res.Usage, res.CostUSD

	case model.StageWriting:
		in, err := decodePayload[stages.WritingInput](sr.Prompt, "Writing")
		if err != nil {
			return nil, err
		}
		res, err := o.engine.Write(ctx, target, in)
		if err != nil {
			return nil, err
		}
		out.output = fmt.Sprintf("Writing cycles completed for %d subchapters", len(res.Batch.Subchapters))
		out.receivedAt = res.Batch.UpdatedAt
		out.structured = res.Batch
		out.extras = map[string]any{"critique": res.Critique}
		out.usage, out.cost = res.Usage, res.CostUSD

	default:
		resp, err := o.engine.Single(ctx, target, sr.Stage, sr.Prompt)
		if err != nil {
			return nil, err
		}
		o.recorder.ObserveUsage(string(sr.Stage), cfg.Name, telemetry.Usage{
			Calls:            1,
			CachedCalls:      boolCount(resp.Cached),
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			LatencyMs:        resp.LatencyMs,
			CostUSD:          resp.CostUSD,
		})
		latency := resp.LatencyMs
		return &StageRunResult{
			Stage:            sr.Stage,
			Output:           resp.Text,
			Model:            resp.Model,
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			LatencyMs:        &latency,
			CostUSD:          resp.CostUSD,
			ReceivedAt:       resp.ReceivedAt,
		}, nil
	}

	o.recorder.ObserveUsage(string(sr.Stage), cfg.Name, telemetry.Usage{
		Calls:            out.usage.Calls,
		CachedCalls:      out.usage.CachedCalls,
		PromptTokens:     out.usage.PromptTokens,
		CompletionTokens: out.usage.CompletionTokens,
		LatencyMs:        out.usage.LatencyMs,
		CostUSD:          out.cost,
	})
	return out.result()
}

// dedicated collects the parts of a stage result produced by an agent loop.
type dedicated struct {
	stage      model.BookStage
	model      string
	output     string
	receivedAt time.Time
	structured any
	extras     map[string]any
	usage      stages.Usage
	cost       *float64
}

func (d *dedicated) result() (*StageRunResult, error) {
	structured, err := json.Marshal(d.structured)
	if err != nil {
		return nil, eris.Wrap(err, "encode structured output")
	}
	var latency *float64
	if d.usage.Calls > 0 {
		l := d.usage.LatencyMs
		latency = &l
	}
	return &StageRunResult{
		Stage:            d.stage,
		Output:           d.output,
		Model:            d.model,
		PromptTokens:     d.usage.PromptTokens,
		CompletionTokens: d.usage.CompletionTokens,
		LatencyMs:        latency,
		CostUSD:          d.cost,
		ReceivedAt:       d.receivedAt,
		StructuredOutput: structured,
		Extras:           d.extras,
	}, nil
}

// decodePayload parses a JSON stage payload. label names the stage in errors.
func decodePayload[T any](prompt, label string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(prompt), &v); err != nil {
		return v, eris.Wrapf(err, "%s stage requires JSON payload", label)
	}
	return v, nil
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
