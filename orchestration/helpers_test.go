package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/richinex/bookforge/cache"
	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/internal/telemetry"
	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
	"github.com/richinex/bookforge/stages"
)

const (
	subA = "11111111-1111-4111-8111-111111111111"
	subB = "22222222-2222-4222-8222-222222222222"
	subC = "33333333-3333-4333-8333-333333333333"
)

// stageProvider answers by stage: schema-bound calls get a valid batch for
// the stage, plain calls get "Notes for <STAGE>".
type stageProvider struct {
	mu       sync.Mutex
	cost     *float64
	broken   map[model.BookStage]bool
	requests []llm.Request
}

func newStageProvider() *stageProvider {
	cost := 0.01
	return &stageProvider{cost: &cost, broken: map[model.BookStage]bool{}}
}

func (p *stageProvider) Name() string                   { return "staged" }
func (p *stageProvider) Model() string                  { return "staged-1" }
func (p *stageProvider) Capabilities() llm.Capabilities { return llm.Capabilities{SupportsJSONMode: true} }

func (p *stageProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, *req)
	p.mu.Unlock()

	stage := model.BookStage(fmt.Sprint(req.Metadata["stage"]))
	agent := fmt.Sprint(req.Metadata["agent"])
	text := "Notes for " + string(stage)
	if req.JSONSchema != nil {
		text = stageReply(stage, agent)
		if p.broken[stage] {
			text = "I would rather write prose."
		}
	}
	return &llm.Response{
		Text:             text,
		Model:            "staged-1",
		PromptTokens:     10,
		CompletionTokens: 5,
		CostUSD:          p.cost,
		LatencyMs:        2,
		ReceivedAt:       time.Now().UTC(),
	}, nil
}

// stageRequests returns the requests made for one stage.
func (p *stageProvider) stageRequests(stage model.BookStage) []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []llm.Request
	for _, r := range p.requests {
		if r.Metadata["stage"] == string(stage) {
			out = append(out, r)
		}
	}
	return out
}

func stageReply(stage model.BookStage, agent string) string {
	switch stage {
	case model.StageStructure:
		return structureJSON
	case model.StageTitle:
		return `{"options":[{"title":"Tidal Power","rationale":"Clear promise"},{"title":"Moon Engines","rationale":"Evocative hook"}]}`
	case model.StageResearch:
		return `{"prompts":[{"focus_summary":"Early mills","prompt_text":"Research tide mills"},{"focus_summary":"Modern barrages","prompt_text":"Research barrages"}]}`
	case model.StageFactMapping:
		return fmt.Sprintf(`{"facts":[{"subchapter_id":%q,"summary":"Tide mills date to 600 AD","detail":"Irish monastic mills","citation":{"source_title":"Upload","source_type":"book"}}]}`, subA)
	case model.StageEmotional:
		return fmt.Sprintf(`{"persona":{"name":"Ada","background":"Coastal engineer","voice":"Warm"},"entries":[{"subchapter_id":%q,"story_hook":"A miller at dawn"}]}`, subA)
	case model.StageGuidelines:
		return fmt.Sprintf(`{"guidelines":[{"subchapter_id":%q,"objectives":["Explain tide mills"]},{"subchapter_id":%q,"objectives":["Trace barrages"]}]}`, subA, subB)
	case model.StageWriting:
		if agent == "writer" {
			return fmt.Sprintf(`{"subchapters":[{"subchapter_id":%q,"content":"Mills turned."},{"subchapter_id":%q,"content":"Barrages rose."},{"subchapter_id":%q,"content":"Lagoons wait."}],"overview":"First pass"}`, subA, subB, subC)
		}
		return `{"subchapters":[]}`
	}
	return `{}`
}

var structureJSON = fmt.Sprintf(`{"synopsis":"Tides as power","chapters":[
	{"title":"Mills","summary":"Early tide mills","order":1,"subchapters":[
		{"id":%q,"title":"Monastic mills","summary":"Irish mills","order":1},
		{"id":%q,"title":"Barrages","summary":"Rance and after","order":2}]},
	{"title":"Futures","summary":"What comes next","order":2,"subchapters":[
		{"id":%q,"title":"Lagoons","summary":"Tidal lagoons","order":1}]}]}`, subA, subB, subC)

// namedResolver resolves to the mock configuration renamed after the override.
func namedResolver(o *llm.ProviderOverride) (config.ProviderConfig, error) {
	cfg := config.MockProviderConfig()
	cfg.Name = "staged"
	if o != nil && o.Name != "" {
		cfg.Name = o.Name
	}
	return cfg, nil
}

func newTestOrchestrator(p llm.Provider, rec *telemetry.Recorder) *Orchestrator {
	engine := stages.NewEngine(cache.New(config.CacheSettings{ContextTokenLimit: 100000}))
	return New(engine,
		WithRecorder(rec),
		WithConfigResolver(namedResolver),
		WithProviderFactory(func(config.ProviderConfig) (llm.Provider, error) { return p, nil }),
	)
}

func testStructure(t *testing.T) model.BookStructure {
	t.Helper()
	var s model.BookStructure
	require.NoError(t, json.Unmarshal([]byte(structureJSON), &s))
	s.Normalize()
	return s
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func stageOutcomes(snap telemetry.Snapshot) map[string]string {
	out := map[string]string{}
	for _, s := range snap.Stages {
		var keys []string
		for k := range s.Outcomes {
			keys = append(keys, k)
		}
		out[s.Stage] = strings.Join(keys, ",")
	}
	return out
}
