package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/richinex/bookforge/cache"
	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/llm"
)

const (
	testProjectID = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	subA          = "11111111-1111-4111-8111-111111111111"
	subB          = "22222222-2222-4222-8222-222222222222"
	subC          = "33333333-3333-4333-8333-333333333333"
)

// reply produces the text for one scripted call.
type reply func(req *llm.Request) string

func text(s string) reply { return func(*llm.Request) string { return s } }

// scriptedProvider answers calls in order and records every request. Calls
// report costs[i] when a cost script is set, else cost.
type scriptedProvider struct {
	replies  []reply
	cost     *float64
	costs    []*float64
	requests []llm.Request
}

func newScripted(replies ...reply) *scriptedProvider {
	cost := 0.01
	return &scriptedProvider{replies: replies, cost: &cost}
}

func (p *scriptedProvider) Name() string                   { return "scripted" }
func (p *scriptedProvider) Model() string                  { return "scripted-1" }
func (p *scriptedProvider) Capabilities() llm.Capabilities { return llm.Capabilities{SupportsJSONMode: true} }

func (p *scriptedProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	i := len(p.requests)
	p.requests = append(p.requests, *req)
	if i >= len(p.replies) {
		return nil, fmt.Errorf("unexpected call %d", i+1)
	}
	cost := p.cost
	if p.costs != nil {
		cost = nil
		if i < len(p.costs) {
			cost = p.costs[i]
		}
	}
	return &llm.Response{
		Text:             p.replies[i](req),
		Model:            "scripted-1",
		PromptTokens:     10,
		CompletionTokens: 5,
		CostUSD:          cost,
		LatencyMs:        2,
		ReceivedAt:       time.Now().UTC(),
	}, nil
}

func newTestEngine() *Engine {
	return NewEngine(cache.New(config.CacheSettings{ContextTokenLimit: 100000}))
}

func testTarget(p llm.Provider) Target {
	cfg := config.MockProviderConfig()
	cfg.Name = "scripted"
	return Target{Config: cfg, Provider: p}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func structureReply(t *testing.T, synopsis string) string {
	t.Helper()
	return mustJSON(t, map[string]any{
		"project_id": testProjectID,
		"version":    1,
		"synopsis":   synopsis,
		"chapters": []map[string]any{
			{"title": "Origins", "summary": "How it started", "order": 1, "subchapters": []map[string]any{
				{"id": subA, "title": "Spark", "summary": "The first idea", "order": 1},
				{"id": subB, "title": "Doubt", "summary": "Early setbacks", "order": 2},
			}},
			{"title": "Growth", "summary": "Scaling up", "order": 2, "subchapters": []map[string]any{
				{"id": subC, "title": "Team", "summary": "Hiring", "order": 1},
			}},
		},
	})
}

// payloadLine returns the JSON that follows label on its own prompt line.
func payloadLine(t *testing.T, prompt, label string) string {
	t.Helper()
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, label); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("prompt has no line starting with %q", label)
	return ""
}

// openFeedbackIDs reads the feedback ids offered to an implementer, per subchapter.
func openFeedbackIDs(t *testing.T, prompt string) map[string][]string {
	t.Helper()
	var outstanding struct {
		Subchapters []struct {
			SubchapterID string `json:"subchapter_id"`
			Feedback     []struct {
				ID string `json:"id"`
			} `json:"feedback"`
		} `json:"subchapters"`
	}
	require.NoError(t, json.Unmarshal([]byte(payloadLine(t, prompt, "Open feedback with ids (JSON):")), &outstanding))
	out := make(map[string][]string)
	for _, s := range outstanding.Subchapters {
		for _, f := range s.Feedback {
			out[s.SubchapterID] = append(out[s.SubchapterID], f.ID)
		}
	}
	return out
}
