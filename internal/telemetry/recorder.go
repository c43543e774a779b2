// Package telemetry keeps in-process counters for stage runs and provider usage.
//
// Information Hiding:
// - Counter keys and aggregation
// - Locking for concurrent observers
package telemetry

import (
	"sort"
	"sync"
	"time"
)

// StageStats aggregates every observed run of one stage.
type StageStats struct {
	Stage         string         `json:"stage"`
	Runs          int            `json:"runs"`
	Outcomes      map[string]int `json:"outcomes"`
	TotalDuration time.Duration  `json:"total_duration"`
	MaxDuration   time.Duration  `json:"max_duration"`
}

// ProviderStats aggregates provider usage for one stage/provider pair.
type ProviderStats struct {
	Stage            string  `json:"stage"`
	Provider         string  `json:"provider"`
	Calls            int     `json:"calls"`
	CachedCalls      int     `json:"cached_calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	LatencyMs        float64 `json:"latency_ms"`
	CostUSD          float64 `json:"cost_usd"`
}

// Usage is one observation of provider activity.
type Usage struct {
	Calls            int
	CachedCalls      int
	PromptTokens     int
	CompletionTokens int
	LatencyMs        float64
	CostUSD          *float64
}

// Snapshot is a point-in-time copy of the recorder, sorted by stage then provider.
type Snapshot struct {
	Stages    []StageStats    `json:"stages"`
	Providers []ProviderStats `json:"providers"`
}

type providerKey struct{ stage, provider string }

// Recorder is safe for concurrent use. A nil *Recorder ignores observations.
type Recorder struct {
	mu        sync.Mutex
	stages    map[string]*StageStats
	providers map[providerKey]*ProviderStats
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		stages:    make(map[string]*StageStats),
		providers: make(map[providerKey]*ProviderStats),
	}
}

// ObserveStage records one stage execution and its outcome.
func (r *Recorder) ObserveStage(stage, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	d = max(d, 0)

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stages[stage]
	if !ok {
		s = &StageStats{Stage: stage, Outcomes: make(map[string]int)}
		r.stages[stage] = s
	}
	s.Runs++
	s.Outcomes[outcome]++
	s.TotalDuration += d
	s.MaxDuration = max(s.MaxDuration, d)
}

// ObserveUsage records provider activity. Negative values are ignored.
func (r *Recorder) ObserveUsage(stage, provider string, u Usage) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	k := providerKey{stage, provider}
	p, ok := r.providers[k]
	if !ok {
		p = &ProviderStats{Stage: stage, Provider: provider}
		r.providers[k] = p
	}
	p.Calls += max(u.Calls, 0)
	p.CachedCalls += max(u.CachedCalls, 0)
	p.PromptTokens += max(u.PromptTokens, 0)
	p.CompletionTokens += max(u.CompletionTokens, 0)
	p.LatencyMs += max(u.LatencyMs, 0)
	if u.CostUSD != nil && *u.CostUSD >= 0 {
		p.CostUSD += *u.CostUSD
	}
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{Stages: []StageStats{}, Providers: []ProviderStats{}}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := Snapshot{
		Stages:    make([]StageStats, 0, len(r.stages)),
		Providers: make([]ProviderStats, 0, len(r.providers)),
	}
	for _, s := range r.stages {
		c := *s
		c.Outcomes = make(map[string]int, len(s.Outcomes))
		for k, v := range s.Outcomes {
			c.Outcomes[k] = v
		}
		out.Stages = append(out.Stages, c)
	}
	for _, p := range r.providers {
		out.Providers = append(out.Providers, *p)
	}
	sort.Slice(out.Stages, func(i, j int) bool { return out.Stages[i].Stage < out.Stages[j].Stage })
	sort.Slice(out.Providers, func(i, j int) bool {
		if out.Providers[i].Stage != out.Providers[j].Stage {
			return out.Providers[i].Stage < out.Providers[j].Stage
		}
		return out.Providers[i].Provider < out.Providers[j].Provider
	})
	return out
}
