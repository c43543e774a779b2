package telemetry

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRecorderStageOutcomes(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage("STRUCTURE", "success", 2*time.Second)
	r.ObserveStage("STRUCTURE", "error", time.Second)
	r.ObserveStage("TITLE", "success", -time.Second)

	snap := r.Snapshot()
	if len(snap.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "STRUCTURE" || s.Runs != 2 {
		t.Fatalf("unexpected structure stats: %+v", s)
	}
	if s.Outcomes["success"] != 1 || s.Outcomes["error"] != 1 {
		t.Errorf("unexpected outcomes: %v", s.Outcomes)
	}
	if s.TotalDuration != 3*time.Second || s.MaxDuration != 2*time.Second {
		t.Errorf("unexpected durations: total=%s max=%s", s.TotalDuration, s.MaxDuration)
	}
	if snap.Stages[1].TotalDuration != 0 {
		t.Errorf("negative duration should clamp to 0, got %s", snap.Stages[1].TotalDuration)
	}
}

func TestRecorderUsage(t *testing.T) {
	r := NewRecorder()
	cost := 0.25
	negative := -1.0
	r.ObserveUsage("WRITING", "openai", Usage{Calls: 7, PromptTokens: 100, CompletionTokens: 50, CostUSD: &cost})
	r.ObserveUsage("WRITING", "openai", Usage{Calls: 1, CachedCalls: 1, PromptTokens: -5, CostUSD: &negative})
	r.ObserveUsage("WRITING", "mock", Usage{Calls: 1})

	snap := r.Snapshot()
	if len(snap.Providers) != 2 {
		t.Fatalf("expected 2 provider rows, got %d", len(snap.Providers))
	}
	if snap.Providers[0].Provider != "mock" {
		t.Errorf("expected rows sorted by provider, got %s first", snap.Providers[0].Provider)
	}
	p := snap.Providers[1]
	if p.Calls != 8 || p.CachedCalls != 1 || p.PromptTokens != 100 || p.CompletionTokens != 50 {
		t.Errorf("unexpected usage totals: %+v", p)
	}
	if p.CostUSD != 0.25 {
		t.Errorf("expected cost 0.25, got %v", p.CostUSD)
	}
}

func TestRecorderSnapshotIsCopy(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage("IDEA", "success", time.Millisecond)
	snap := r.Snapshot()
	snap.Stages[0].Outcomes["success"] = 99

	if got := r.Snapshot().Stages[0].Outcomes["success"]; got != 1 {
		t.Errorf("snapshot mutation leaked into recorder: %d", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveStage("IDEA", "success", time.Second)
	r.ObserveUsage("IDEA", "mock", Usage{Calls: 1})
	if snap := r.Snapshot(); len(snap.Stages) != 0 || len(snap.Providers) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestRecorderConcurrentObservers(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ObserveStage("RESEARCH", "success", time.Millisecond)
			r.ObserveUsage("RESEARCH", "mock", Usage{Calls: 3})
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if snap.Stages[0].Runs != 20 || snap.Providers[0].Calls != 60 {
		t.Errorf("lost observations: runs=%d calls=%d", snap.Stages[0].Runs, snap.Providers[0].Calls)
	}
}
