package storage

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/bookforge/model"
)

type artifactKey struct {
	projectID string
	stage     model.BookStage
}

// InMemoryStore implements ProjectStore with maps guarded by an RWMutex.
// Data is lost when process terminates.
type InMemoryStore struct {
	mu         sync.RWMutex
	projects   map[string]*Project
	artifacts  map[artifactKey][]Artifact
	candidates map[string][]model.ResearchFactCandidate
	runs       map[string][]StageRun
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		projects:   make(map[string]*Project),
		artifacts:  make(map[artifactKey][]Artifact),
		candidates: make(map[string][]model.ResearchFactCandidate),
		runs:       make(map[string][]StageRun),
	}
}

// CreateProject implements ProjectStore. An empty id is generated.
func (s *InMemoryStore) CreateProject(ctx context.Context, p Project) (*Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.TotalCostCents = 0
	p.SpendLimitCents = copyInt64(p.SpendLimitCents)

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p
	s.projects[p.ID] = &stored
	return &p, nil
}

// GetProject implements ProjectStore.
func (s *InMemoryStore) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	// Return a copy to avoid external mutations
	out := *p
	out.SpendLimitCents = copyInt64(p.SpendLimitCents)
	return &out, nil
}

// SetSpendLimit implements ProjectStore.
func (s *InMemoryStore) SetSpendLimit(ctx context.Context, id string, cents *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	p.SpendLimitCents = copyInt64(cents)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Budget implements ProjectStore.
func (s *InMemoryStore) Budget(ctx context.Context, id string) (Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Budget{}, ErrProjectNotFound
	}
	return Budget{SpendLimitCents: copyInt64(p.SpendLimitCents), TotalCostCents: p.TotalCostCents}, nil
}

// IncrementCost implements ProjectStore.
func (s *InMemoryStore) IncrementCost(ctx context.Context, id string, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	p.TotalCostCents += cents
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveArtifact implements ProjectStore.
func (s *InMemoryStore) SaveArtifact(ctx context.Context, a Artifact) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[a.ProjectID]; !ok {
		return nil, ErrProjectNotFound
	}
	k := artifactKey{a.ProjectID, a.Stage}
	a.Version = len(s.artifacts[k]) + 1
	a.CreatedAt = time.Now().UTC()
	if len(a.Payload) == 0 {
		a.Payload = json.RawMessage("null")
	}
	a.Payload = slices.Clone(a.Payload)
	a.Extras = slices.Clone(a.Extras)
	s.artifacts[k] = append(s.artifacts[k], a)

	out := a
	return &out, nil
}

// LatestArtifact implements ProjectStore.
func (s *InMemoryStore) LatestArtifact(ctx context.Context, projectID string, stage model.BookStage) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.artifacts[artifactKey{projectID, stage}]
	if len(versions) == 0 {
		return nil, ErrArtifactNotFound
	}
	out := versions[len(versions)-1]
	out.Payload = slices.Clone(out.Payload)
	out.Extras = slices.Clone(out.Extras)
	return &out, nil
}

// SaveCandidates implements ProjectStore.
func (s *InMemoryStore) SaveCandidates(ctx context.Context, projectID string, candidates []model.ResearchFactCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return ErrProjectNotFound
	}
	existing := s.candidates[projectID]
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[c.ID] = struct{}{}
	}
	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		existing = append(existing, c)
	}
	s.candidates[projectID] = existing
	return nil
}

// ListCandidates implements ProjectStore.
func (s *InMemoryStore) ListCandidates(ctx context.Context, projectID string) ([]model.ResearchFactCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ResearchFactCandidate, len(s.candidates[projectID]))
	copy(out, s.candidates[projectID])
	return out, nil
}

// RecordStageRun implements ProjectStore. Empty id and zero time are filled in.
func (s *InMemoryStore) RecordStageRun(ctx context.Context, run StageRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.LatencyMs = copyFloat64(run.LatencyMs)
	run.CostUSD = copyFloat64(run.CostUSD)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[run.ProjectID]; !ok {
		return ErrProjectNotFound
	}
	s.runs[run.ProjectID] = append(s.runs[run.ProjectID], run)
	return nil
}

// ListStageRuns implements ProjectStore.
func (s *InMemoryStore) ListStageRuns(ctx context.Context, projectID string) ([]StageRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StageRun, len(s.runs[projectID]))
	copy(out, s.runs[projectID])
	slices.SortStableFunc(out, func(a, b StageRun) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Close implements ProjectStore. No-op for memory storage.
func (s *InMemoryStore) Close() error {
	return nil
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat64(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Verify InMemoryStore implements ProjectStore
var _ ProjectStore = (*InMemoryStore)(nil)
