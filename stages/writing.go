package stages

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
)

// Writing cycle bounds.
const (
	DefaultWritingCycles = 3
	MaxWritingCycles     = 3
)

const untitledSubchapter = "Untitled Subchapter"

// SubchapterMeta identifies a subchapter to write and where it sits in the book.
type SubchapterMeta struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	ChapterTitle *string `json:"chapter_title,omitempty"`
	OrderLabel   *string `json:"order_label,omitempty"`
	ChapterOrder int     `json:"chapter_order"`
	SubOrder     int     `json:"sub_order"`
}

// WritingInput feeds the writing stage.
type WritingInput struct {
	ProjectID      string           `json:"project_id"`
	Title          string           `json:"title"`
	Synopsis       string           `json:"synopsis"`
	Guidelines     json.RawMessage  `json:"guidelines,omitempty"`
	Facts          json.RawMessage  `json:"facts,omitempty"`
	EmotionalLayer json.RawMessage  `json:"emotional_layer,omitempty"`
	Persona        json.RawMessage  `json:"persona,omitempty"`
	Structure      json.RawMessage  `json:"structure,omitempty"`
	Subchapters    []SubchapterMeta `json:"subchapters"`
	Notes          string           `json:"notes"`
	PreviousBatch  json.RawMessage  `json:"previous_batch,omitempty"`
	CycleCount     int              `json:"cycle_count"`
}

// Cycles returns the number of critic/implementer cycles to run.
func (in WritingInput) Cycles() int {
	n := in.CycleCount
	if n == 0 {
		n = DefaultWritingCycles
	}
	return max(1, min(MaxWritingCycles, n))
}

// WritingResult is the outcome of the writing stage.
type WritingResult struct {
	Batch *model.WritingBatch
	// Critique joins the critic summaries of every cycle.
	Critique *string
	CostUSD  *float64
	Usage    Usage
}

type writingCycle struct {
	criticRole     model.AgentRole
	criticLabel    string
	implementRole  model.AgentRole
	implementLabel string
}

var writingCycles = [MaxWritingCycles]writingCycle{
	{model.RoleWritingCriticI, "W2: Critical Reviewer I", model.RoleWritingImplementI, "W3: Implementation I"},
	{model.RoleWritingCriticII, "W4: Critical Reviewer II", model.RoleWritingImplementII, "W5: Implementation II"},
	{model.RoleWritingCriticIII, "W6: Critical Reviewer III", model.RoleWritingImplementIII, "W7: Implementation III"},
}

// draftTrack is the running state of one subchapter during the loop.
type draftTrack struct {
	meta        SubchapterMeta
	iterations  []model.DraftIteration
	feedback    []*model.DraftFeedbackItem
	draft       string
	wordCount   *int
	lastUpdated time.Time
}

func (t *draftTrack) open() []model.DraftFeedbackItem {
	out := []model.DraftFeedbackItem{}
	for _, f := range t.feedback {
		if !f.Addressed {
			out = append(out, *f)
		}
	}
	return out
}

func (t *draftTrack) snapshot() []model.DraftFeedbackItem {
	out := make([]model.DraftFeedbackItem, len(t.feedback))
	for i, f := range t.feedback {
		out[i] = *f
	}
	return out
}

func (t *draftTrack) add(it model.DraftIteration) {
	t.iterations = append(t.iterations, it)
	t.lastUpdated = it.CreatedAt
}

// writingRun holds the state of one writing stage execution.
type writingRun struct {
	session   *session
	projectID string
	order     []string
	tracks    map[string]*draftTrack
	shared    map[string]string
}

// Write runs the writer pass and the critic/implementer cycles, then folds the
// iterations into per-subchapter draft states.
func (e *Engine) Write(ctx context.Context, target Target, in WritingInput) (*WritingResult, error) {
	startedAt := time.Now().UTC()
	projectID := in.ProjectID
	if _, err := uuid.Parse(projectID); err != nil {
		projectID = uuid.NewString()
	}

	run := &writingRun{
		session:   e.session(target, model.StageWriting),
		projectID: projectID,
		tracks:    make(map[string]*draftTrack),
		shared: map[string]string{
			"guidelines_json":     rawOr(in.Guidelines, "[]"),
			"facts_json":          rawOr(in.Facts, "[]"),
			"emotional_json":      rawOr(in.EmotionalLayer, "[]"),
			"persona_json":        rawOr(in.Persona, "{}"),
			"previous_batch_json": rawOr(in.PreviousBatch, "{}"),
			"notes":               orDefault(in.Notes, "None provided."),
		},
	}
	for _, m := range in.Subchapters {
		if m.ID == "" {
			continue
		}
		if m.Title == "" {
			m.Title = untitledSubchapter
		}
		if t, ok := run.tracks[m.ID]; ok {
			t.meta = m
			continue
		}
		run.order = append(run.order, m.ID)
		run.tracks[m.ID] = &draftTrack{meta: m}
	}

	var summaries, criticSummaries []string

	overview, err := run.writeInitial(ctx, in)
	if err != nil {
		return nil, err
	}
	summaries = appendTrimmed(summaries, overview)

	for i := range in.Cycles() {
		// Both agents of a cycle see the drafts as they stood before the critic ran.
		drafts := encode(run.draftsPayload())
		critique, err := run.critique(ctx, i, drafts)
		if err != nil {
			return nil, err
		}
		criticSummaries = appendTrimmed(criticSummaries, critique)

		summary, err := run.implement(ctx, i, drafts)
		if err != nil {
			return nil, err
		}
		summaries = appendTrimmed(summaries, summary)
	}

	batch := run.assemble(startedAt, in.Cycles())
	batch.Summary = optional(strings.Join(summaries, "\n\n"))
	if err := batch.Validate(); err != nil {
		return nil, llm.NewProviderResponseError("Writing batch failed validation", err)
	}

	return &WritingResult{
		Batch:    batch,
		Critique: optional(strings.Join(criticSummaries, "\n\n")),
		CostUSD:  run.session.cost(),
		Usage:    run.session.usage,
	}, nil
}

func (r *writingRun) generate(ctx context.Context, prompt string, schema map[string]any, temperature float64, agent string) (*llm.Response, error) {
	return r.session.generate(ctx, call{
		prompt:      prompt,
		system:      writingSystemPrompt,
		schema:      schema,
		temperature: temp(temperature),
		agent:       agent,
	})
}

func (r *writingRun) vars(extra map[string]string) map[string]string {
	out := make(map[string]string, len(r.shared)+len(extra))
	for k, v := range r.shared {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (r *writingRun) newIteration(subchapterID string, cycle int, role model.AgentRole, content string) model.DraftIteration {
	return model.DraftIteration{
		ID:           uuid.NewString(),
		ProjectID:    r.projectID,
		SubchapterID: subchapterID,
		Cycle:        cycle,
		Role:         role,
		Content:      strings.TrimSpace(content),
		Feedback:     []model.DraftFeedbackItem{},
		CreatedAt:    time.Now().UTC(),
	}
}

// writeInitial runs W1 and returns the writer's overview.
func (r *writingRun) writeInitial(ctx context.Context, in WritingInput) (string, error) {
	prompt := render(writingInitialPrompt, r.vars(map[string]string{
		"project_id":           r.projectID,
		"title":                orDefault(in.Title, defaultManuscriptTitle),
		"synopsis":             orDefault(in.Synopsis, "Synopsis not available."),
		"structure_json":       rawOr(in.Structure, "{}"),
		"subchapter_meta_json": encode(nonNilMeta(in.Subchapters)),
	}))
	resp, err := r.generate(ctx, prompt, model.WriterDraftBatchSchema(), 0.7, "writer")
	if err != nil {
		return "", err
	}
	drafts, err := decodeBatch[model.WriterDraftBatch](resp.Text, "Writer")
	if err != nil {
		return "", err
	}

	covered := make(map[string]bool, len(drafts.Subchapters))
	for _, entry := range drafts.Subchapters {
		covered[entry.SubchapterID] = true
	}
	var missing []string
	for _, id := range r.order {
		if !covered[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", llm.NewProviderResponseError(
			"Writing stage omitted drafts for subchapters: "+strings.Join(missing, ", "), nil)
	}

	for _, entry := range drafts.Subchapters {
		track, ok := r.tracks[entry.SubchapterID]
		if !ok {
			continue
		}
		it := r.newIteration(entry.SubchapterID, 0, model.RoleWriterInitial, entry.Content)
		it.Summary = entry.Summary
		it.WordCount = entry.WordCount
		track.add(it)
		track.draft = entry.Content
		track.wordCount = entry.WordCount
	}

	if drafts.Overview == nil {
		return "", nil
	}
	return *drafts.Overview, nil
}

func (r *writingRun) draftsPayload() []map[string]any {
	out := make([]map[string]any, 0, len(r.order))
	for _, id := range r.order {
		t := r.tracks[id]
		out = append(out, map[string]any{
			"subchapter_id": id,
			"title":         t.meta.Title,
			"chapter_title": t.meta.ChapterTitle,
			"order_label":   t.meta.OrderLabel,
			"current_draft": t.draft,
			"word_count":    t.wordCount,
			"open_feedback": t.open(),
		})
	}
	return out
}

func (r *writingRun) outstandingPayload() map[string]any {
	subs := make([]map[string]any, 0, len(r.order))
	for _, id := range r.order {
		t := r.tracks[id]
		subs = append(subs, map[string]any{
			"subchapter_id": id,
			"title":         t.meta.Title,
			"feedback":      t.open(),
		})
	}
	return map[string]any{"subchapters": subs}
}

// critique runs the critic of cycle i and returns its summary. New feedback
// items receive fresh ids and are recorded on the critic iteration.
func (r *writingRun) critique(ctx context.Context, i int, drafts string) (string, error) {
	cycle := writingCycles[i]
	prompt := render(writingCriticPrompt, r.vars(map[string]string{
		"critic_label":     cycle.criticLabel,
		"cycle_label":      strconv.Itoa(i + 1),
		"drafts_json":      drafts,
		"outstanding_json": encode(r.outstandingPayload()),
	}))
	resp, err := r.generate(ctx, prompt, model.CritiqueBatchSchema(), 0.2, "critic")
	if err != nil {
		return "", err
	}
	critiques, err := decodeBatch[model.CritiqueBatch](resp.Text, "Critic")
	if err != nil {
		return "", err
	}

	for _, entry := range critiques.Subchapters {
		track, ok := r.tracks[entry.SubchapterID]
		if !ok {
			continue
		}
		it := r.newIteration(entry.SubchapterID, i, cycle.criticRole, entry.Overview)
		for _, fb := range entry.Feedback {
			item := &model.DraftFeedbackItem{
				ID:        uuid.NewString(),
				Message:   strings.TrimSpace(fb.Message),
				Severity:  fb.Severity,
				Category:  fb.Category,
				Rationale: fb.Rationale,
			}
			track.feedback = append(track.feedback, item)
			it.Feedback = append(it.Feedback, *item)
		}
		track.add(it)
	}

	if critiques.Summary == nil {
		return "", nil
	}
	return *critiques.Summary, nil
}

// implement runs the implementer of cycle i and returns its summary. Resolved
// ids mark still-open feedback of the same subchapter as addressed.
func (r *writingRun) implement(ctx context.Context, i int, drafts string) (string, error) {
	cycle := writingCycles[i]
	prompt := render(writingImplementPrompt, r.vars(map[string]string{
		"implement_label":  cycle.implementLabel,
		"cycle_label":      strconv.Itoa(i + 1),
		"drafts_json":      drafts,
		"outstanding_json": encode(r.outstandingPayload()),
	}))
	resp, err := r.generate(ctx, prompt, model.ImplementationBatchSchema(), 0.5, "implementer")
	if err != nil {
		return "", err
	}
	revisions, err := decodeBatch[model.ImplementationBatch](resp.Text, "Implementation")
	if err != nil {
		return "", err
	}

	for _, entry := range revisions.Subchapters {
		track, ok := r.tracks[entry.SubchapterID]
		if !ok {
			continue
		}
		it := r.newIteration(entry.SubchapterID, i, cycle.implementRole, entry.Content)
		it.Summary = implementationSummary(entry)
		it.WordCount = entry.WordCount
		track.draft = entry.Content
		track.wordCount = entry.WordCount

		resolved := make(map[string]bool, len(entry.ResolvedFeedback))
		for _, id := range entry.ResolvedFeedback {
			resolved[id] = true
		}
		for _, fb := range track.feedback {
			if !fb.Addressed && resolved[fb.ID] {
				fb.Addressed = true
				iterationID := it.ID
				fb.AddressedInIteration = &iterationID
			}
		}
		it.Feedback = track.snapshot()
		track.add(it)
	}

	if revisions.Summary == nil {
		return "", nil
	}
	return *revisions.Summary, nil
}

func implementationSummary(entry model.ImplementationEntry) *string {
	var summary string
	if entry.Summary != nil {
		summary = strings.TrimSpace(*entry.Summary)
	}
	if entry.Notes != nil && *entry.Notes != "" {
		notes := strings.TrimSpace(*entry.Notes)
		if summary != "" {
			summary = summary + " — Notes: " + notes
		} else {
			summary = "Notes: " + notes
		}
	}
	return optional(summary)
}

// assemble builds the final batch, ordered by chapter then subchapter.
func (r *writingRun) assemble(startedAt time.Time, cycles int) *model.WritingBatch {
	ids := append([]string(nil), r.order...)
	sort.SliceStable(ids, func(a, b int) bool {
		ma, mb := r.tracks[ids[a]].meta, r.tracks[ids[b]].meta
		if ma.ChapterOrder != mb.ChapterOrder {
			return ma.ChapterOrder < mb.ChapterOrder
		}
		return ma.SubOrder < mb.SubOrder
	})

	now := time.Now().UTC()
	states := make([]model.SubchapterDraftState, 0, len(ids))
	total := 0
	ready := true
	updatedAt := time.Time{}
	for _, id := range ids {
		t := r.tracks[id]
		outstanding := t.open()
		if t.wordCount != nil {
			total += *t.wordCount
		}

		status := model.DraftStatusReady
		if len(outstanding) > 0 {
			status = model.DraftStatusInReview
		}
		if len(t.iterations) == 0 {
			status = model.DraftStatusDraft
		}
		if status != model.DraftStatusReady {
			ready = false
		}

		state := model.SubchapterDraftState{
			SubchapterID:        id,
			Title:               t.meta.Title,
			ChapterTitle:        t.meta.ChapterTitle,
			OrderLabel:          t.meta.OrderLabel,
			Status:              status,
			Iterations:          append([]model.DraftIteration{}, t.iterations...),
			OutstandingFeedback: outstanding,
			FinalWordCount:      t.wordCount,
			LastUpdated:         now,
		}
		for _, it := range t.iterations {
			state.CurrentCycle = max(state.CurrentCycle, it.Cycle)
		}
		if n := len(t.iterations); n > 0 {
			finalID := t.iterations[n-1].ID
			state.FinalIterationID = &finalID
		}
		if !t.lastUpdated.IsZero() {
			state.LastUpdated = t.lastUpdated
			if t.lastUpdated.After(updatedAt) {
				updatedAt = t.lastUpdated
			}
		}
		states = append(states, state)
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}

	readiness := model.ReadinessDraft
	if ready {
		readiness = model.ReadinessReady
	}
	var totalWords *int
	if total > 0 {
		totalWords = &total
	}

	return &model.WritingBatch{
		ProjectID:      r.projectID,
		CycleCount:     cycles,
		Readiness:      readiness,
		Subchapters:    states,
		TotalWordCount: totalWords,
		CreatedAt:      startedAt,
		UpdatedAt:      updatedAt,
	}
}

func appendTrimmed(parts []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		return append(parts, s)
	}
	return parts
}

func nonNilMeta(m []SubchapterMeta) []SubchapterMeta {
	if m == nil {
		return []SubchapterMeta{}
	}
	return m
}
