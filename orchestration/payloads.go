package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
	"github.com/richinex/bookforge/stages"
	"github.com/richinex/bookforge/storage"
)

const (
	untitledManuscript = "Untitled Manuscript"
	untitledSubchapter = "Untitled Subchapter"
	writingCycleCount  = 3
)

// StageOptions carries caller input that is not stored with the project.
type StageOptions struct {
	Provider *llm.ProviderOverride `json:"provider,omitempty"`
	// ResearchGuidelines replaces the project's research guidelines when set.
	ResearchGuidelines string `json:"research_guidelines,omitempty"`
	PersonaPreferences string `json:"persona_preferences,omitempty"`
	// Preferences steer the creative guidelines stage.
	Preferences string `json:"preferences,omitempty"`
	// Notes are passed to the writing stage.
	Notes string `json:"notes,omitempty"`
}

// projectState is everything stored for a project that stage payloads read.
type projectState struct {
	project    *storage.Project
	structure  *storage.Artifact
	candidates []model.ResearchFactCandidate
	facts      *model.FactMappingBatch
	emotional  *model.EmotionalLayerBatch
	guidelines *model.CreativeGuidelineBatch
	writing    *storage.Artifact

	book *model.BookStructure
}

func loadProjectState(ctx context.Context, store storage.ProjectStore, project *storage.Project) (*projectState, error) {
	st := &projectState{project: project}
	var err error

	if st.structure, err = latest(ctx, store, project.ID, model.StageStructure); err != nil {
		return nil, err
	}
	if st.structure != nil {
		st.book = &model.BookStructure{}
		if err := json.Unmarshal(st.structure.Payload, st.book); err != nil {
			return nil, eris.Wrap(err, "decode stored structure")
		}
	}
	if st.candidates, err = store.ListCandidates(ctx, project.ID); err != nil {
		return nil, eris.Wrap(err, "load fact candidates")
	}
	if err := loadBatch(ctx, store, project.ID, model.StageFactMapping, &st.facts); err != nil {
		return nil, err
	}
	if err := loadBatch(ctx, store, project.ID, model.StageEmotional, &st.emotional); err != nil {
		return nil, err
	}
	if err := loadBatch(ctx, store, project.ID, model.StageGuidelines, &st.guidelines); err != nil {
		return nil, err
	}
	if st.writing, err = latest(ctx, store, project.ID, model.StageWriting); err != nil {
		return nil, err
	}
	return st, nil
}

// latest returns the newest artifact for a stage, or nil when there is none.
func latest(ctx context.Context, store storage.ProjectStore, projectID string, stage model.BookStage) (*storage.Artifact, error) {
	a, err := store.LatestArtifact(ctx, projectID, stage)
	if errors.Is(err, storage.ErrArtifactNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "load %s artifact", stage)
	}
	return a, nil
}

func loadBatch[T any](ctx context.Context, store storage.ProjectStore, projectID string, stage model.BookStage, dst **T) error {
	a, err := latest(ctx, store, projectID, stage)
	if err != nil || a == nil {
		return err
	}
	v := new(T)
	if err := json.Unmarshal(a.Payload, v); err != nil {
		return eris.Wrapf(err, "decode stored %s artifact", stage)
	}
	*dst = v
	return nil
}

// availability reports which prerequisites are in place.
func (st *projectState) availability() Availability {
	return Availability{
		PrereqIdeaSummary:     strings.TrimSpace(st.project.IdeaSummary) != "",
		PrereqStructure:       st.book != nil,
		PrereqFactCandidates:  len(st.candidates) > 0,
		PrereqFacts:           st.facts != nil && len(st.facts.Facts) > 0,
		PrereqEmotionalLayer:  st.emotional != nil,
		PrereqPersona:         st.emotional != nil && strings.TrimSpace(st.emotional.Persona.Name) != "",
		PrereqGuidelines:      st.guidelines != nil && len(st.guidelines.Guidelines) > 0,
		PrereqGuidelinesReady: st.guidelines != nil && st.guidelines.Readiness == model.ReadinessReady,
	}
}

// synopsis prefers the structure summary, then the structure's own synopsis,
// then the project idea.
func (st *projectState) synopsis() string {
	if st.structure != nil && strings.TrimSpace(st.structure.Output) != "" {
		return st.structure.Output
	}
	if st.book != nil && st.book.Synopsis != nil && strings.TrimSpace(*st.book.Synopsis) != "" {
		return *st.book.Synopsis
	}
	return st.project.IdeaSummary
}

func (st *projectState) title() string {
	for _, t := range []string{st.project.Title, st.project.IdeaSummary} {
		if strings.TrimSpace(t) != "" {
			return t
		}
	}
	return untitledManuscript
}

func (st *projectState) researchGuidelines(opts StageOptions) string {
	if strings.TrimSpace(opts.ResearchGuidelines) != "" {
		return opts.ResearchGuidelines
	}
	return st.project.ResearchGuidelines
}

// summariseStructure renders chapters and subchapters as an indented outline.
func summariseStructure(s *model.BookStructure) string {
	if s == nil {
		return ""
	}
	var lines []string
	for _, ch := range s.Chapters {
		lines = append(lines, fmt.Sprintf("Chapter %d: %s — %s", ch.Order, ch.Title, ch.Summary))
		for _, sub := range ch.Subchapters {
			lines = append(lines, fmt.Sprintf("  - %d.%d %s: %s", ch.Order, sub.Order, sub.Title, sub.Summary))
		}
	}
	return strings.Join(lines, "\n")
}

// factView is the slice of a mapped fact that downstream stages see.
type factView struct {
	ID           string         `json:"id"`
	SubchapterID string         `json:"subchapter_id"`
	Summary      string         `json:"summary"`
	Detail       string         `json:"detail"`
	Citation     model.Citation `json:"citation"`
}

func (st *projectState) factViews() []factView {
	if st.facts == nil {
		return []factView{}
	}
	out := make([]factView, len(st.facts.Facts))
	for i, f := range st.facts.Facts {
		out[i] = factView{ID: f.ID, SubchapterID: f.SubchapterID, Summary: f.Summary, Detail: f.Detail, Citation: f.Citation}
	}
	return out
}

// subchapterMeta lists the structure's subchapters for the writing stage.
func subchapterMeta(s *model.BookStructure) []stages.SubchapterMeta {
	var out []stages.SubchapterMeta
	for _, ch := range s.Chapters {
		chapterTitle := ch.Title
		for _, sub := range ch.Subchapters {
			title := sub.Title
			if strings.TrimSpace(title) == "" {
				title = untitledSubchapter
			}
			label := fmt.Sprintf("%d.%d", ch.Order, sub.Order)
			out = append(out, stages.SubchapterMeta{
				ID:           sub.ID,
				Title:        title,
				ChapterTitle: &chapterTitle,
				OrderLabel:   &label,
				ChapterOrder: ch.Order,
				SubOrder:     sub.Order,
			})
		}
	}
	return out
}

// buildPrompt assembles the stage prompt from stored state. Prerequisites
// have already been checked.
func (st *projectState) buildPrompt(stage model.BookStage, opts StageOptions) (string, error) {
	enc := &rawEncoder{}
	switch stage {
	case model.StageStructure:
		return st.project.IdeaSummary, nil

	case model.StageTitle:
		return st.synopsis(), nil

	case model.StageResearch:
		return marshalPrompt(enc, stages.ResearchInput{
			Synopsis:         st.synopsis(),
			StructureSummary: summariseStructure(st.book),
			Guidelines:       st.researchGuidelines(opts),
		})

	case model.StageFactMapping:
		return marshalPrompt(enc, stages.FactMappingInput{
			Structure:  *st.book,
			Candidates: st.candidates,
		})

	case model.StageEmotional:
		in := stages.EmotionalInput{
			ProjectID:          st.project.ID,
			Title:              st.title(),
			Synopsis:           st.synopsis(),
			IdeaSummary:        st.project.IdeaSummary,
			PersonaPreferences: opts.PersonaPreferences,
			ResearchGuidelines: st.researchGuidelines(opts),
			Structure:          enc.raw(st.book),
			Facts:              enc.raw(st.factViews()),
		}
		if st.emotional != nil {
			in.Persona = enc.raw(st.emotional.Persona)
		}
		return marshalPrompt(enc, in)

	case model.StageGuidelines:
		current := 0
		if st.guidelines != nil {
			current = st.guidelines.Version
		}
		target := current + 1
		return marshalPrompt(enc, stages.GuidelinesInput{
			ProjectID:      st.project.ID,
			Title:          st.title(),
			Synopsis:       st.synopsis(),
			Preferences:    opts.Preferences,
			Persona:        enc.raw(st.emotional.Persona),
			Structure:      enc.raw(st.book),
			Facts:          enc.raw(st.factViews()),
			EmotionalLayer: enc.raw(st.emotional.Entries),
			TargetVersion:  &target,
		})

	case model.StageWriting:
		in := stages.WritingInput{
			ProjectID:   st.project.ID,
			Title:       st.title(),
			Synopsis:    st.synopsis(),
			Guidelines:  enc.raw(st.guidelines.Guidelines),
			Facts:       enc.raw(st.factViews()),
			Structure:   enc.raw(st.book),
			Subchapters: subchapterMeta(st.book),
			Notes:       opts.Notes,
			CycleCount:  writingCycleCount,
		}
		if st.emotional != nil {
			in.EmotionalLayer = enc.raw(st.emotional.Entries)
			in.Persona = enc.raw(st.emotional.Persona)
		}
		if st.writing != nil {
			in.PreviousBatch = st.writing.Payload
		}
		return marshalPrompt(enc, in)

	default:
		return st.project.IdeaSummary, nil
	}
}

func marshalPrompt(enc *rawEncoder, v any) (string, error) {
	if enc.err != nil {
		return "", enc.err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "encode stage payload")
	}
	return string(data), nil
}

// rawEncoder encodes payload fields, keeping the first error.
type rawEncoder struct{ err error }

func (e *rawEncoder) raw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		if e.err == nil {
			e.err = eris.Wrap(err, "encode stage payload field")
		}
		return nil
	}
	return data
}
