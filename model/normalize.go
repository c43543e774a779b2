package model

import (
	"time"

	"github.com/google/uuid"
)

// Normalize methods fill engine-owned defaults that models routinely omit:
// identifiers, timestamps, enum defaults and empty lists. They never overwrite
// values that are present.

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func stamp(t *time.Time, now time.Time) {
	if t.IsZero() {
		*t = now
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (ct *Citation) normalize() {
	if ct.SourceType == "" {
		ct.SourceType = SourceOther
	}
}

// Normalize fills structure defaults.
func (s *BookStructure) Normalize() {
	now := time.Now().UTC()
	newID(&s.ProjectID)
	if s.Version == 0 {
		s.Version = 1
	}
	stamp(&s.CreatedAt, now)
	stamp(&s.UpdatedAt, now)
	s.Chapters = nonNil(s.Chapters)
	for i := range s.Chapters {
		ch := &s.Chapters[i]
		newID(&ch.ID)
		ch.Subchapters = nonNil(ch.Subchapters)
		for j := range ch.Subchapters {
			sub := &ch.Subchapters[j]
			newID(&sub.ID)
			sub.LearningObjectives = nonNil(sub.LearningObjectives)
			sub.RelatedSubchapters = nonNil(sub.RelatedSubchapters)
		}
	}
}

// Normalize fills title batch defaults.
func (b *TitleBatch) Normalize() {
	b.Options = nonNil(b.Options)
}

// Normalize fills research prompt defaults.
func (b *ResearchPromptBatch) Normalize() {
	b.Prompts = nonNil(b.Prompts)
	for i := range b.Prompts {
		b.Prompts[i].FocusSubchapters = nonNil(b.Prompts[i].FocusSubchapters)
		b.Prompts[i].DesiredSources = nonNil(b.Prompts[i].DesiredSources)
	}
}

// Normalize fills candidate defaults.
func (f *ResearchFactCandidate) Normalize() {
	newID(&f.ID)
	stamp(&f.ExtractedAt, time.Now().UTC())
	f.Citation.normalize()
}

// Normalize fills fact mapping defaults. Facts without a project inherit the batch's.
func (b *FactMappingBatch) Normalize() {
	now := time.Now().UTC()
	newID(&b.ProjectID)
	stamp(&b.CreatedAt, now)
	b.Facts = nonNil(b.Facts)
	b.Coverage = nonNil(b.Coverage)
	for i := range b.Facts {
		f := &b.Facts[i]
		newID(&f.ID)
		if f.ProjectID == "" {
			f.ProjectID = b.ProjectID
		}
		stamp(&f.CreatedAt, now)
		f.Citation.normalize()
	}
}

// Normalize fills emotional layer defaults.
func (b *EmotionalLayerBatch) Normalize() {
	now := time.Now().UTC()
	newID(&b.ProjectID)
	stamp(&b.CreatedAt, now)
	stamp(&b.Persona.CreatedAt, now)
	b.Persona.SignatureThemes = nonNil(b.Persona.SignatureThemes)
	b.Persona.GuidingPrinciples = nonNil(b.Persona.GuidingPrinciples)
	b.Entries = nonNil(b.Entries)
	for i := range b.Entries {
		e := &b.Entries[i]
		newID(&e.ID)
		if e.ProjectID == "" {
			e.ProjectID = b.ProjectID
		}
		if e.CreatedBy == "" {
			e.CreatedBy = RoleEmotionImplementer
		}
		stamp(&e.CreatedAt, now)
	}
}

// Normalize fills guideline defaults.
func (b *CreativeGuidelineBatch) Normalize() {
	now := time.Now().UTC()
	newID(&b.ProjectID)
	if b.Version == 0 {
		b.Version = 1
	}
	if b.Readiness == "" {
		b.Readiness = ReadinessDraft
	}
	stamp(&b.CreatedAt, now)
	b.Guidelines = nonNil(b.Guidelines)
	for i := range b.Guidelines {
		g := &b.Guidelines[i]
		newID(&g.ID)
		if g.ProjectID == "" {
			g.ProjectID = b.ProjectID
		}
		if g.Status == "" {
			g.Status = GuidelineFinal
		}
		if g.CreatedBy == "" {
			g.CreatedBy = RoleCreativeAssistant
		}
		if g.Version == 0 {
			g.Version = 1
		}
		stamp(&g.CreatedAt, now)
		stamp(&g.UpdatedAt, now)
		g.Objectives = nonNil(g.Objectives)
		g.MustIncludeFacts = nonNil(g.MustIncludeFacts)
		g.EmotionalBeats = nonNil(g.EmotionalBeats)
		g.StructuralReminders = nonNil(g.StructuralReminders)
		g.SuccessMetrics = nonNil(g.SuccessMetrics)
		g.Risks = nonNil(g.Risks)
		for j := range g.MustIncludeFacts {
			g.MustIncludeFacts[j].Citation.normalize()
		}
	}
}

// Normalize fills writer batch defaults.
func (b *WriterDraftBatch) Normalize() {
	b.Subchapters = nonNil(b.Subchapters)
}

// Normalize fills critique batch defaults; feedback severity defaults to warning.
func (b *CritiqueBatch) Normalize() {
	b.Subchapters = nonNil(b.Subchapters)
	for i := range b.Subchapters {
		b.Subchapters[i].Feedback = nonNil(b.Subchapters[i].Feedback)
		for j := range b.Subchapters[i].Feedback {
			if b.Subchapters[i].Feedback[j].Severity == "" {
				b.Subchapters[i].Feedback[j].Severity = SeverityWarning
			}
		}
	}
}

// Normalize fills implementation batch defaults.
func (b *ImplementationBatch) Normalize() {
	b.Subchapters = nonNil(b.Subchapters)
	for i := range b.Subchapters {
		b.Subchapters[i].ResolvedFeedback = nonNil(b.Subchapters[i].ResolvedFeedback)
	}
}
