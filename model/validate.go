package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validate methods check a value against its registered JSON schema, then
// apply the rules a schema cannot express: identifier syntax and contiguous
// ordering.

// FieldProblem is one failed rule.
type FieldProblem struct {
	Field   string
	Message string
}

// ValidationError lists every rule a value failed.
type ValidationError struct {
	Subject  string
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(parts, "; "))
}

// checker accumulates problems under a field path.
type checker struct {
	problems []FieldProblem
}

func (c *checker) add(field, format string, args ...any) {
	c.problems = append(c.problems, FieldProblem{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) uuid(field, v string) {
	if _, err := uuid.Parse(v); err != nil {
		c.add(field, "must be a UUID, got %q", v)
	}
}

func (c *checker) uuids(field string, vs []string) {
	for i, v := range vs {
		c.uuid(idx(field, i), v)
	}
}

func (c *checker) err(subject string) error {
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationError{Subject: subject, Problems: c.problems}
}

func idx(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}

// Validate checks a book structure, including contiguous ordering from 1.
func (s *BookStructure) Validate() error {
	c := &checker{}
	c.conform("BookStructure", s)
	c.uuid("project_id", s.ProjectID)
	for i, ch := range s.Chapters {
		p := idx("chapters", i)
		c.uuid(p+".id", ch.ID)
		if ch.Order != i+1 {
			c.add(p+".order", "chapter order must be contiguous starting at 1")
		}
		for j, sub := range ch.Subchapters {
			sp := idx(p+".subchapters", j)
			c.uuid(sp+".id", sub.ID)
			c.uuids(sp+".related_subchapters", sub.RelatedSubchapters)
			if sub.Order != j+1 {
				c.add(sp+".order", "subchapter order must be contiguous starting at 1 in chapter %s", ch.Title)
			}
		}
	}
	return c.err("BookStructure")
}

// Validate checks a title batch.
func (b *TitleBatch) Validate() error {
	c := &checker{}
	c.conform("TitleBatch", b)
	return c.err("TitleBatch")
}

// Validate checks a research prompt batch.
func (b *ResearchPromptBatch) Validate() error {
	c := &checker{}
	c.conform("ResearchPromptBatch", b)
	return c.err("ResearchPromptBatch")
}

// Validate checks a fact mapping batch.
func (b *FactMappingBatch) Validate() error {
	c := &checker{}
	c.conform("FactMappingBatch", b)
	c.uuid("project_id", b.ProjectID)
	for i, f := range b.Facts {
		p := idx("facts", i)
		c.uuid(p+".id", f.ID)
		c.uuid(p+".project_id", f.ProjectID)
		c.uuid(p+".subchapter_id", f.SubchapterID)
	}
	for i, cov := range b.Coverage {
		c.uuid(idx("coverage", i)+".subchapter_id", cov.SubchapterID)
	}
	return c.err("FactMappingBatch")
}

// Validate checks a fact candidate.
func (f *ResearchFactCandidate) Validate() error {
	c := &checker{}
	c.conform("ResearchFactCandidate", f)
	c.uuid("id", f.ID)
	c.uuid("project_id", f.ProjectID)
	return c.err("ResearchFactCandidate")
}

// Validate checks an emotional layer batch.
func (b *EmotionalLayerBatch) Validate() error {
	c := &checker{}
	c.conform("EmotionalLayerBatch", b)
	c.uuid("project_id", b.ProjectID)
	for i, e := range b.Entries {
		p := idx("entries", i)
		c.uuid(p+".id", e.ID)
		c.uuid(p+".project_id", e.ProjectID)
		c.uuid(p+".subchapter_id", e.SubchapterID)
	}
	return c.err("EmotionalLayerBatch")
}

// Validate checks a creative guideline batch.
func (b *CreativeGuidelineBatch) Validate() error {
	c := &checker{}
	c.conform("CreativeGuidelineBatch", b)
	c.uuid("project_id", b.ProjectID)
	for i, g := range b.Guidelines {
		p := idx("guidelines", i)
		c.uuid(p+".id", g.ID)
		c.uuid(p+".project_id", g.ProjectID)
		c.uuid(p+".subchapter_id", g.SubchapterID)
		for j, ref := range g.MustIncludeFacts {
			c.uuid(idx(p+".must_include_facts", j)+".fact_id", ref.FactID)
		}
	}
	return c.err("CreativeGuidelineBatch")
}

// Validate checks a writing batch.
func (b *WritingBatch) Validate() error {
	c := &checker{}
	c.conform("WritingBatch", b)
	c.uuid("project_id", b.ProjectID)
	for i, s := range b.Subchapters {
		p := idx("subchapters", i)
		c.uuid(p+".subchapter_id", s.SubchapterID)
		for j, it := range s.Iterations {
			ip := idx(p+".iterations", j)
			for k, f := range it.Feedback {
				c.uuid(idx(ip+".feedback", k)+".id", f.ID)
			}
		}
	}
	return c.err("WritingBatch")
}

// Validate checks a writer draft batch.
func (b *WriterDraftBatch) Validate() error {
	c := &checker{}
	c.conform("WriterDraftBatch", b)
	for i, e := range b.Subchapters {
		c.uuid(idx("subchapters", i)+".subchapter_id", e.SubchapterID)
	}
	return c.err("WriterDraftBatch")
}

// Validate checks a critique batch.
func (b *CritiqueBatch) Validate() error {
	c := &checker{}
	c.conform("CritiqueBatch", b)
	for i, e := range b.Subchapters {
		c.uuid(idx("subchapters", i)+".subchapter_id", e.SubchapterID)
	}
	return c.err("CritiqueBatch")
}

// Validate checks an implementation batch.
func (b *ImplementationBatch) Validate() error {
	c := &checker{}
	c.conform("ImplementationBatch", b)
	for i, e := range b.Subchapters {
		p := idx("subchapters", i)
		c.uuid(p+".subchapter_id", e.SubchapterID)
		c.uuids(p+".resolved_feedback", e.ResolvedFeedback)
	}
	return c.err("ImplementationBatch")
}
