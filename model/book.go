package model

import "time"

// Subchapter is the smallest structural unit of a book.
type Subchapter struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	Order              int      `json:"order"`
	LearningObjectives []string `json:"learning_objectives"`
	RelatedSubchapters []string `json:"related_subchapters"`
}

// Chapter is a top-level chapter with ordered subchapters.
type Chapter struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Summary      string       `json:"summary"`
	Order        int          `json:"order"`
	Subchapters  []Subchapter `json:"subchapters"`
	NarrativeArc *string      `json:"narrative_arc,omitempty"`
}

// BookStructure is the chapter/subchapter hierarchy of a project.
type BookStructure struct {
	ProjectID string    `json:"project_id"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Chapters  []Chapter `json:"chapters"`
	Synopsis  *string   `json:"synopsis,omitempty"`
}

// SubchapterCount returns the number of subchapters across all chapters.
func (s *BookStructure) SubchapterCount() int {
	n := 0
	for _, ch := range s.Chapters {
		n += len(ch.Subchapters)
	}
	return n
}

// Citation attributes a research fact.
type Citation struct {
	SourceTitle     string     `json:"source_title"`
	Author          *string    `json:"author,omitempty"`
	PublicationDate *string    `json:"publication_date,omitempty"`
	URL             *string    `json:"url,omitempty"`
	Page            *string    `json:"page,omitempty"`
	SourceType      SourceType `json:"source_type"`
}

// ResearchFact is a fact attached to a subchapter.
type ResearchFact struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	SubchapterID  string    `json:"subchapter_id"`
	UploadID      *int      `json:"upload_id,omitempty"`
	PromptIndex   *int      `json:"prompt_index,omitempty"`
	Summary       string    `json:"summary"`
	Detail        string    `json:"detail"`
	Citation      Citation  `json:"citation"`
	RedundancyKey *string   `json:"redundancy_key,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ResearchFactCandidate is an extracted fact that has not been mapped yet.
type ResearchFactCandidate struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	UploadID       *int      `json:"upload_id,omitempty"`
	PromptIndex    *int      `json:"prompt_index,omitempty"`
	SourceFilename *string   `json:"source_filename,omitempty"`
	Summary        string    `json:"summary"`
	Detail         string    `json:"detail"`
	Citation       Citation  `json:"citation"`
	ExtractedAt    time.Time `json:"extracted_at"`
}

// PersonaProfile grounds the emotional layer in an author voice.
type PersonaProfile struct {
	Name              string    `json:"name"`
	Background        string    `json:"background"`
	Voice             string    `json:"voice"`
	SignatureThemes   []string  `json:"signature_themes"`
	GuidingPrinciples []string  `json:"guiding_principles"`
	CreatedAt         time.Time `json:"created_at"`
}

// EmotionalLayerEntry is a narrative hook or analogy for one subchapter.
type EmotionalLayerEntry struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	SubchapterID  string    `json:"subchapter_id"`
	StoryHook     string    `json:"story_hook"`
	PersonaNote   *string   `json:"persona_note,omitempty"`
	Analogy       *string   `json:"analogy,omitempty"`
	EmotionalGoal *string   `json:"emotional_goal,omitempty"`
	CreatedBy     AgentRole `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// EmotionalLayerBatch is the output of the emotional stage.
type EmotionalLayerBatch struct {
	ProjectID string                `json:"project_id"`
	Persona   PersonaProfile        `json:"persona"`
	Entries   []EmotionalLayerEntry `json:"entries"`
	CreatedAt time.Time             `json:"created_at"`
}

// GuidelineFactReference asks the writer to use a specific fact.
type GuidelineFactReference struct {
	FactID    string   `json:"fact_id"`
	Summary   string   `json:"summary"`
	Citation  Citation `json:"citation"`
	Rationale *string  `json:"rationale,omitempty"`
}

// CreativeGuideline is the directive given to writers for one subchapter.
type CreativeGuideline struct {
	ID                  string                   `json:"id"`
	ProjectID           string                   `json:"project_id"`
	SubchapterID        string                   `json:"subchapter_id"`
	Objectives          []string                 `json:"objectives"`
	MustIncludeFacts    []GuidelineFactReference `json:"must_include_facts"`
	EmotionalBeats      []string                 `json:"emotional_beats"`
	NarrativeVoice      *string                  `json:"narrative_voice,omitempty"`
	StructuralReminders []string                 `json:"structural_reminders"`
	SuccessMetrics      []string                 `json:"success_metrics"`
	Risks               []string                 `json:"risks"`
	Status              string                   `json:"status"`
	CreatedBy           AgentRole                `json:"created_by"`
	Version             int                      `json:"version"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
	ApprovedAt          *time.Time               `json:"approved_at,omitempty"`
}

// CreativeGuidelineBatch collects guideline packets for a project.
type CreativeGuidelineBatch struct {
	ProjectID  string              `json:"project_id"`
	Version    int                 `json:"version"`
	Summary    *string             `json:"summary,omitempty"`
	Readiness  string              `json:"readiness"`
	Guidelines []CreativeGuideline `json:"guidelines"`
	CreatedAt  time.Time           `json:"created_at"`
	ApprovedAt *time.Time          `json:"approved_at,omitempty"`
}

// TitleOption is one title suggestion.
type TitleOption struct {
	Title     string `json:"title"`
	Rationale string `json:"rationale"`
}

// TitleBatch is the output of the title stage.
type TitleBatch struct {
	Options []TitleOption `json:"options"`
}

// ResearchPromptDraft is one research task for an external research tool.
type ResearchPromptDraft struct {
	FocusSummary     string   `json:"focus_summary"`
	FocusSubchapters []string `json:"focus_subchapters"`
	PromptText       string   `json:"prompt_text"`
	DesiredSources   []string `json:"desired_sources"`
	AdditionalNotes  *string  `json:"additional_notes,omitempty"`
}

// ResearchPromptBatch is the output of the research stage.
type ResearchPromptBatch struct {
	Prompts []ResearchPromptDraft `json:"prompts"`
}

// SubchapterFactCoverage counts mapped facts for one subchapter.
type SubchapterFactCoverage struct {
	SubchapterID string `json:"subchapter_id"`
	FactCount    int    `json:"fact_count"`
}

// FactMappingBatch is the output of the fact mapping stage.
type FactMappingBatch struct {
	ProjectID string                   `json:"project_id"`
	Facts     []ResearchFact           `json:"facts"`
	Coverage  []SubchapterFactCoverage `json:"coverage"`
	CreatedAt time.Time                `json:"created_at"`
}
