// Package model provides the book domain types shared across packages.
package model

import (
	"fmt"
	"strings"
)

// BookStage names one step of the book pipeline.
type BookStage string

const (
	StageIdea        BookStage = "IDEA"
	StageStructure   BookStage = "STRUCTURE"
	StageTitle       BookStage = "TITLE"
	StageResearch    BookStage = "RESEARCH"
	StageFactMapping BookStage = "FACT_MAPPING"
	StageEmotional   BookStage = "EMOTIONAL"
	StageGuidelines  BookStage = "GUIDELINES"
	StageWriting     BookStage = "WRITING"
	StageComplete    BookStage = "COMPLETE"
)

// AllStages lists every stage in pipeline order.
var AllStages = []BookStage{
	StageIdea, StageStructure, StageTitle, StageResearch, StageFactMapping,
	StageEmotional, StageGuidelines, StageWriting, StageComplete,
}

// ParseBookStage parses a stage name (case-insensitive; dashes accepted for underscores).
func ParseBookStage(s string) (BookStage, error) {
	normalized := BookStage(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	for _, stage := range AllStages {
		if stage == normalized {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage: %s", s)
}

// Valid reports whether s is a known stage.
func (s BookStage) Valid() bool {
	_, err := ParseBookStage(string(s))
	return err == nil
}

// AgentRole identifies which agent produced an artifact.
type AgentRole string

const (
	RoleIdeaGenerator AgentRole = "idea_generator"

	RoleStructureArchitect  AgentRole = "structure_architect"
	RoleStructureCriticI    AgentRole = "structure_critic_i"
	RoleStructureEditorI    AgentRole = "structure_editor_i"
	RoleStructureCriticII   AgentRole = "structure_critic_ii"
	RoleStructureEditorII   AgentRole = "structure_editor_ii"
	RoleStructureCriticIII  AgentRole = "structure_critic_iii"
	RoleStructureEditorIII  AgentRole = "structure_editor_iii"
	RoleTitler              AgentRole = "titler"
	RolePromptArchitect     AgentRole = "prompt_architect"
	RolePromptCritic        AgentRole = "prompt_critic"
	RolePromptFinalizer     AgentRole = "prompt_finalizer"
	RoleResearchIngestor    AgentRole = "research_ingestor"
	RoleFactSelector        AgentRole = "fact_selector"
	RoleFactCritic          AgentRole = "fact_critic"
	RoleFactImplementer     AgentRole = "fact_implementer"
	RoleEmotionAuthor       AgentRole = "emotion_author"
	RoleEmotionCritic       AgentRole = "emotion_critic"
	RoleEmotionImplementer  AgentRole = "emotion_implementer"
	RoleCreativeAssistant   AgentRole = "creative_director_assistant"
	RoleCreativeCritic      AgentRole = "creative_director_critic"
	RoleCreativeFinal       AgentRole = "creative_director_final"
	RoleWriterInitial       AgentRole = "writer_initial"
	RoleWritingCriticI      AgentRole = "writing_critic_i"
	RoleWritingImplementI   AgentRole = "writing_implementation_i"
	RoleWritingCriticII     AgentRole = "writing_critic_ii"
	RoleWritingImplementII  AgentRole = "writing_implementation_ii"
	RoleWritingCriticIII    AgentRole = "writing_critic_iii"
	RoleWritingImplementIII AgentRole = "writing_implementation_iii"
)

var agentRoles = []AgentRole{
	RoleIdeaGenerator,
	RoleStructureArchitect, RoleStructureCriticI, RoleStructureEditorI,
	RoleStructureCriticII, RoleStructureEditorII, RoleStructureCriticIII, RoleStructureEditorIII,
	RoleTitler,
	RolePromptArchitect, RolePromptCritic, RolePromptFinalizer,
	RoleResearchIngestor, RoleFactSelector, RoleFactCritic, RoleFactImplementer,
	RoleEmotionAuthor, RoleEmotionCritic, RoleEmotionImplementer,
	RoleCreativeAssistant, RoleCreativeCritic, RoleCreativeFinal,
	RoleWriterInitial,
	RoleWritingCriticI, RoleWritingImplementI,
	RoleWritingCriticII, RoleWritingImplementII,
	RoleWritingCriticIII, RoleWritingImplementIII,
}

// Valid reports whether r is a known role.
func (r AgentRole) Valid() bool {
	for _, role := range agentRoles {
		if role == r {
			return true
		}
	}
	return false
}

// Severity grades a critic feedback item.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityError
}

// SourceType classifies a research citation.
type SourceType string

const (
	SourceAcademicJournal  SourceType = "academic_journal"
	SourceBook             SourceType = "book"
	SourceGovernmentReport SourceType = "government_report"
	SourceNewsArticle      SourceType = "news_article"
	SourceExpertInterview  SourceType = "expert_interview"
	SourceDataset          SourceType = "dataset"
	SourceOther            SourceType = "other"
)

var sourceTypes = []SourceType{
	SourceAcademicJournal, SourceBook, SourceGovernmentReport, SourceNewsArticle,
	SourceExpertInterview, SourceDataset, SourceOther,
}

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	for _, t := range sourceTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Guideline packet statuses.
const (
	GuidelineDraft       = "draft"
	GuidelineFinal       = "final"
	GuidelineNeedsReview = "needs_review"
)

// Batch readiness values.
const (
	ReadinessDraft = "draft"
	ReadinessReady = "ready"
)

// Subchapter draft statuses.
const (
	DraftStatusDraft    = "draft"
	DraftStatusInReview = "in_review"
	DraftStatusReady    = "ready"
)
