package model

import "time"

// DraftFeedbackItem is one actionable critic remark on a draft.
// Once Addressed is set it stays set.
type DraftFeedbackItem struct {
	ID                   string   `json:"id"`
	Message              string   `json:"message"`
	Severity             Severity `json:"severity"`
	Category             *string  `json:"category,omitempty"`
	Rationale            *string  `json:"rationale,omitempty"`
	Addressed            bool     `json:"addressed"`
	AddressedInIteration *string  `json:"addressed_in_iteration,omitempty"`
}

// DraftIteration is one step of the writing loop for a subchapter.
// Cycle is 0 for the initial writer pass.
type DraftIteration struct {
	ID           string              `json:"id"`
	ProjectID    string              `json:"project_id"`
	SubchapterID string              `json:"subchapter_id"`
	Cycle        int                 `json:"cycle"`
	Role         AgentRole           `json:"role"`
	Content      string              `json:"content"`
	Summary      *string             `json:"summary,omitempty"`
	WordCount    *int                `json:"word_count,omitempty"`
	Feedback     []DraftFeedbackItem `json:"feedback"`
	CreatedAt    time.Time           `json:"created_at"`
}

// SubchapterDraftState aggregates the writing history of one subchapter.
type SubchapterDraftState struct {
	SubchapterID        string              `json:"subchapter_id"`
	Title               string              `json:"title"`
	ChapterTitle        *string             `json:"chapter_title,omitempty"`
	OrderLabel          *string             `json:"order_label,omitempty"`
	CurrentCycle        int                 `json:"current_cycle"`
	Status              string              `json:"status"`
	Iterations          []DraftIteration    `json:"iterations"`
	OutstandingFeedback []DraftFeedbackItem `json:"outstanding_feedback"`
	FinalIterationID    *string             `json:"final_iteration_id,omitempty"`
	FinalWordCount      *int                `json:"final_word_count,omitempty"`
	LastUpdated         time.Time           `json:"last_updated"`
}

// FinalDraft returns the content of the last iteration that carries a draft
// (writer or implementer), or "" when there is none.
func (s *SubchapterDraftState) FinalDraft() string {
	for i := len(s.Iterations) - 1; i >= 0; i-- {
		it := s.Iterations[i]
		if it.Role == RoleWriterInitial || isImplementerRole(it.Role) {
			return it.Content
		}
	}
	return ""
}

func isImplementerRole(r AgentRole) bool {
	return r == RoleWritingImplementI || r == RoleWritingImplementII || r == RoleWritingImplementIII
}

// WritingBatch is the output of the writing stage.
type WritingBatch struct {
	ProjectID      string                 `json:"project_id"`
	CycleCount     int                    `json:"cycle_count"`
	Readiness      string                 `json:"readiness"`
	Summary        *string                `json:"summary,omitempty"`
	Subchapters    []SubchapterDraftState `json:"subchapters"`
	TotalWordCount *int                   `json:"total_word_count,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// WriterDraftEntry is the writer's draft for one subchapter.
type WriterDraftEntry struct {
	SubchapterID string  `json:"subchapter_id"`
	Content      string  `json:"content"`
	Summary      *string `json:"summary,omitempty"`
	WordCount    *int    `json:"word_count,omitempty"`
}

// WriterDraftBatch is the model-facing output of the writer pass.
type WriterDraftBatch struct {
	Subchapters []WriterDraftEntry `json:"subchapters"`
	Overview    *string            `json:"overview,omitempty"`
}

// CritiqueFeedback is a feedback item as emitted by a critic.
type CritiqueFeedback struct {
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Category  *string  `json:"category,omitempty"`
	Rationale *string  `json:"rationale,omitempty"`
}

// CritiqueEntry is a critic's analysis of one subchapter.
type CritiqueEntry struct {
	SubchapterID string             `json:"subchapter_id"`
	Overview     string             `json:"overview"`
	Feedback     []CritiqueFeedback `json:"feedback"`
}

// CritiqueBatch is the model-facing output of a critic pass.
type CritiqueBatch struct {
	Subchapters []CritiqueEntry `json:"subchapters"`
	Summary     *string         `json:"summary,omitempty"`
}

// ImplementationEntry is an implementer revision of one subchapter.
type ImplementationEntry struct {
	SubchapterID     string   `json:"subchapter_id"`
	Content          string   `json:"content"`
	Summary          *string  `json:"summary,omitempty"`
	WordCount        *int     `json:"word_count,omitempty"`
	ResolvedFeedback []string `json:"resolved_feedback"`
	Notes            *string  `json:"notes,omitempty"`
}

// ImplementationBatch is the model-facing output of an implementer pass.
type ImplementationBatch struct {
	Subchapters []ImplementationEntry `json:"subchapters"`
	Summary     *string               `json:"summary,omitempty"`
}
