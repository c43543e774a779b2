package stages

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
)

// GuidelinesInput feeds the creative guidelines stage.
type GuidelinesInput struct {
	ProjectID       string          `json:"project_id"`
	Title           string          `json:"title"`
	Synopsis        string          `json:"synopsis"`
	Preferences     string          `json:"preferences"`
	Persona         json.RawMessage `json:"persona,omitempty"`
	Structure       json.RawMessage `json:"structure,omitempty"`
	Facts           json.RawMessage `json:"facts,omitempty"`
	EmotionalLayer  json.RawMessage `json:"emotional_layer,omitempty"`
	TargetVersion   *int            `json:"target_version,omitempty"`
	PreviousVersion *int            `json:"previous_version,omitempty"`
}

// Version returns the version the final batch is stamped with: one past the
// previous version when there is one, else the target, else 1. Negative
// versions count as absent.
func (in GuidelinesInput) Version() int {
	switch {
	case in.PreviousVersion != nil && *in.PreviousVersion >= 0:
		return *in.PreviousVersion + 1
	case in.TargetVersion != nil && *in.TargetVersion > 0:
		return *in.TargetVersion
	default:
		return 1
	}
}

// GuidelinesResult is the outcome of the creative guidelines stage.
type GuidelinesResult struct {
	Batch    *model.CreativeGuidelineBatch
	Critique *string
	CostUSD  *float64
	Usage    Usage
}

// Guidelines drafts per-subchapter writing guidelines and finalises them.
// The returned batch is always ready, with every guideline final.
func (e *Engine) Guidelines(ctx context.Context, target Target, in GuidelinesInput) (*GuidelinesResult, error) {
	s := e.session(target, model.StageGuidelines)

	propose := func(prompt string) (*model.CreativeGuidelineBatch, error) {
		resp, err := s.generate(ctx, call{
			prompt:      prompt,
			system:      guidelinesSystemPrompt,
			schema:      model.CreativeGuidelineBatchSchema(),
			temperature: temp(0.4),
		})
		if err != nil {
			return nil, err
		}
		return decodeBatch[model.CreativeGuidelineBatch](resp.Text, "Creative guideline")
	}

	version := in.Version()
	vars := map[string]string{
		"project_id":     in.ProjectID,
		"title":          orDefault(in.Title, defaultManuscriptTitle),
		"synopsis":       orDefault(in.Synopsis, "Synopsis not available."),
		"preferences":    orDefault(in.Preferences, "No additional preferences provided."),
		"persona_json":   rawOr(in.Persona, "{}"),
		"structure_json": rawOr(in.Structure, "{}"),
		"facts_json":     rawOr(in.Facts, "[]"),
		"emotional_json": rawOr(in.EmotionalLayer, "[]"),
	}

	proposal, err := propose(render(guidelinesProposalPrompt, vars))
	if err != nil {
		return nil, err
	}
	proposalJSON := encode(proposal)

	critique, err := s.generate(ctx, call{
		prompt:      render(guidelinesCritiquePrompt, map[string]string{"batch_json": proposalJSON}),
		temperature: temp(0.2),
		agent:       "critic",
	})
	if err != nil {
		return nil, err
	}
	critiqueText := strings.TrimSpace(critique.Text)

	vars["critique_text"] = orDefault(critiqueText, noCritiqueProvided)
	vars["batch_json"] = proposalJSON
	vars["target_version"] = strconv.Itoa(version)
	final, err := propose(render(guidelinesFinalPrompt, vars))
	if err != nil {
		return nil, err
	}
	finalise(final, in.ProjectID, version)
	if err := final.Validate(); err != nil {
		return nil, llm.NewProviderResponseError("Creative guideline batch failed validation", err)
	}

	return &GuidelinesResult{
		Batch:    final,
		Critique: optional(critiqueText),
		CostUSD:  s.cost(),
		Usage:    s.usage,
	}, nil
}

// finalise stamps the creative director's sign-off onto a batch. A project id
// that is not a UUID leaves the model's id in place.
func finalise(b *model.CreativeGuidelineBatch, projectID string, version int) {
	if _, err := uuid.Parse(projectID); err != nil {
		projectID = ""
	}
	if projectID != "" {
		b.ProjectID = projectID
	}
	b.Version = version
	b.Readiness = model.ReadinessReady
	for i := range b.Guidelines {
		g := &b.Guidelines[i]
		if projectID != "" {
			g.ProjectID = projectID
		}
		g.Version = version
		g.Status = model.GuidelineFinal
		g.CreatedBy = model.RoleCreativeFinal
	}
}
