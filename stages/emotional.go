package stages

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/richinex/bookforge/model"
)

const (
	defaultManuscriptTitle = "Untitled Manuscript"
	noCritiqueProvided     = "No critique provided."
)

// EmotionalInput feeds the emotional layer stage. Structure, facts and persona
// are passed through to the agents as given.
type EmotionalInput struct {
	ProjectID          string          `json:"project_id"`
	Title              string          `json:"title"`
	Synopsis           string          `json:"synopsis"`
	IdeaSummary        string          `json:"idea_summary"`
	PersonaPreferences string          `json:"persona_preferences"`
	Structure          json.RawMessage `json:"structure,omitempty"`
	Facts              json.RawMessage `json:"facts,omitempty"`
	Persona            json.RawMessage `json:"persona,omitempty"`
	ResearchGuidelines string          `json:"research_guidelines"`
}

// EmotionalResult is the outcome of the emotional layer stage.
type EmotionalResult struct {
	Batch    *model.EmotionalLayerBatch
	Critique *string
	CostUSD  *float64
	Usage    Usage
}

// EmotionalLayer crafts a persona and per-subchapter story hooks.
func (e *Engine) EmotionalLayer(ctx context.Context, target Target, in EmotionalInput) (*EmotionalResult, error) {
	s := e.session(target, model.StageEmotional)

	propose := func(prompt string) (*model.EmotionalLayerBatch, error) {
		resp, err := s.generate(ctx, call{
			prompt:      prompt,
			system:      emotionalSystemPrompt,
			schema:      model.EmotionalLayerBatchSchema(),
			temperature: temp(0.5),
		})
		if err != nil {
			return nil, err
		}
		return decodeBatch[model.EmotionalLayerBatch](resp.Text, "Emotional layer")
	}

	title := orDefault(in.Title, defaultManuscriptTitle)
	synopsis := orDefault(in.Synopsis, "No synopsis provided.")
	preferences := orDefault(in.PersonaPreferences, "None provided.")
	structureJSON := rawOr(in.Structure, "{}")
	factsJSON := rawOr(in.Facts, "[]")

	ideaSummary := in.IdeaSummary
	if ideaSummary == "" {
		ideaSummary = synopsis
	}
	proposal, err := propose(render(emotionalProposalPrompt, map[string]string{
		"project_id":            in.ProjectID,
		"title":                 title,
		"synopsis":              synopsis,
		"idea_summary":          ideaSummary,
		"persona_preferences":   preferences,
		"existing_persona_json": rawOr(in.Persona, "{}"),
		"structure_json":        structureJSON,
		"facts_json":            factsJSON,
	}))
	if err != nil {
		return nil, err
	}
	proposalJSON := encode(proposal)

	critique, err := s.generate(ctx, call{
		prompt:      render(emotionalCritiquePrompt, map[string]string{"batch_json": proposalJSON}),
		temperature: temp(0.2),
		agent:       "critic",
	})
	if err != nil {
		return nil, err
	}
	critiqueText := strings.TrimSpace(critique.Text)

	contextJSON := encode(map[string]any{
		"structure":           json.RawMessage(structureJSON),
		"facts":               json.RawMessage(factsJSON),
		"synopsis":            synopsis,
		"idea_summary":        in.IdeaSummary,
		"title":               title,
		"research_guidelines": in.ResearchGuidelines,
	})
	final, err := propose(render(emotionalFinalPrompt, map[string]string{
		"project_id":          in.ProjectID,
		"title":               title,
		"persona_preferences": preferences,
		"context_json":        contextJSON,
		"critique_text":       orDefault(critiqueText, noCritiqueProvided),
		"batch_json":          proposalJSON,
	}))
	if err != nil {
		return nil, err
	}

	return &EmotionalResult{
		Batch:    final,
		Critique: optional(critiqueText),
		CostUSD:  s.cost(),
		Usage:    s.usage,
	}, nil
}
