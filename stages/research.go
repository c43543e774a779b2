package stages

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/richinex/bookforge/model"
)

const noResearchGuidance = "No additional guidance provided."

// ResearchInput feeds the research stage.
type ResearchInput struct {
	Synopsis         string `json:"synopsis"`
	StructureSummary string `json:"structure_summary"`
	Guidelines       string `json:"guidelines"`
}

// ParseResearchInput reads a JSON research payload. Text that is not a JSON
// object is taken as the synopsis.
func ParseResearchInput(prompt string) ResearchInput {
	var in ResearchInput
	if err := json.Unmarshal([]byte(prompt), &in); err != nil {
		return ResearchInput{Synopsis: prompt}
	}
	return in
}

// ResearchResult is the outcome of the research stage.
type ResearchResult struct {
	Batch *model.ResearchPromptBatch
	// Critique is nil when the critic returned nothing.
	Critique *string
	CostUSD  *float64
	Usage    Usage
}

// Research drafts deep-research prompts, critiques them and returns the rewrite.
func (e *Engine) Research(ctx context.Context, target Target, in ResearchInput) (*ResearchResult, error) {
	s := e.session(target, model.StageResearch)

	propose := func(prompt string) (*model.ResearchPromptBatch, error) {
		resp, err := s.generate(ctx, call{
			prompt:      prompt,
			system:      researchSystemPrompt,
			schema:      model.ResearchPromptBatchSchema(),
			temperature: temp(0.4),
		})
		if err != nil {
			return nil, err
		}
		return decodeBatch[model.ResearchPromptBatch](resp.Text, "Research prompt")
	}

	guidance := strings.TrimSpace(in.Guidelines)
	if guidance == "" {
		guidance = noResearchGuidance
	}
	initial, err := propose(render(researchProposalPrompt, map[string]string{
		"synopsis":          strings.TrimSpace(in.Synopsis),
		"structure_summary": strings.TrimSpace(in.StructureSummary),
		"guidelines":        guidance,
	}))
	if err != nil {
		return nil, err
	}
	initialJSON := encode(initial)

	critique, err := s.generate(ctx, call{
		prompt:      render(researchCritiquePrompt, map[string]string{"batch_json": initialJSON}),
		temperature: temp(0.3),
		agent:       "critic",
	})
	if err != nil {
		return nil, err
	}

	improved, err := propose(render(researchRewritePrompt, map[string]string{
		"batch_json": initialJSON,
		"critique":   critique.Text,
	}))
	if err != nil {
		return nil, err
	}

	return &ResearchResult{
		Batch:    improved,
		Critique: optional(critique.Text),
		CostUSD:  s.cost(),
		Usage:    s.usage,
	}, nil
}
