package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/bookforge/model"
)

// FactMappingInput feeds the fact mapping stage.
type FactMappingInput struct {
	Structure  model.BookStructure           `json:"structure"`
	Candidates []model.ResearchFactCandidate `json:"candidates"`
}

// FactMappingResult is the outcome of the fact mapping stage.
type FactMappingResult struct {
	Batch    *model.FactMappingBatch
	Critique *string
	CostUSD  *float64
	Usage    Usage
}

// MapFacts assigns candidate facts to subchapters. Coverage in the result is
// computed from the structure, not taken from the model.
func (e *Engine) MapFacts(ctx context.Context, target Target, in FactMappingInput) (*FactMappingResult, error) {
	structure := in.Structure
	structure.Normalize()
	if err := structure.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fact mapping structure: %w", err)
	}
	candidates := make([]model.ResearchFactCandidate, len(in.Candidates))
	for i, c := range in.Candidates {
		c.Normalize()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid fact candidate %d: %w", i, err)
		}
		candidates[i] = c
	}

	s := e.session(target, model.StageFactMapping)
	propose := func(prompt string) (*model.FactMappingBatch, error) {
		resp, err := s.generate(ctx, call{
			prompt:      prompt,
			system:      factMappingSystemPrompt,
			schema:      model.FactMappingBatchSchema(),
			temperature: temp(0.2),
		})
		if err != nil {
			return nil, err
		}
		return decodeBatch[model.FactMappingBatch](resp.Text, "Fact mapping")
	}

	structureJSON := encode(structure)
	candidateJSON := encode(candidates)

	proposal, err := propose(render(factMappingProposalPrompt, map[string]string{
		"structure_json": structureJSON,
		"candidate_json": candidateJSON,
	}))
	if err != nil {
		return nil, err
	}
	proposalJSON := encode(proposal)

	critique, err := s.generate(ctx, call{
		prompt:      render(factMappingCritiquePrompt, map[string]string{"mapping_json": proposalJSON}),
		temperature: temp(0.1),
		agent:       "critic",
	})
	if err != nil {
		return nil, err
	}
	critiqueText := strings.TrimSpace(critique.Text)

	final, err := propose(render(factMappingFinalPrompt, map[string]string{
		"structure_json": structureJSON,
		"candidate_json": candidateJSON,
		"mapping_json":   proposalJSON,
		"critique_text":  critiqueText,
	}))
	if err != nil {
		return nil, err
	}
	final.Coverage = Coverage(&structure, final.Facts)

	return &FactMappingResult{
		Batch:    final,
		Critique: optional(critiqueText),
		CostUSD:  s.cost(),
		Usage:    s.usage,
	}, nil
}

// Coverage counts facts per subchapter in structure order, including
// subchapters with no facts. Facts for unknown subchapters are not counted.
func Coverage(structure *model.BookStructure, facts []model.ResearchFact) []model.SubchapterFactCoverage {
	counts := make(map[string]int, len(facts))
	for _, f := range facts {
		counts[f.SubchapterID]++
	}
	coverage := make([]model.SubchapterFactCoverage, 0, structure.SubchapterCount())
	for _, ch := range structure.Chapters {
		for _, sub := range ch.Subchapters {
			coverage = append(coverage, model.SubchapterFactCoverage{
				SubchapterID: sub.ID,
				FactCount:    counts[sub.ID],
			})
		}
	}
	return coverage
}
