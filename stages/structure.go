package stages

import (
	"context"
	"strings"

	"github.com/richinex/bookforge/model"
)

// structureRounds is the number of critique/improve rounds.
const structureRounds = 3

// StructureResult is the outcome of the structure stage.
type StructureResult struct {
	Structure *model.BookStructure
	Summary   string
	// Critiques holds one entry per round, in call order.
	Critiques []string
	CostUSD   *float64
	Usage     Usage
}

// Structure drafts a book structure from an idea, refines it over three
// critique rounds and summarises the result.
func (e *Engine) Structure(ctx context.Context, target Target, idea, bookContext string) (*StructureResult, error) {
	s := e.session(target, model.StageStructure)

	propose := func(prompt string) (*model.BookStructure, error) {
		resp, err := s.generate(ctx, call{
			prompt: prompt,
			system: structureSystemPrompt,
			schema: model.BookStructureSchema(),
		})
		if err != nil {
			return nil, err
		}
		return decodeBatch[model.BookStructure](resp.Text, "Structure")
	}
	critique := func(prompt string) (string, error) {
		resp, err := s.generate(ctx, call{prompt: prompt, temperature: temp(0.2), agent: "critic"})
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}

	structure, err := propose(render(structureProposalPrompt, map[string]string{
		"idea":    strings.TrimSpace(idea),
		"context": strings.TrimSpace(bookContext),
	}))
	if err != nil {
		return nil, err
	}

	critiques := make([]string, 0, structureRounds)
	for range structureRounds {
		current := encode(structure)
		notes, err := critique(render(structureCritiquePrompt, map[string]string{"structure_json": current}))
		if err != nil {
			return nil, err
		}
		critiques = append(critiques, strings.TrimSpace(notes))

		structure, err = propose(render(structureImprovePrompt, map[string]string{
			"structure_json": current,
			"critique":       notes,
		}))
		if err != nil {
			return nil, err
		}
	}

	summary, err := critique(render(structureSummaryPrompt, map[string]string{"structure_json": encode(structure)}))
	if err != nil {
		return nil, err
	}

	return &StructureResult{
		Structure: structure,
		Summary:   summary,
		Critiques: critiques,
		CostUSD:   s.cost(),
		Usage:     s.usage,
	}, nil
}
