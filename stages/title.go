package stages

import (
	"context"

	"github.com/richinex/bookforge/model"
)

// Defaults used when the title stage has no structure or audience to draw on.
const (
	DefaultChaptersSummary = "See structure lab for chapters"
	DefaultAudience        = "General nonfiction readers"
)

// TitleInput feeds the title stage.
type TitleInput struct {
	Synopsis        string
	ChaptersSummary string
	Audience        string
}

// TitleResult is the outcome of the title stage.
type TitleResult struct {
	Batch    *model.TitleBatch
	Critique string
	CostUSD  *float64
	Usage    Usage
}

// Titles proposes title options, critiques them and returns the rewrite.
func (e *Engine) Titles(ctx context.Context, target Target, in TitleInput) (*TitleResult, error) {
	s := e.session(target, model.StageTitle)

	propose := func(prompt string) (*model.TitleBatch, error) {
		resp, err := s.generate(ctx, call{
			prompt:      prompt,
			system:      titleSystemPrompt,
			schema:      model.TitleBatchSchema(),
			temperature: temp(0.6),
		})
		if err != nil {
			return nil, err
		}
		return decodeBatch[model.TitleBatch](resp.Text, "Title")
	}

	initial, err := propose(render(titleProposalPrompt, map[string]string{
		"synopsis": in.Synopsis,
		"chapters": orDefault(in.ChaptersSummary, DefaultChaptersSummary),
		"audience": orDefault(in.Audience, DefaultAudience),
	}))
	if err != nil {
		return nil, err
	}
	initialJSON := encode(initial)

	critique, err := s.generate(ctx, call{
		prompt:      render(titleCritiquePrompt, map[string]string{"titles_json": initialJSON}),
		temperature: temp(0.4),
		agent:       "critic",
	})
	if err != nil {
		return nil, err
	}

	improved, err := propose(render(titleRewritePrompt, map[string]string{
		"titles_json": initialJSON,
		"critique":    critique.Text,
	}))
	if err != nil {
		return nil, err
	}

	return &TitleResult{
		Batch:    improved,
		Critique: critique.Text,
		CostUSD:  s.cost(),
		Usage:    s.usage,
	}, nil
}
