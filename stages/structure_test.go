package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
)

func TestStructureRunsThreeRoundsAndSummary(t *testing.T) {
	p := newScripted(
		text(structureReply(t, "draft")),
		text("  - missing ethics chapter  "),
		text(structureReply(t, "round one")),
		text("- merge doubt into origins"),
		text(structureReply(t, "round two")),
		text("- looks good"),
		text("```json\n"+structureReply(t, "final")+"\n```"),
		text("A book in two movements."),
	)

	res, err := newTestEngine().Structure(context.Background(), testTarget(p), "A history of tea", "")
	require.NoError(t, err)

	require.Len(t, p.requests, 8)
	assert.Equal(t, []string{"- missing ethics chapter", "- merge doubt into origins", "- looks good"}, res.Critiques)
	assert.Equal(t, "A book in two movements.", res.Summary)
	require.NotNil(t, res.Structure.Synopsis)
	assert.Equal(t, "final", *res.Structure.Synopsis)
	assert.Equal(t, 3, res.Structure.SubchapterCount())

	require.NotNil(t, res.CostUSD)
	assert.InDelta(t, 0.08, *res.CostUSD, 1e-9)
	assert.Equal(t, 8, res.Usage.Calls)
	assert.Equal(t, 80, res.Usage.PromptTokens)
}

func TestStructureRequestShapes(t *testing.T) {
	p := newScripted(
		text(structureReply(t, "a")), text("c1"),
		text(structureReply(t, "b")), text("c2"),
		text(structureReply(t, "c")), text("c3"),
		text(structureReply(t, "d")), text("summary"),
	)
	_, err := newTestEngine().Structure(context.Background(), testTarget(p), "idea", "notes")
	require.NoError(t, err)
	require.Len(t, p.requests, 8)

	proposal := p.requests[0]
	assert.NotEmpty(t, proposal.SystemPrompt)
	assert.NotNil(t, proposal.JSONSchema)
	assert.Nil(t, proposal.Temperature)
	assert.Equal(t, "STRUCTURE", proposal.Metadata["stage"])
	assert.NotContains(t, proposal.Metadata, "agent")
	assert.Contains(t, proposal.Prompt, "idea")
	assert.Contains(t, proposal.Prompt, "notes")

	critic := p.requests[1]
	assert.Empty(t, critic.SystemPrompt)
	assert.Nil(t, critic.JSONSchema)
	require.NotNil(t, critic.Temperature)
	assert.Equal(t, 0.2, *critic.Temperature)
	assert.Equal(t, "critic", critic.Metadata["agent"])

	improve := p.requests[2]
	assert.Contains(t, improve.Prompt, "c1")

	summary := p.requests[7]
	assert.Nil(t, summary.JSONSchema)
	assert.Equal(t, "critic", summary.Metadata["agent"])
}

func TestStructureOverrideTemperatureWins(t *testing.T) {
	p := newScripted(
		text(structureReply(t, "a")), text("c1"),
		text(structureReply(t, "b")), text("c2"),
		text(structureReply(t, "c")), text("c3"),
		text(structureReply(t, "d")), text("summary"),
	)
	target := testTarget(p)
	target.Override = &llm.ProviderOverride{Temperature: llm.Ptr(0.9), MaxOutputTokens: llm.Ptr(800)}

	_, err := newTestEngine().Structure(context.Background(), target, "idea", "")
	require.NoError(t, err)
	for _, req := range p.requests {
		require.NotNil(t, req.Temperature)
		assert.Equal(t, 0.9, *req.Temperature)
		require.NotNil(t, req.MaxOutputTokens)
		assert.Equal(t, 800, *req.MaxOutputTokens)
	}
}

func TestStructureCostNilWithoutPricing(t *testing.T) {
	p := newScripted(
		text(structureReply(t, "a")), text("c1"),
		text(structureReply(t, "b")), text("c2"),
		text(structureReply(t, "c")), text("c3"),
		text(structureReply(t, "d")), text("summary"),
	)
	p.cost = nil

	res, err := newTestEngine().Structure(context.Background(), testTarget(p), "idea", "")
	require.NoError(t, err)
	assert.Nil(t, res.CostUSD)
}

func TestStructureRejectsNonJSON(t *testing.T) {
	p := newScripted(text("Here are some chapter ideas, in prose."))

	_, err := newTestEngine().Structure(context.Background(), testTarget(p), "idea", "")
	require.Error(t, err)
	assert.True(t, llm.IsProviderResponseError(err))
	assert.Contains(t, err.Error(), "Structure response was not valid JSON")
	assert.Len(t, p.requests, 1)
}

func TestStructureRejectsGappedOrder(t *testing.T) {
	bad := mustJSON(t, map[string]any{
		"chapters": []map[string]any{
			{"title": "One", "summary": "s", "order": 1, "subchapters": []any{}},
			{"title": "Three", "summary": "s", "order": 3, "subchapters": []any{}},
		},
	})
	p := newScripted(text(bad))

	_, err := newTestEngine().Structure(context.Background(), testTarget(p), "idea", "")
	require.Error(t, err)
	assert.True(t, llm.IsProviderResponseError(err))

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "chapter order must be contiguous starting at 1")
}
