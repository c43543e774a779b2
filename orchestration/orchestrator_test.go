package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/internal/telemetry"
	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
	"github.com/richinex/bookforge/stages"
)

func TestRunExecutesStagesInOrder(t *testing.T) {
	p := newStageProvider()
	rec := telemetry.NewRecorder()
	o := newTestOrchestrator(p, rec)

	resp, err := o.Run(context.Background(), RunRequest{Stages: []StageRequest{
		{Stage: model.StageStructure, Prompt: "A history of tidal power"},
		{Stage: model.StageTitle, Prompt: "Tides as power"},
		{Stage: model.StageResearch, Prompt: "Tides as power"},
		{Stage: model.StageIdea, Prompt: "Summarise the idea"},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Stages, 4)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "staged", resp.ProviderName)

	structure := resp.Stages[0]
	assert.Equal(t, model.StageStructure, structure.Stage)
	assert.Equal(t, "Notes for STRUCTURE", structure.Output)
	assert.Equal(t, "staged", structure.Model)
	assert.Len(t, structure.Extras["critiques"], 3)
	assert.Equal(t, 80, structure.PromptTokens)
	require.NotNil(t, structure.CostUSD)
	assert.InDelta(t, 0.08, *structure.CostUSD, 1e-9)
	var stored model.BookStructure
	require.NoError(t, json.Unmarshal(structure.StructuredOutput, &stored))
	assert.True(t, stored.UpdatedAt.Equal(structure.ReceivedAt))

	assert.Equal(t, "Tidal Power; Moon Engines", resp.Stages[1].Output)
	assert.Equal(t, "Research tide mills\n\nResearch barrages", resp.Stages[2].Output)

	idea := resp.Stages[3]
	assert.Equal(t, "Notes for IDEA", idea.Output)
	assert.Equal(t, "staged-1", idea.Model, "generic stages report the response model")
	assert.Nil(t, idea.StructuredOutput)
	require.NotNil(t, idea.LatencyMs)
	assert.Equal(t, 2.0, *idea.LatencyMs)

	for _, r := range resp.Stages {
		assert.Equal(t, OutcomeSuccess, r.Outcome)
		assert.GreaterOrEqual(t, r.DurationMs, 0.0)
	}

	outcomes := stageOutcomes(rec.Snapshot())
	assert.Equal(t, map[string]string{
		"IDEA": "success", "RESEARCH": "success", "STRUCTURE": "success", "TITLE": "success",
	}, outcomes)
}

func TestRunFailsFastOnNonJSONPayload(t *testing.T) {
	p := newStageProvider()
	rec := telemetry.NewRecorder()
	o := newTestOrchestrator(p, rec)

	resp, err := o.Run(context.Background(), RunRequest{Stages: []StageRequest{
		{Stage: model.StageTitle, Prompt: "Tides as power"},
		{Stage: model.StageFactMapping, Prompt: "map these please"},
		{Stage: model.StageResearch, Prompt: "never runs"},
	}})
	require.Error(t, err)
	assert.Nil(t, resp, "failed runs return no partial results")
	assert.Contains(t, err.Error(), "Fact mapping stage requires JSON payload")
	assert.Contains(t, err.Error(), "pipeline: stage FACT_MAPPING")
	assert.Equal(t, KindInternal, ErrorKind(err))

	assert.Len(t, p.stageRequests(model.StageTitle), 3)
	assert.Empty(t, p.stageRequests(model.StageResearch))

	outcomes := stageOutcomes(rec.Snapshot())
	assert.Equal(t, "success", outcomes["TITLE"])
	assert.Equal(t, "error", outcomes["FACT_MAPPING"])
	assert.NotContains(t, outcomes, "RESEARCH")
}

func TestRunRejectsNonJSONForEveryPayloadStage(t *testing.T) {
	tests := []struct {
		stage model.BookStage
		label string
	}{
		{model.StageFactMapping, "Fact mapping"},
		{model.StageEmotional, "Emotional"},
		{model.StageGuidelines, "Guidelines"},
		{model.StageWriting, "Writing"},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			p := newStageProvider()
			_, err := newTestOrchestrator(p, nil).Run(context.Background(), RunRequest{
				Stages: []StageRequest{{Stage: tt.stage, Prompt: "plain words"}},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.label+" stage requires JSON payload")
			assert.False(t, llm.IsProviderResponseError(err))
			assert.Empty(t, p.requests)
		})
	}
}

func TestRunClassifiesProviderErrors(t *testing.T) {
	p := newStageProvider()
	p.broken[model.StageTitle] = true

	_, err := newTestOrchestrator(p, nil).Run(context.Background(), RunRequest{
		Stages: []StageRequest{{Stage: model.StageTitle, Prompt: "Tides"}},
	})
	require.Error(t, err)

	var perr *llm.ProviderResponseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Message, "Title")
	assert.Equal(t, KindProviderError, ErrorKind(err))
}

func TestRunDefaultsToFullSequence(t *testing.T) {
	p := newStageProvider()
	rec := telemetry.NewRecorder()

	_, err := newTestOrchestrator(p, rec).Run(context.Background(), RunRequest{})
	require.Error(t, err, "the default fact mapping prompt is not a JSON payload")
	assert.Contains(t, err.Error(), "Fact mapping stage requires JSON payload")

	outcomes := stageOutcomes(rec.Snapshot())
	for _, stage := range []string{"IDEA", "STRUCTURE", "TITLE", "RESEARCH"} {
		assert.Equal(t, "success", outcomes[stage], stage)
	}
	assert.Equal(t, "error", outcomes["FACT_MAPPING"])

	idea := p.stageRequests(model.StageIdea)
	require.Len(t, idea, 1)
	assert.Equal(t, model.DefaultStagePrompts[model.StageIdea], idea[0].Prompt)
}

func TestRunMergesStageOverrideOverRunOverride(t *testing.T) {
	p := newStageProvider()
	resp, err := newTestOrchestrator(p, nil).Run(context.Background(), RunRequest{
		Provider: &llm.ProviderOverride{Name: "alpha", Temperature: llm.Ptr(0.1), MaxOutputTokens: llm.Ptr(500)},
		Stages: []StageRequest{
			{Stage: model.StageIdea, Prompt: "first"},
			{Stage: model.StageComplete, Prompt: "second", ProviderOverride: &llm.ProviderOverride{Name: "beta", Temperature: llm.Ptr(0.9)}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "beta", resp.ProviderName, "provider name follows the last resolved stage")

	first := p.stageRequests(model.StageIdea)[0]
	assert.Equal(t, 0.1, *first.Temperature)
	assert.Equal(t, 500, *first.MaxOutputTokens)

	second := p.stageRequests(model.StageComplete)[0]
	assert.Equal(t, 0.9, *second.Temperature)
	assert.Equal(t, 500, *second.MaxOutputTokens, "unset stage fields fall through to the run override")
	assert.Equal(t, "COMPLETE", second.Metadata["stage"])
}

func TestRunStopsWhenProviderCannotResolve(t *testing.T) {
	p := newStageProvider()
	rec := telemetry.NewRecorder()
	o := New(stages.NewEngine(nil),
		WithRecorder(rec),
		WithConfigResolver(func(*llm.ProviderOverride) (config.ProviderConfig, error) {
			return config.ProviderConfig{}, errors.New("no API key")
		}),
		WithProviderFactory(func(config.ProviderConfig) (llm.Provider, error) { return p, nil }),
	)

	_, err := o.Run(context.Background(), RunRequest{Stages: []StageRequest{{Stage: model.StageIdea, Prompt: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key")
	assert.Empty(t, p.requests)
	assert.Equal(t, "error", stageOutcomes(rec.Snapshot())["IDEA"])
}

func TestRunFactMappingExtras(t *testing.T) {
	p := newStageProvider()
	structure := testStructure(t)
	payload := mustJSON(t, stages.FactMappingInput{
		Structure: structure,
		Candidates: []model.ResearchFactCandidate{{
			ID:        "44444444-4444-4444-8444-444444444444",
			ProjectID: structure.ProjectID,
			Summary:   "Tide mills date to 600 AD",
			Detail:    "Irish monastic mills",
			Citation:  model.Citation{SourceTitle: "Upload", SourceType: model.SourceOther},
		}},
	})

	resp, err := newTestOrchestrator(p, nil).Run(context.Background(), RunRequest{
		Stages: []StageRequest{{Stage: model.StageFactMapping, Prompt: payload}},
	})
	require.NoError(t, err)

	r := resp.Stages[0]
	assert.Equal(t, "Mapped 1 facts", r.Output)
	assert.Equal(t, 1, r.Extras["fact_count"])
	assert.Equal(t, []model.SubchapterFactCoverage{
		{SubchapterID: subA, FactCount: 1},
		{SubchapterID: subB, FactCount: 0},
		{SubchapterID: subC, FactCount: 0},
	}, r.Extras["coverage"])
	require.NotNil(t, r.Extras["critique"])

	var batch model.FactMappingBatch
	require.NoError(t, json.Unmarshal(r.StructuredOutput, &batch))
	assert.True(t, batch.CreatedAt.Equal(r.ReceivedAt))
}

func TestRunWritingStageSummary(t *testing.T) {
	p := newStageProvider()
	payload := mustJSON(t, stages.WritingInput{
		ProjectID: "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa",
		Subchapters: []stages.SubchapterMeta{
			{ID: subA, Title: "Monastic mills", ChapterOrder: 1, SubOrder: 1},
			{ID: subB, Title: "Barrages", ChapterOrder: 1, SubOrder: 2},
			{ID: subC, Title: "Lagoons", ChapterOrder: 2, SubOrder: 1},
		},
	})

	resp, err := newTestOrchestrator(p, nil).Run(context.Background(), RunRequest{
		Stages: []StageRequest{{Stage: model.StageWriting, Prompt: payload}},
	})
	require.NoError(t, err)

	r := resp.Stages[0]
	assert.Equal(t, "Writing cycles completed for 3 subchapters", r.Output)
	assert.Len(t, p.stageRequests(model.StageWriting), 7, "writer plus three critic/implementer cycles")

	var batch model.WritingBatch
	require.NoError(t, json.Unmarshal(r.StructuredOutput, &batch))
	assert.True(t, batch.UpdatedAt.Equal(r.ReceivedAt))
	assert.Equal(t, 3, batch.CycleCount)
}
