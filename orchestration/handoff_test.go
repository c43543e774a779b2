package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/bookforge/model"
)

func fields(r ValidationResult) []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Field
	}
	return out
}

func TestDefaultContractsWritingNeedsReadyGuidelines(t *testing.T) {
	c := DefaultCoordinator()

	result := c.Validate(model.StageWriting, Availability{
		PrereqStructure:  true,
		PrereqGuidelines: true,
	})
	require.False(t, result.Valid)
	assert.Equal(t, []string{"guidelines_ready"}, fields(result))
	assert.Equal(t, "MissingPrerequisite", result.Errors[0].ErrorType)
	assert.Equal(t, "Creative guidelines must be ready before writing.", result.Errors[0].Message)

	result = c.Validate(model.StageWriting, Availability{
		PrereqStructure:       true,
		PrereqGuidelines:      true,
		PrereqGuidelinesReady: true,
	})
	assert.True(t, result.Valid)
}

func TestDefaultContractsListEveryMissingPrerequisite(t *testing.T) {
	c := DefaultCoordinator()

	result := c.Validate(model.StageGuidelines, Availability{PrereqStructure: true})
	require.False(t, result.Valid)
	assert.Equal(t, []string{"facts", "emotional_layer", "persona"}, fields(result))

	result = c.Validate(model.StageFactMapping, Availability{})
	assert.Equal(t, []string{"structure", "fact_candidates"}, fields(result))
}

func TestResearchAcceptsStructureOrIdea(t *testing.T) {
	c := DefaultCoordinator()

	assert.True(t, c.Validate(model.StageResearch, Availability{PrereqIdeaSummary: true}).Valid)
	assert.True(t, c.Validate(model.StageResearch, Availability{PrereqStructure: true}).Valid)

	result := c.Validate(model.StageResearch, Availability{})
	require.False(t, result.Valid)
	assert.Equal(t, []string{"structure|idea_summary"}, fields(result))
	assert.Equal(t, "One of structure, idea_summary is required.", result.Errors[0].Message)
}

func TestStagesWithoutContractAreAlwaysReady(t *testing.T) {
	c := DefaultCoordinator()
	assert.True(t, c.Validate(model.StageIdea, nil).Valid)
	assert.True(t, c.Validate(model.StageComplete, Availability{}).Valid)

	_, ok := c.GetContract(model.StageIdea)
	assert.False(t, ok)
}

func TestRegisterContractReplacesExisting(t *testing.T) {
	c := DefaultCoordinator()
	c.RegisterContract(Contract{Stage: model.StageTitle})

	contract, ok := c.GetContract(model.StageTitle)
	require.True(t, ok)
	assert.Empty(t, contract.Requires)
	assert.True(t, c.Validate(model.StageTitle, Availability{}).Valid)

	assert.Equal(t, []string{
		"EMOTIONAL", "FACT_MAPPING", "GUIDELINES", "RESEARCH", "STRUCTURE", "TITLE", "WRITING",
	}, c.ContractNames())
}
