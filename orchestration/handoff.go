// Handoff contracts between pipeline stages.
//
// Each stage declares the upstream artifacts it reads. The project runner
// checks the contract before building a payload so a stage is skipped,
// not failed, when its inputs are not there yet.
//
// Information Hiding:
// - Contract storage and lookup hidden
// - Validation logic hidden

package orchestration

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/richinex/bookforge/model"
)

// Prerequisite names an upstream artifact or project field a stage reads.
type Prerequisite string

const (
	PrereqIdeaSummary     Prerequisite = "idea_summary"
	PrereqStructure       Prerequisite = "structure"
	PrereqFactCandidates  Prerequisite = "fact_candidates"
	PrereqFacts           Prerequisite = "facts"
	PrereqEmotionalLayer  Prerequisite = "emotional_layer"
	PrereqPersona         Prerequisite = "persona"
	PrereqGuidelines      Prerequisite = "guidelines"
	PrereqGuidelinesReady Prerequisite = "guidelines_ready"
)

var prerequisiteMessages = map[Prerequisite]string{
	PrereqIdeaSummary:     "Project idea summary is empty.",
	PrereqStructure:       "Generate the book structure first.",
	PrereqFactCandidates:  "Parse research documents into fact candidates first.",
	PrereqFacts:           "Map research facts to subchapters first.",
	PrereqEmotionalLayer:  "Generate the emotional layer first.",
	PrereqPersona:         "The emotional layer has no persona yet.",
	PrereqGuidelines:      "Generate creative guidelines first.",
	PrereqGuidelinesReady: "Creative guidelines must be ready before writing.",
}

// Availability reports which prerequisites are in place for a project.
type Availability map[Prerequisite]bool

// Contract defines what a stage needs before it can run.
type Contract struct {
	Stage model.BookStage
	// Requires must all be available.
	Requires []Prerequisite
	// AnyOf needs at least one available entry when non-empty.
	AnyOf []Prerequisite
}

// Coordinator manages handoff contracts between stages.
type Coordinator struct {
	mu        sync.RWMutex
	contracts map[model.BookStage]Contract
}

// NewCoordinator creates a coordinator with no contracts.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		contracts: make(map[model.BookStage]Contract),
	}
}

// DefaultCoordinator registers the book pipeline's stage contracts.
func DefaultCoordinator() *Coordinator {
	c := NewCoordinator()
	c.RegisterContract(Contract{Stage: model.StageStructure, Requires: []Prerequisite{PrereqIdeaSummary}})
	c.RegisterContract(Contract{Stage: model.StageTitle, Requires: []Prerequisite{PrereqStructure}})
	c.RegisterContract(Contract{Stage: model.StageResearch, AnyOf: []Prerequisite{PrereqStructure, PrereqIdeaSummary}})
	c.RegisterContract(Contract{
		Stage:    model.StageFactMapping,
		Requires: []Prerequisite{PrereqStructure, PrereqFactCandidates},
	})
	c.RegisterContract(Contract{
		Stage:    model.StageEmotional,
		Requires: []Prerequisite{PrereqStructure, PrereqFacts},
	})
	c.RegisterContract(Contract{
		Stage:    model.StageGuidelines,
		Requires: []Prerequisite{PrereqStructure, PrereqFacts, PrereqEmotionalLayer, PrereqPersona},
	})
	c.RegisterContract(Contract{
		Stage:    model.StageWriting,
		Requires: []Prerequisite{PrereqStructure, PrereqGuidelines, PrereqGuidelinesReady},
	})
	return c
}

// RegisterContract registers or replaces the contract for a stage.
func (c *Coordinator) RegisterContract(contract Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[contract.Stage] = contract
}

// Validate checks a stage's contract against what is available.
// Stages without a contract have no prerequisites.
func (c *Coordinator) Validate(stage model.BookStage, available Availability) ValidationResult {
	c.mu.RLock()
	contract, exists := c.contracts[stage]
	c.mu.RUnlock()

	if !exists {
		return NewValidationSuccess()
	}

	var errs []ValidationError
	for _, p := range contract.Requires {
		if !available[p] {
			errs = append(errs, missing(p, prerequisiteMessages[p]))
		}
	}

	if len(contract.AnyOf) > 0 {
		found := false
		names := make([]string, len(contract.AnyOf))
		for i, p := range contract.AnyOf {
			names[i] = string(p)
			found = found || available[p]
		}
		if !found {
			field := strings.Join(names, "|")
			errs = append(errs, missing(Prerequisite(field), fmt.Sprintf("One of %s is required.", strings.Join(names, ", "))))
		}
	}

	if len(errs) == 0 {
		return NewValidationSuccess()
	}
	return NewValidationFailure(errs)
}

func missing(p Prerequisite, message string) ValidationError {
	expected := "present"
	actual := "missing"
	return ValidationError{
		Field:     string(p),
		ErrorType: "MissingPrerequisite",
		Message:   message,
		Expected:  &expected,
		Actual:    &actual,
	}
}

// ContractNames returns the stages with a registered contract, sorted.
func (c *Coordinator) ContractNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.contracts))
	for stage := range c.contracts {
		names = append(names, string(stage))
	}
	sort.Strings(names)
	return names
}

// GetContract retrieves a stage's contract.
func (c *Coordinator) GetContract(stage model.BookStage) (Contract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	contract, exists := c.contracts[stage]
	return contract, exists
}
