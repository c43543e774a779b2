package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/richinex/bookforge/config"
)

// ProviderOverride is a sparse set of provider parameters supplied per run or per stage.
// Empty strings and nil pointers mean "not set".
type ProviderOverride struct {
	Name            string   `json:"name,omitempty" yaml:"name,omitempty"`
	Model           string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	TopP            *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	JSONMode        *bool    `json:"json_mode,omitempty" yaml:"json_mode,omitempty"`
	ReasoningEffort *string  `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`
	Verbosity       *string  `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`
	ThinkingBudget  *int     `json:"thinking_budget,omitempty" yaml:"thinking_budget,omitempty"`
	IncludeThoughts *bool    `json:"include_thoughts,omitempty" yaml:"include_thoughts,omitempty"`
}

// MergeOverrides layers stage over run field by field: every non-empty stage field wins,
// every other field falls through to run. If either side is nil the other is returned.
func MergeOverrides(stage, run *ProviderOverride) *ProviderOverride {
	if stage == nil {
		return run
	}
	if run == nil {
		return stage
	}
	return &ProviderOverride{
		Name:            firstNonEmpty(stage.Name, run.Name),
		Model:           firstNonEmpty(stage.Model, run.Model),
		Temperature:     firstNonNil(stage.Temperature, run.Temperature),
		MaxOutputTokens: firstNonNil(stage.MaxOutputTokens, run.MaxOutputTokens),
		TopP:            firstNonNil(stage.TopP, run.TopP),
		JSONMode:        firstNonNil(stage.JSONMode, run.JSONMode),
		ReasoningEffort: firstNonNil(stage.ReasoningEffort, run.ReasoningEffort),
		Verbosity:       firstNonNil(stage.Verbosity, run.Verbosity),
		ThinkingBudget:  firstNonNil(stage.ThinkingBudget, run.ThinkingBudget),
		IncludeThoughts: firstNonNil(stage.IncludeThoughts, run.IncludeThoughts),
	}
}

// Apply copies the override's sampling parameters onto req. Unset fields become nil,
// except temperature which falls back to defaultTemperature (which may itself be nil).
// A nil override is valid.
func (o *ProviderOverride) Apply(req *Request, defaultTemperature *float64) {
	if o == nil {
		o = &ProviderOverride{}
	}
	req.Temperature = firstNonNil(o.Temperature, defaultTemperature)
	req.MaxOutputTokens = o.MaxOutputTokens
	req.TopP = o.TopP
	req.ReasoningEffort = o.ReasoningEffort
	req.Verbosity = o.Verbosity
	req.ThinkingBudget = o.ThinkingBudget
	req.IncludeThoughts = o.IncludeThoughts
}

// ResolveConfig turns an effective override into a provider configuration.
//
// The provider name comes from the override, then LLM_PROVIDER, then "mock". The mock
// provider ignores all other override fields. For real providers the environment
// configuration is loaded and the override's model and settings are layered on top.
func ResolveConfig(override *ProviderOverride) (config.ProviderConfig, error) {
	name := ""
	if override != nil {
		name = override.Name
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv(config.ProviderEnvVar)
	}
	if strings.TrimSpace(name) == "" {
		name = config.MockProvider
	}
	if config.NormalizeProvider(name) == config.MockProvider {
		return config.MockProviderConfig(), nil
	}

	cfg, err := config.LoadProviderConfig(name)
	if err != nil {
		return config.ProviderConfig{}, fmt.Errorf("failed to load provider config for %q: %w", name, err)
	}
	if override == nil {
		return cfg, nil
	}

	if override.Model != "" {
		cfg.Model = override.Model
	}
	s := &cfg.Settings
	if override.Temperature != nil {
		s.Temperature = *override.Temperature
	}
	if override.MaxOutputTokens != nil {
		s.MaxOutputTokens = override.MaxOutputTokens
	}
	if override.TopP != nil {
		s.TopP = override.TopP
	}
	if override.JSONMode != nil {
		s.JSONMode = *override.JSONMode
	}
	if override.ReasoningEffort != nil {
		s.ReasoningEffort = override.ReasoningEffort
	}
	if override.Verbosity != nil {
		s.Verbosity = override.Verbosity
	}
	if override.ThinkingBudget != nil {
		s.ThinkingBudget = override.ThinkingBudget
	}
	if override.IncludeThoughts != nil {
		s.IncludeThoughts = *override.IncludeThoughts
	}
	return cfg, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonNil[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}

// Ptr returns a pointer to v. Handy for building overrides and defaults.
func Ptr[T any](v T) *T {
	return &v
}
