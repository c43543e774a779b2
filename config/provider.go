package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ProviderEnvVar selects the provider when no override names one.
const ProviderEnvVar = "LLM_PROVIDER"

// DefaultProvider is used when LLM_PROVIDER is unset.
const DefaultProvider = "gemini"

// MockProvider is the offline deterministic provider name.
const MockProvider = "mock"

// ProviderSettings holds per-call default parameters for a provider.
// Nil pointers mean "let the backend decide".
type ProviderSettings struct {
	Temperature     float64
	MaxOutputTokens *int
	TopP            *float64
	JSONMode        bool
	// ReasoningEffort and Verbosity apply to the OpenAI GPT-5 family.
	ReasoningEffort *string
	Verbosity       *string
	// ThinkingBudget and IncludeThoughts apply to Gemini 2.5; -1 requests dynamic thinking.
	ThinkingBudget  *int
	IncludeThoughts bool
}

// DefaultProviderSettings returns the settings used when nothing is configured.
func DefaultProviderSettings() ProviderSettings {
	return ProviderSettings{Temperature: 0.4}
}

// ProviderConfig is the resolved configuration for one provider instance.
type ProviderConfig struct {
	Name     string
	APIKey   string
	Model    string
	Settings ProviderSettings
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	defaultModel string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"gpt-5-mini"},
	"anthropic": {"claude-sonnet-4-20250514"},
	"deepseek":  {"deepseek-chat"},
	"gemini":    {"gemini-2.5-flash"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// MockProviderConfig returns the configuration for the offline mock provider.
func MockProviderConfig() ProviderConfig {
	return ProviderConfig{
		Name:     MockProvider,
		APIKey:   MockProvider,
		Model:    MockProvider,
		Settings: DefaultProviderSettings(),
	}
}

// LoadProviderConfig loads a provider configuration from environment variables.
//
// The prefix names the provider ("openai", "gemini", ...); an empty prefix falls back to
// LLM_PROVIDER and then to DefaultProvider. With prefix "openai" the variables read are
// OPENAI_API_KEY, OPENAI_MODEL, OPENAI_TEMPERATURE, OPENAI_MAX_OUTPUT_TOKENS, OPENAI_TOP_P,
// OPENAI_JSON_MODE, OPENAI_REASONING_EFFORT, OPENAI_VERBOSITY, OPENAI_THINKING_BUDGET and
// OPENAI_INCLUDE_THOUGHTS.
func LoadProviderConfig(prefix string) (ProviderConfig, error) {
	name := strings.TrimSpace(prefix)
	if name == "" {
		name = getEnvString(ProviderEnvVar, DefaultProvider)
	}
	name = NormalizeProvider(name)
	if name == MockProvider {
		return MockProviderConfig(), nil
	}

	info, err := getProviderInfo(name)
	if err != nil {
		return ProviderConfig{}, err
	}
	env := strings.ToUpper(name)

	apiKey := strings.TrimSpace(os.Getenv(env + "_API_KEY"))
	if apiKey == "" {
		return ProviderConfig{}, fmt.Errorf("%s_API_KEY environment variable not set", env)
	}

	model := getEnvString(env+"_MODEL", info.defaultModel)

	settings, err := loadProviderSettings(env)
	if err != nil {
		return ProviderConfig{}, err
	}

	return ProviderConfig{
		Name:     name,
		APIKey:   apiKey,
		Model:    model,
		Settings: settings,
	}, nil
}

func loadProviderSettings(env string) (ProviderSettings, error) {
	settings := DefaultProviderSettings()

	temperature, err := getEnvFloat64(env+"_TEMPERATURE", settings.Temperature)
	if err != nil {
		return ProviderSettings{}, err
	}
	if temperature < 0 || temperature > 2 {
		return ProviderSettings{}, fmt.Errorf("invalid value for %s_TEMPERATURE: %v must be between 0 and 2", env, temperature)
	}
	settings.Temperature = temperature

	maxOutput, err := getEnvOptionalInt(env + "_MAX_OUTPUT_TOKENS")
	if err != nil {
		return ProviderSettings{}, err
	}
	if maxOutput != nil && *maxOutput > 0 {
		if *maxOutput < 16 {
			return ProviderSettings{}, fmt.Errorf("invalid value for %s_MAX_OUTPUT_TOKENS: %d must be at least 16", env, *maxOutput)
		}
		settings.MaxOutputTokens = maxOutput
	}

	topP, err := getEnvOptionalFloat64(env + "_TOP_P")
	if err != nil {
		return ProviderSettings{}, err
	}
	if topP != nil && (*topP < 0 || *topP > 1) {
		return ProviderSettings{}, fmt.Errorf("invalid value for %s_TOP_P: %v must be between 0 and 1", env, *topP)
	}
	settings.TopP = topP

	thinking, err := getEnvOptionalInt(env + "_THINKING_BUDGET")
	if err != nil {
		return ProviderSettings{}, err
	}
	settings.ThinkingBudget = thinking

	settings.JSONMode = getEnvBool(env + "_JSON_MODE")
	settings.ReasoningEffort = getEnvOptionalString(env + "_REASONING_EFFORT")
	settings.Verbosity = getEnvOptionalString(env + "_VERBOSITY")
	settings.IncludeThoughts = getEnvBool(env + "_INCLUDE_THOUGHTS")

	return settings, nil
}

// NormalizeProvider converts provider aliases to canonical lower-case names.
func NormalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = NormalizeProvider(provider)
	if _, err := getProviderInfo(provider); err != nil {
		return "", err
	}

	env := strings.ToUpper(provider) + "_API_KEY"
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", env)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = NormalizeProvider(provider)
	if provider == MockProvider {
		return MockProvider, nil
	}

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}
	return getEnvString(strings.ToUpper(provider)+"_MODEL", info.defaultModel), nil
}

// SupportedProviders returns the sorted list of supported provider names, mock included.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers)+1)
	result = append(result, MockProvider)
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
