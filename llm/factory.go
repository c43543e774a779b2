// LLM Provider Factory - builds providers from resolved configuration.
//
// Quick Start:
//
//	// Mock provider, no credentials needed
//	provider, err := llm.NewProvider(config.MockProviderConfig())
//
//	// Environment-driven: LLM_PROVIDER plus <PROVIDER>_API_KEY, <PROVIDER>_MODEL, ...
//	cfg, err := config.LoadProviderConfig("")
//	provider, err := llm.NewProvider(cfg)
//
//	// Per-stage override layered over the environment
//	cfg, err := llm.ResolveConfig(&llm.ProviderOverride{Name: "openai", Model: "gpt-5"})

package llm

import (
	"fmt"
	"strings"

	"github.com/richinex/bookforge/config"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderMock is the offline deterministic provider.
	ProviderMock ProviderType = iota
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek provider.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderMock:
		return "mock"
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mock":
		return ProviderMock, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// NewProvider constructs the provider named by cfg.
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	providerType, err := ParseProviderType(cfg.Name)
	if err != nil {
		return nil, err
	}
	if providerType != ProviderMock && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key not configured", providerType)
	}

	switch providerType {
	case ProviderMock:
		return NewMockProvider(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(cfg), nil
	case ProviderGemini:
		return NewGeminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", providerType)
	}
}
