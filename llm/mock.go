package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/richinex/bookforge/config"
)

// MockText is the canned completion returned by MockProvider.
const MockText = "Mock response generated for testing."

// MockProvider is a deterministic offline provider for tests and local runs.
type MockProvider struct {
	cfg config.ProviderConfig
}

// NewMockProvider creates a mock provider.
func NewMockProvider(cfg config.ProviderConfig) *MockProvider {
	return &MockProvider{cfg: cfg}
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return config.MockProvider
}

// Model returns the configured model.
func (p *MockProvider) Model() string {
	return p.cfg.Model
}

// Capabilities reports mock capabilities.
func (p *MockProvider) Capabilities() Capabilities {
	maxOutput := 2000
	return Capabilities{
		SupportsJSONMode: true,
		MaxOutputTokens:  &maxOutput,
	}
}

// Generate echoes the prompt. Schema requests receive a small JSON object.
func (p *MockProvider) Generate(_ context.Context, req *Request) (*Response, error) {
	var text string
	if req.JSONSchema != nil {
		payload, err := json.Marshal(map[string]string{
			"message": MockText,
			"echo":    truncateRunes(req.Prompt, 50),
		})
		if err != nil {
			return nil, NewProviderResponseError("mock payload encoding failed", err)
		}
		text = string(payload)
	} else {
		text = MockText + "\nPrompt: " + truncateRunes(req.Prompt, 80)
	}

	zero := 0.0
	return &Response{
		Text:             text,
		Model:            config.MockProvider,
		PromptTokens:     len(strings.Fields(req.Prompt)),
		CompletionTokens: len(strings.Fields(text)),
		CostUSD:          &zero,
		LatencyMs:        1.0,
		ReceivedAt:       time.Now().UTC(),
	}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Verify MockProvider implements Provider
var _ Provider = (*MockProvider)(nil)
