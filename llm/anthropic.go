// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Schema guidance folded into the system prompt

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/richinex/bookforge/config"
)

// anthropicDefaultMaxTokens is used when no output budget is configured; the API requires one.
const anthropicDefaultMaxTokens = 4096

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client   anthropic.Client
	model    string
	settings config.ProviderSettings
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg config.ProviderConfig) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	return &AnthropicProvider{
		client:   client,
		model:    cfg.Model,
		settings: cfg.Settings,
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Capabilities reports Anthropic feature support.
func (p *AnthropicProvider) Capabilities() Capabilities {
	return Capabilities{
		SupportsJSONMode:  true,
		SupportsToolCalls: true,
	}
}

// Generate sends a single Messages API request.
func (p *AnthropicProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	prm := resolveParams(req, p.settings)

	maxTokens := int64(anthropicDefaultMaxTokens)
	if prm.maxOutputTokens != nil {
		maxTokens = int64(*prm.maxOutputTokens)
	}

	body := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(prm.temperature),
	}
	if prm.topP != nil {
		body.TopP = anthropic.Float(*prm.topP)
	}

	system := req.SystemPrompt
	if req.JSONSchema != nil {
		hint, err := schemaHint(req.JSONSchema)
		if err != nil {
			return nil, err
		}
		system = joinNonEmpty(system, hint)
	}
	if system != "" {
		body.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	start := time.Now()
	message, err := p.client.Messages.New(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(variant.Text)
		}
	}
	if content.Len() == 0 {
		return nil, NewProviderResponseError("Anthropic returned an empty completion", nil)
	}

	model := string(message.Model)
	if model == "" {
		model = p.model
	}
	promptTokens := int(message.Usage.InputTokens)
	completionTokens := int(message.Usage.OutputTokens)

	return &Response{
		Text:             content.String(),
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          EstimateCost(p.Name(), p.model, promptTokens, completionTokens),
		LatencyMs:        elapsedMs(start),
		ReceivedAt:       time.Now().UTC(),
	}, nil
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
