// OpenAI Provider implementation using the official openai-go SDK.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Structured output via json_schema response format
// - GPT-5 reasoning effort and verbosity controls

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/richinex/bookforge/config"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client   openai.Client
	model    string
	settings config.ProviderSettings
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		client:   openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:    cfg.Model,
		settings: cfg.Settings,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Capabilities reports OpenAI feature support.
func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{
		SupportsJSONMode:        true,
		SupportsToolCalls:       true,
		SupportsReasoningEffort: true,
		SupportsVerbosity:       true,
	}
}

// Generate sends a single chat completion request.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	prm := resolveParams(req, p.settings)

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		Temperature: openai.Float(prm.temperature),
	}
	if prm.topP != nil {
		body.TopP = openai.Float(*prm.topP)
	}
	if prm.maxOutputTokens != nil {
		body.MaxCompletionTokens = openai.Int(int64(*prm.maxOutputTokens))
	}
	if prm.reasoningEffort != nil {
		body.ReasoningEffort = shared.ReasoningEffort(*prm.reasoningEffort)
	}

	switch {
	case req.JSONSchema != nil:
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "structured",
					Schema: req.JSONSchema,
				},
			},
		}
	case p.settings.JSONMode:
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	var opts []option.RequestOption
	if prm.verbosity != nil {
		opts = append(opts, option.WithJSONSet("verbosity", *prm.verbosity))
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, body, opts...)
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if content == "" {
		return nil, NewProviderResponseError("OpenAI returned an empty completion", nil)
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	promptTokens := int(resp.Usage.PromptTokens)
	completionTokens := int(resp.Usage.CompletionTokens)

	return &Response{
		Text:             content,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          EstimateCost(p.Name(), p.model, promptTokens, completionTokens),
		LatencyMs:        elapsedMs(start),
		ReceivedAt:       time.Now().UTC(),
	}, nil
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
