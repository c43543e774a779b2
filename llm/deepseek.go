// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL
// - Supports deepseek-chat and deepseek-reasoner models
// - JSON schemas are not supported natively; json_object mode plus a schema hint is used

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/richinex/bookforge/config"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements the Provider interface for DeepSeek.
type DeepSeekProvider struct {
	client   *openai.Client
	model    string
	settings config.ProviderSettings
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(cfg config.ProviderConfig) *DeepSeekProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = deepseekBaseURL

	return &DeepSeekProvider{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    cfg.Model,
		settings: cfg.Settings,
	}
}

// Name returns the provider name.
func (p *DeepSeekProvider) Name() string {
	return "deepseek"
}

// Model returns the current model.
func (p *DeepSeekProvider) Model() string {
	return p.model
}

// Capabilities reports DeepSeek feature support.
func (p *DeepSeekProvider) Capabilities() Capabilities {
	return Capabilities{SupportsJSONMode: true}
}

// Generate sends a single chat completion request.
func (p *DeepSeekProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	prm := resolveParams(req, p.settings)

	system := req.SystemPrompt
	if req.JSONSchema != nil {
		hint, err := schemaHint(req.JSONSchema)
		if err != nil {
			return nil, err
		}
		system = joinNonEmpty(system, hint)
	}

	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	body := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: float32(prm.temperature),
	}
	if prm.topP != nil {
		body.TopP = float32(*prm.topP)
	}
	if prm.maxOutputTokens != nil {
		body.MaxTokens = *prm.maxOutputTokens
	}
	if req.JSONSchema != nil || p.settings.JSONMode {
		body.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("deepseek completion failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if content == "" {
		return nil, NewProviderResponseError("DeepSeek returned an empty completion", nil)
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}

	return &Response{
		Text:             content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		CostUSD:          EstimateCost(p.Name(), p.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		LatencyMs:        elapsedMs(start),
		ReceivedAt:       time.Now().UTC(),
	}, nil
}

// schemaHint renders a schema as an instruction for providers without native schema support.
func schemaHint(schema map[string]any) (string, error) {
	encoded, err := json.Marshal(schema)
	if err != nil {
		return "", NewProviderResponseError("failed to encode response schema", err)
	}
	return "Respond only with a JSON object matching this JSON schema:\n" + string(encoded), nil
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}

// Verify DeepSeekProvider implements Provider
var _ Provider = (*DeepSeekProvider)(nil)
