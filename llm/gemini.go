// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Response schema conversion and thinking budget controls

package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/richinex/bookforge/config"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client   *genai.Client
	model    string
	settings config.ProviderSettings
	initErr  error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(cfg config.ProviderConfig) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiProvider{
			model:    cfg.Model,
			settings: cfg.Settings,
			initErr:  fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{
		client:   client,
		model:    cfg.Model,
		settings: cfg.Settings,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Capabilities reports Gemini feature support.
func (p *GeminiProvider) Capabilities() Capabilities {
	return Capabilities{
		SupportsJSONMode:         true,
		SupportsToolCalls:        true,
		SupportsThinking:         true,
		SupportsThoughtSummaries: true,
	}
}

// Generate sends a single GenerateContent request.
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if p.initErr != nil {
		return nil, p.initErr
	}
	if p.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	prm := resolveParams(req, p.settings)

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(prm.temperature)),
	}
	if prm.topP != nil {
		cfg.TopP = genai.Ptr(float32(*prm.topP))
	}
	if prm.maxOutputTokens != nil {
		cfg.MaxOutputTokens = int32(*prm.maxOutputTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.JSONSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = convertToGeminiSchema(req.JSONSchema)
	} else if p.settings.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	if prm.thinkingBudget != nil || prm.includeThoughts {
		thinking := &genai.ThinkingConfig{IncludeThoughts: prm.includeThoughts}
		if prm.thinkingBudget != nil {
			thinking.ThinkingBudget = genai.Ptr(int32(*prm.thinkingBudget))
		}
		cfg.ThinkingConfig = thinking
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	start := time.Now()
	response, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	content := response.Text()
	if content == "" {
		return nil, NewProviderResponseError("Gemini returned an empty completion", nil)
	}

	var promptTokens, completionTokens int
	if response.UsageMetadata != nil {
		promptTokens = int(response.UsageMetadata.PromptTokenCount)
		completionTokens = int(response.UsageMetadata.CandidatesTokenCount)
	}
	model := response.ModelVersion
	if model == "" {
		model = p.model
	}

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

// convertToGeminiSchema recursively converts a JSON schema map to Gemini format.
// Arrays always receive an items schema; Gemini rejects arrays without one.
func convertToGeminiSchema(node map[string]any) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject}

	if t, ok := node["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}
	if d, ok := node["description"].(string); ok {
		schema.Description = d
	}
	schema.Enum = stringList(node["enum"])
	schema.Required = stringList(node["required"])

	switch schema.Type {
	case genai.TypeArray:
		if items, ok := node["items"].(map[string]any); ok {
			schema.Items = convertToGeminiSchema(items)
		} else {
			schema.Items = &genai.Schema{Type: genai.TypeString}
		}
	case genai.TypeObject:
		if props, ok := node["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema, len(props))
			for name, prop := range props {
				if propMap, ok := prop.(map[string]any); ok {
					schema.Properties[name] = convertToGeminiSchema(propMap)
				}
			}
		}
	}

	return schema
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// mapToGeminiType maps JSON schema type to Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
