package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/llm"
)

// Key derives the cache key for a request. The original, untrimmed prompt is part of the
// key so a trimmed request and its source share one entry.
//
// encoding/json writes map keys in sorted order, which makes the serialised form canonical.
func Key(cfg config.ProviderConfig, req *llm.Request, stage, originalPrompt string) (string, error) {
	payload := map[string]any{
		"provider":          cfg.Name,
		"model":             cfg.Model,
		"stage":             stage,
		"prompt":            originalPrompt,
		"system":            req.SystemPrompt,
		"json_schema":       req.JSONSchema,
		"temperature":       req.Temperature,
		"max_output_tokens": req.MaxOutputTokens,
		"top_p":             req.TopP,
		"reasoning_effort":  req.ReasoningEffort,
		"verbosity":         req.Verbosity,
		"thinking_budget":   req.ThinkingBudget,
		"include_thoughts":  req.IncludeThoughts,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	return hashText(buf.String()), nil
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
