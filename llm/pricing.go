package llm

import (
	"math"
	"strings"
)

// tokenPricing is expressed as USD per one million tokens.
type tokenPricing struct {
	inputPerMillion  float64
	outputPerMillion float64
}

var pricingTable = map[string]map[string]tokenPricing{
	"openai": {
		"gpt-5":             {1.25, 10.0},
		"gpt-5-mini":        {0.25, 2.0},
		"gpt-5-nano":        {0.05, 0.4},
		"gpt-5-chat-latest": {1.25, 10.0},
	},
	"gemini": {
		"gemini-2.5-pro":   {1.25, 10.0},
		"gemini-2.5-flash": {0.30, 2.5},
	},
}

// EstimateCost approximates the USD cost of a response.
//
// The mock provider is free (0). Unknown provider/model pairs return nil so callers can
// tell "free" from "unknown". Negative token counts are clamped to zero and the result is
// rounded to six decimal places.
func EstimateCost(provider, model string, promptTokens, completionTokens int) *float64 {
	providerKey := strings.ToLower(provider)
	if providerKey == "mock" {
		zero := 0.0
		return &zero
	}

	table, ok := pricingTable[providerKey]
	if !ok {
		return nil
	}
	pricing, ok := table[strings.ToLower(model)]
	if !ok {
		return nil
	}

	prompt := math.Max(float64(promptTokens), 0)
	completion := math.Max(float64(completionTokens), 0)
	cost := (prompt*pricing.inputPerMillion + completion*pricing.outputPerMillion) / 1_000_000.0
	cost = math.Round(cost*1e6) / 1e6
	return &cost
}
