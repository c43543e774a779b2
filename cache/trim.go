package cache

import (
	"fmt"
	"strings"

	"github.com/richinex/bookforge/config"
)

// MinTokenLimit is the smallest soft token budget a prompt is trimmed to.
const MinTokenLimit = 256

// EffectiveTokenLimit is the budget SummarisePrompt trims to for limit.
// A limit of zero or less means unset and falls back to the default.
func EffectiveTokenLimit(limit int) int {
	switch {
	case limit <= 0:
		return config.DefaultContextTokenLimit
	case limit < MinTokenLimit:
		return MinTokenLimit
	default:
		return limit
	}
}

// SummarisePrompt trims prompt to roughly limit tokens (one token per four characters),
// keeping the head and tail and marking the cut. It reports whether trimming happened.
func SummarisePrompt(prompt string, limit int) (string, bool) {
	if prompt == "" {
		return prompt, false
	}
	limit = EffectiveTokenLimit(limit)

	runes := []rune(prompt)
	if len(runes)/4 <= limit {
		return prompt, false
	}

	maxChars := limit * 4
	headLen := maxChars / 2
	tailLen := maxChars - headLen

	head := strings.TrimSpace(string(runes[:headLen]))
	tail := strings.TrimSpace(string(runes[len(runes)-tailLen:]))

	return fmt.Sprintf(
		"[context trimmed to ~%d tokens]\n\n-- begin excerpt --\n%s\n\n...\n%s\n-- end excerpt --",
		limit, head, tail,
	), true
}
