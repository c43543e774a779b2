package stages

import (
	"context"

	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/model"
)

// Single runs a stage that has no dedicated agent loop as one plain call.
// Unset sampling parameters fall back to the provider settings.
func (e *Engine) Single(ctx context.Context, target Target, stage model.BookStage, prompt string) (*llm.Response, error) {
	s := e.session(target, stage)
	return s.generate(ctx, call{
		prompt:      prompt,
		temperature: temp(target.Config.Settings.Temperature),
	})
}
