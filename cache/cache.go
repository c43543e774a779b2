// Package cache provides the stage response cache.
//
// Information Hiding:
// - Cache key derivation from the effective request
// - Prompt trimming to the configured context budget
// - Shared SQL tier with a process-local TTL LRU fallback
// - Response encoding for storage
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/llm"
)

// StageCache memoises provider responses per stage.
// Safe for concurrent use; the local tier is internally locked and the shared tier is a
// database pool.
type StageCache struct {
	ttl        time.Duration
	tokenLimit int
	shared     Store
	local      *expirable.LRU[string, []byte]
	logger     *zap.Logger
}

// Option configures a StageCache.
type Option func(*StageCache)

// WithStore attaches a shared cache tier.
func WithStore(store Store) Option {
	return func(c *StageCache) {
		c.shared = store
	}
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *StageCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a stage cache from settings.
// A zero TTL disables caching while keeping prompt trimming.
func New(settings config.CacheSettings, opts ...Option) *StageCache {
	capacity := settings.LocalCapacity
	if capacity <= 0 {
		capacity = config.DefaultLocalCacheEntries
	}
	c := &StageCache{
		ttl:        settings.TTL,
		tokenLimit: EffectiveTokenLimit(settings.ContextTokenLimit),
		logger:     zap.NewNop(),
	}
	if c.ttl > 0 {
		c.local = expirable.NewLRU[string, []byte](capacity, nil, c.ttl)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// entry is the stored form of a response.
type entry struct {
	Text             string   `json:"text"`
	Model            string   `json:"model"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	CostUSD          *float64 `json:"cost_usd"`
	LatencyMs        float64  `json:"latency_ms"`
}

// Generate returns a cached response for req or calls provider and stores the result.
//
// On a miss the prompt may be trimmed in place, and req.Metadata["trimming"] records what
// happened. Provider errors are returned unchanged and never cached.
func (c *StageCache) Generate(ctx context.Context, cfg config.ProviderConfig, provider llm.Provider, req *llm.Request, stage string) (*llm.Response, error) {
	originalPrompt := req.Prompt
	key, err := Key(cfg, req, stage, originalPrompt)
	if err != nil {
		return nil, err
	}

	if payload, ok := c.get(ctx, key); ok {
		resp, err := decode(payload)
		if err == nil {
			return resp, nil
		}
		c.logger.Debug("discarding undecodable cache entry", zap.String("stage", stage), zap.Error(err))
	}

	if req.Metadata == nil {
		req.Metadata = make(map[string]any)
	}
	if trimmed, wasTrimmed := SummarisePrompt(originalPrompt, c.tokenLimit); wasTrimmed {
		req.Prompt = trimmed
		req.Metadata["trimming"] = map[string]any{
			"applied":       true,
			"limit_tokens":  c.tokenLimit,
			"original_hash": hashText(originalPrompt),
		}
	} else if _, exists := req.Metadata["trimming"]; !exists {
		req.Metadata["trimming"] = map[string]any{"applied": false}
	}

	resp, err := provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	c.set(ctx, key, resp, stage)
	return resp, nil
}

func (c *StageCache) get(ctx context.Context, key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	if c.shared != nil {
		payload, found, err := c.shared.Get(ctx, key)
		if err == nil && found {
			return payload, true
		}
		if err != nil {
			c.logger.Debug("shared cache read failed, using local tier", zap.Error(err))
		}
	}
	return c.local.Get(key)
}

func (c *StageCache) set(ctx context.Context, key string, resp *llm.Response, stage string) {
	if c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(entry{
		Text:             resp.Text,
		Model:            resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		CostUSD:          resp.CostUSD,
		LatencyMs:        resp.LatencyMs,
	})
	if err != nil {
		c.logger.Debug("failed to encode cache entry", zap.String("stage", stage), zap.Error(err))
		return
	}

	if c.shared != nil {
		err := c.shared.Set(ctx, key, payload, c.ttl)
		if err == nil {
			return
		}
		c.logger.Debug("shared cache write failed, using local tier", zap.Error(err))
	}
	c.local.Add(key, payload)
}

func decode(payload []byte) (*llm.Response, error) {
	var e entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	model := e.Model
	if model == "" {
		model = "unknown"
	}
	return &llm.Response{
		Text:             e.Text,
		Model:            model,
		PromptTokens:     e.PromptTokens,
		CompletionTokens: e.CompletionTokens,
		CostUSD:          e.CostUSD,
		LatencyMs:        e.LatencyMs,
		ReceivedAt:       time.Now().UTC(),
		Cached:           true,
	}, nil
}

// Close releases the shared tier, if any.
func (c *StageCache) Close() error {
	if c.shared == nil {
		return nil
	}
	return c.shared.Close()
}
