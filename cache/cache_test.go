package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/llm"
)

type countingProvider struct {
	calls   int
	prompts []string
	err     error
}

func (p *countingProvider) Name() string                   { return "mock" }
func (p *countingProvider) Model() string                  { return "mock" }
func (p *countingProvider) Capabilities() llm.Capabilities { return llm.Capabilities{} }

func (p *countingProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.calls++
	p.prompts = append(p.prompts, req.Prompt)
	if p.err != nil {
		return nil, p.err
	}
	cost := 0.25
	return &llm.Response{
		Text:             "answer",
		Model:            "mock-model",
		PromptTokens:     3,
		CompletionTokens: 1,
		CostUSD:          &cost,
		LatencyMs:        12.5,
		ReceivedAt:       time.Now(),
	}, nil
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) Close() error { return nil }

func testSettings() config.CacheSettings {
	return config.CacheSettings{TTL: time.Minute, ContextTokenLimit: 12000, LocalCapacity: 16}
}

func TestKeyIsDeterministic(t *testing.T) {
	cfg := config.MockProviderConfig()
	temp := 0.4
	a := &llm.Request{Prompt: "p", SystemPrompt: "s", Temperature: &temp,
		JSONSchema: map[string]any{"type": "object", "required": []string{"a"}}}
	b := &llm.Request{Prompt: "p", SystemPrompt: "s", Temperature: &temp,
		JSONSchema: map[string]any{"required": []string{"a"}, "type": "object"}}

	ka, err := Key(cfg, a, "TITLE", a.Prompt)
	require.NoError(t, err)
	kb, err := Key(cfg, b, "TITLE", b.Prompt)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Len(t, ka, 64)

	other := 0.5
	b.Temperature = &other
	kc, err := Key(cfg, b, "TITLE", b.Prompt)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc)

	kd, err := Key(cfg, a, "RESEARCH", a.Prompt)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kd)
}

func TestGenerateHitSkipsProvider(t *testing.T) {
	c := New(testSettings())
	provider := &countingProvider{}
	cfg := config.MockProviderConfig()

	first, err := c.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "hello"}, "IDEA")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := c.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "hello"}, "IDEA")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "answer", second.Text)
	assert.Equal(t, "mock-model", second.Model)
	require.NotNil(t, second.CostUSD)
	assert.InDelta(t, 0.25, *second.CostUSD, 1e-9)
	assert.InDelta(t, 12.5, second.LatencyMs, 1e-9)
}

func TestGenerateTrimsLongPromptAndKeysOnOriginal(t *testing.T) {
	settings := testSettings()
	settings.ContextTokenLimit = 256
	c := New(settings)
	provider := &countingProvider{}
	cfg := config.MockProviderConfig()
	long := strings.Repeat("word ", 1000)

	req := &llm.Request{Prompt: long}
	_, err := c.Generate(context.Background(), cfg, provider, req, "STRUCTURE")
	require.NoError(t, err)

	require.Len(t, provider.prompts, 1)
	assert.True(t, strings.HasPrefix(provider.prompts[0], "[context trimmed to ~256 tokens]"))
	trimming, ok := req.Metadata["trimming"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, trimming["applied"])
	assert.Equal(t, 256, trimming["limit_tokens"])
	assert.Equal(t, hashText(long), trimming["original_hash"])

	again, err := c.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: long}, "STRUCTURE")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 1, provider.calls)
}

func TestGenerateRecordsEffectiveTrimLimit(t *testing.T) {
	cfg := config.MockProviderConfig()

	settings := testSettings()
	settings.ContextTokenLimit = 10
	req := &llm.Request{Prompt: strings.Repeat("word ", 1000)}
	_, err := New(settings).Generate(context.Background(), cfg, &countingProvider{}, req, "STRUCTURE")
	require.NoError(t, err)
	trimming := req.Metadata["trimming"].(map[string]any)
	assert.Equal(t, MinTokenLimit, trimming["limit_tokens"])
	assert.True(t, strings.HasPrefix(req.Prompt, "[context trimmed to ~256 tokens]"))

	// an unset limit falls back to the default instead of the floor
	settings.ContextTokenLimit = 0
	provider := &countingProvider{}
	req = &llm.Request{Prompt: strings.Repeat("word ", 1000)}
	_, err = New(settings).Generate(context.Background(), cfg, provider, req, "STRUCTURE")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"applied": false}, req.Metadata["trimming"])

	req = &llm.Request{Prompt: strings.Repeat("word ", 10000)}
	_, err = New(settings).Generate(context.Background(), cfg, provider, req, "STRUCTURE")
	require.NoError(t, err)
	trimming = req.Metadata["trimming"].(map[string]any)
	assert.Equal(t, config.DefaultContextTokenLimit, trimming["limit_tokens"])
}

func TestGenerateMarksUntrimmed(t *testing.T) {
	c := New(testSettings())
	req := &llm.Request{Prompt: "short"}
	_, err := c.Generate(context.Background(), config.MockProviderConfig(), &countingProvider{}, req, "IDEA")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"applied": false}, req.Metadata["trimming"])

	preset := &llm.Request{Prompt: "short too", Metadata: map[string]any{"trimming": "kept"}}
	_, err = c.Generate(context.Background(), config.MockProviderConfig(), &countingProvider{}, preset, "IDEA")
	require.NoError(t, err)
	assert.Equal(t, "kept", preset.Metadata["trimming"])
}

func TestGenerateDoesNotCacheErrors(t *testing.T) {
	c := New(testSettings())
	provider := &countingProvider{err: errors.New("boom")}
	cfg := config.MockProviderConfig()

	_, err := c.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "x"}, "IDEA")
	require.Error(t, err)

	provider.err = nil
	resp, err := c.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "x"}, "IDEA")
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, provider.calls)
}

func TestGenerateFallsBackToLocalWhenSharedFails(t *testing.T) {
	c := New(testSettings(), WithStore(failingStore{}))
	provider := &countingProvider{}
	cfg := config.MockProviderConfig()

	_, err := c.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "x"}, "IDEA")
	require.NoError(t, err)
	resp, err := c.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "x"}, "IDEA")
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, provider.calls)
}

func TestGenerateWithSharedSqliteStore(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)

	writer := New(testSettings(), WithStore(store))
	reader := New(testSettings(), WithStore(store))
	defer writer.Close()
	provider := &countingProvider{}
	cfg := config.MockProviderConfig()

	_, err = writer.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "shared"}, "TITLE")
	require.NoError(t, err)
	resp, err := reader.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "shared"}, "TITLE")
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, provider.calls)
}

func TestSQLStoreIgnoresExpiredRows(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte(`{"text":"old"}`), -time.Second))
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", []byte(`{"text":"new"}`), time.Minute))
	payload, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"text":"new"}`, string(payload))
}

func TestZeroTTLDisablesCaching(t *testing.T) {
	settings := testSettings()
	settings.TTL = 0
	c := New(settings)
	provider := &countingProvider{}
	cfg := config.MockProviderConfig()

	for i := 0; i < 2; i++ {
		resp, err := c.Generate(context.Background(), cfg, provider, &llm.Request{Prompt: "x"}, "IDEA")
		require.NoError(t, err)
		assert.False(t, resp.Cached)
	}
	assert.Equal(t, 2, provider.calls)
}

func TestRebindForPostgres(t *testing.T) {
	s := &SQLStore{postgres: true}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", s.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
}
