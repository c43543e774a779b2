// Package cli wires settings, storage, the response cache and the pipeline
// together for the bookforge command.
//
// Information Hiding:
// - Construction order of the logger, stores, cache and engines
// - Flag overrides layered onto environment settings
// - Output formatting
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/bookforge/cache"
	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/internal/logging"
	"github.com/richinex/bookforge/internal/telemetry"
	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/orchestration"
	"github.com/richinex/bookforge/stages"
	"github.com/richinex/bookforge/storage"
)

// Options holds values from global flags. Empty fields fall back to the environment.
type Options struct {
	DatabaseURL string
	Provider    string
	Model       string
	LogLevel    string
	LogFormat   string

	// Out receives command output; defaults to stdout.
	Out io.Writer
	// Logger replaces the logger built from settings.
	Logger *zap.Logger
	// Orchestration is appended to the orchestrator's options.
	Orchestration []orchestration.Option
}

// App is the wired application used by every command.
type App struct {
	Settings     config.Settings
	Logger       *zap.Logger
	Store        storage.ProjectStore
	Cache        *cache.StageCache
	Recorder     *telemetry.Recorder
	Orchestrator *orchestration.Orchestrator
	Runner       *orchestration.ProjectRunner
	Out          io.Writer

	override *llm.ProviderOverride
}

// Open builds an App from the environment and opts.
func Open(opts Options) (*App, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}
	if opts.DatabaseURL != "" {
		settings.Store.DatabaseURL = opts.DatabaseURL
	}
	if opts.LogLevel != "" {
		settings.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		settings.Log.Format = opts.LogFormat
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.New(settings.Log.Level, logging.Format(settings.Log.Format))
		if err != nil {
			return nil, err
		}
	}

	store, err := storage.Open(settings.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}

	cacheOpts := []cache.Option{cache.WithLogger(logger)}
	if settings.Cache.StoreURL != "" {
		shared, err := cache.OpenStore(settings.Cache.StoreURL)
		if err != nil {
			logger.Warn("shared cache unavailable, using local cache only", zap.Error(err))
		} else {
			cacheOpts = append(cacheOpts, cache.WithStore(shared))
		}
	}
	stageCache := cache.New(settings.Cache, cacheOpts...)

	recorder := telemetry.NewRecorder()
	engine := stages.NewEngine(stageCache, stages.WithLogger(logger))
	orchOpts := append([]orchestration.Option{
		orchestration.WithLogger(logger),
		orchestration.WithRecorder(recorder),
	}, opts.Orchestration...)
	orch := orchestration.New(engine, orchOpts...)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return &App{
		Settings:     settings,
		Logger:       logger,
		Store:        store,
		Cache:        stageCache,
		Recorder:     recorder,
		Orchestrator: orch,
		Runner:       orchestration.NewProjectRunner(store, orch, orchestration.WithRunnerLogger(logger)),
		Out:          out,
		override:     flagOverride(opts.Provider, opts.Model),
	}, nil
}

// Close releases the stores and flushes the logger.
func (a *App) Close() error {
	_ = a.Logger.Sync()
	cacheErr := a.Cache.Close()
	if err := a.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}

// Override returns the provider override built from --provider and --model, or nil.
func (a *App) Override() *llm.ProviderOverride {
	return a.override
}

func flagOverride(provider, model string) *llm.ProviderOverride {
	provider = strings.TrimSpace(provider)
	model = strings.TrimSpace(model)
	if provider == "" && model == "" {
		return nil
	}
	return &llm.ProviderOverride{Name: provider, Model: model}
}
