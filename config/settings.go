// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Cache, persistence and logging configuration
//
// Provider credentials and sampling defaults are loaded per provider by
// LoadProviderConfig, since a single run may address several providers.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Settings holds all application configuration that is not provider specific.
type Settings struct {
	Cache CacheSettings
	Store StoreSettings
	Log   LogSettings
}

// CacheSettings configures the provider response cache.
type CacheSettings struct {
	TTL               time.Duration
	ContextTokenLimit int
	// StoreURL selects the shared cache tier (postgres://... or sqlite://path).
	// Empty means process-local only.
	StoreURL      string
	LocalCapacity int
}

// StoreSettings configures the project persistence gateway.
type StoreSettings struct {
	DatabaseURL string
}

// LogSettings configures structured logging.
type LogSettings struct {
	Level   string
	Format  string
	Service string
}

// Defaults for cache and prompt trimming.
const (
	DefaultCacheTTLSeconds   = 900
	DefaultContextTokenLimit = 12000
	DefaultLocalCacheEntries = 1024
)

// New creates settings, loading values from environment variables.
// Returns an error if environment variables contain invalid values.
func New() (Settings, error) {
	ttlSeconds, err := getEnvInt("LLM_CACHE_TTL_SECONDS", DefaultCacheTTLSeconds)
	if err != nil {
		return Settings{}, err
	}
	if ttlSeconds < 0 {
		return Settings{}, fmt.Errorf("invalid value for LLM_CACHE_TTL_SECONDS: %d must not be negative", ttlSeconds)
	}

	tokenLimit, err := getEnvInt("CONTEXT_TOKEN_LIMIT", DefaultContextTokenLimit)
	if err != nil {
		return Settings{}, err
	}

	localEntries, err := getEnvInt("LLM_CACHE_LOCAL_ENTRIES", DefaultLocalCacheEntries)
	if err != nil {
		return Settings{}, err
	}
	if localEntries <= 0 {
		localEntries = DefaultLocalCacheEntries
	}

	dbURL := os.Getenv("BOOKFORGE_DATABASE_URL")
	if dbURL == "" {
		dbURL = DefaultDatabasePath()
	}

	return Settings{
		Cache: CacheSettings{
			TTL:               time.Duration(ttlSeconds) * time.Second,
			ContextTokenLimit: tokenLimit,
			StoreURL:          strings.TrimSpace(os.Getenv("LLM_CACHE_URL")),
			LocalCapacity:     localEntries,
		},
		Store: StoreSettings{
			DatabaseURL: dbURL,
		},
		Log: LogSettings{
			Level:   getEnvString("LOG_LEVEL", "info"),
			Format:  getEnvString("LOG_FORMAT", "json"),
			Service: getEnvString("SERVICE_NAME", "orchestrator"),
		},
	}, nil
}

// MustNew creates settings from the environment.
// Panics if environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// DefaultDatabasePath returns the sqlite database used when no URL is configured.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".bookforge", "bookforge.db")
	}
	return filepath.Join(home, ".bookforge", "bookforge.db")
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvOptionalInt(key string) (*int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return &i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvOptionalFloat64(key string) (*float64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return &f, nil
}

func getEnvOptionalString(key string) *string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	return &val
}

// getEnvBool accepts true/1/yes/on (case-insensitive); anything else is false.
func getEnvBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
