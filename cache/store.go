package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/bookforge/internal/sqldb"
)

// Store is a shared cache tier visible to every process pointing at the same backend.
type Store interface {
	// Get returns the payload for key. Missing and expired entries report found=false.
	Get(ctx context.Context, key string) (payload []byte, found bool, err error)
	// Set stores payload under key for ttl.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Close() error
}

// SQLStore keeps cache entries in an llm_cache table.
// Works against sqlite (mattn/go-sqlite3) and Postgres (pgx stdlib driver).
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// OpenStore opens a shared cache store from a URL.
// postgres:// and postgresql:// URLs use pgx; sqlite://path or a bare path uses sqlite.
func OpenStore(url string) (*SQLStore, error) {
	if sqldb.IsPostgresURL(url) {
		db, err := sql.Open("pgx", url)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres cache: %w", err)
		}
		return newSQLStore(db, true)
	}

	path := strings.TrimPrefix(url, "sqlite://")
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	return newSQLStore(db, false)
}

func newSQLStore(db *sql.DB, postgres bool) (*SQLStore, error) {
	s := &SQLStore{db: db, postgres: postgres}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS llm_cache (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			expires_at BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}
	return nil
}

func (s *SQLStore) rebind(query string) string {
	return sqldb.Rebind(query, s.postgres)
}

// Get implements Store. Expired rows are deleted on read.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT payload, expires_at FROM llm_cache WHERE key = ?"), key,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if expiresAt < time.Now().UnixMilli() {
		if _, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM llm_cache WHERE key = ?"), key); err != nil {
			return nil, false, fmt.Errorf("failed to purge expired cache entry: %w", err)
		}
		return nil, false, nil
	}
	return []byte(payload), true, nil
}

// Set implements Store.
func (s *SQLStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).UnixMilli()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO llm_cache (key, payload, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at
	`), key, string(payload), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Verify SQLStore implements Store
var _ Store = (*SQLStore)(nil)
