package governor

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/flanksource/commons/logger"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig holds counter store configuration.
type SQLiteConfig struct {
	DBPath string // Database file path (default: ~/.cache/aicore-usage.db)
}

// SQLiteCounterStore implements CounterStore on SQLite. Increments are
// single upsert statements, so each one is atomic under SQLite's write
// serialization. Expiry is lazy on reads with a periodic cleanup sweep.
type SQLiteCounterStore struct {
	db        *sql.DB
	stop      chan struct{}
	done      chan struct{} // closed when the cleanup sweep exits
	closeOnce sync.Once
}

// NewSQLiteCounterStore opens (or creates) the counter database. The caller
// owns the store's lifecycle and must Close it.
func NewSQLiteCounterStore(config SQLiteConfig) (*SQLiteCounterStore, error) {
	if config.DBPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		config.DBPath = filepath.Join(homeDir, ".cache", "aicore-usage.db")
	}

	if err := os.MkdirAll(filepath.Dir(config.DBPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create counter directory: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(counterSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store := &SQLiteCounterStore{db: db, stop: make(chan struct{}), done: make(chan struct{})}
	go store.cleanupExpired()

	return store, nil
}

// Close stops the cleanup sweep and closes the database connection.
func (s *SQLiteCounterStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		if closeErr := s.db.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close database: %w", closeErr)
		}
	})
	return err
}

func (s *SQLiteCounterStore) incr(ctx context.Context, key, field string, delta float64) error {
	query := `
		INSERT INTO usage_counters (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET
			value = value + excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key, field, delta); err != nil {
		return fmt.Errorf("%w: %v", ErrCounterStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteCounterStore) IncrBy(ctx context.Context, key, field string, delta int64) error {
	return s.incr(ctx, key, field, float64(delta))
}

func (s *SQLiteCounterStore) IncrByFloat(ctx context.Context, key, field string, delta float64) error {
	return s.incr(ctx, key, field, delta)
}

func (s *SQLiteCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	query := `
		INSERT INTO usage_counter_expiry (key, expires_at) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, time.Now().Add(ttl).UTC()); err != nil {
		return fmt.Errorf("%w: %v", ErrCounterStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteCounterStore) Fields(ctx context.Context, key string) (map[string]string, error) {
	query := `
		SELECT c.field, c.value
		FROM usage_counters c
		LEFT JOIN usage_counter_expiry e ON e.key = c.key
		WHERE c.key = ?
		  AND (e.expires_at IS NULL OR e.expires_at > ?)
	`
	rows, err := s.db.QueryContext(ctx, query, key, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCounterStoreUnavailable, err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var field string
		var value float64
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		if value == float64(int64(value)) {
			result[field] = strconv.FormatInt(int64(value), 10)
		} else {
			result[field] = strconv.FormatFloat(value, 'f', -1, 64)
		}
	}
	return result, rows.Err()
}

// cleanupExpired removes counters whose retention window has passed.
func (s *SQLiteCounterStore) cleanupExpired() {
	defer close(s.done)

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		query := `
			DELETE FROM usage_counters WHERE key IN (
				SELECT key FROM usage_counter_expiry WHERE expires_at < ?
			)
		`
		now := time.Now().UTC()
		if _, err := s.db.Exec(query, now); err != nil {
			logger.Warnf("failed to clean up expired counters: %v", err)
			continue
		}
		if _, err := s.db.Exec("DELETE FROM usage_counter_expiry WHERE expires_at < ?", now); err != nil {
			logger.Warnf("failed to clean up counter expiries: %v", err)
		}
	}
}
