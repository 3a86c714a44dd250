package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/attachment-triage/internal/core"
)

// SQLiteCache is a SQLite implementation of the VerdictCache interface. The
// relevant/irrelevant partitions are stored as JSON arrays.
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewSQLiteCache opens (or creates) the cache database.
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdict_cache (
			email_id TEXT PRIMARY KEY,
			relevant TEXT NOT NULL,
			irrelevant TEXT NOT NULL,
			last_seen TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_verdict_expires_at ON verdict_cache(expires_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	c := &SQLiteCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
	if cleanupFreq > 0 {
		go c.startCleanupTask()
	}
	return c, nil
}

// Get retrieves a cached entry for an email id.
func (c *SQLiteCache) Get(ctx context.Context, emailID string) (*core.CacheEntry, error) {
	var relevantJSON, irrelevantJSON string
	var lastSeen, expiresAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT relevant, irrelevant, last_seen, expires_at
		FROM verdict_cache
		WHERE email_id = ? AND expires_at > ?
	`, emailID, time.Now()).Scan(&relevantJSON, &irrelevantJSON, &lastSeen, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	entry := &core.CacheEntry{
		EmailID:   emailID,
		LastSeen:  lastSeen,
		ExpiresAt: expiresAt,
	}
	if err := json.Unmarshal([]byte(relevantJSON), &entry.Relevant); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", emailID, err)
	}
	if err := json.Unmarshal([]byte(irrelevantJSON), &entry.Irrelevant); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", emailID, err)
	}
	return entry, nil
}

// Set stores a cache entry.
func (c *SQLiteCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	relevantJSON, err := json.Marshal(entry.Relevant)
	if err != nil {
		return err
	}
	irrelevantJSON, err := json.Marshal(entry.Irrelevant)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO verdict_cache (email_id, relevant, irrelevant, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email_id) DO UPDATE SET
			relevant = excluded.relevant,
			irrelevant = excluded.irrelevant,
			last_seen = excluded.last_seen,
			expires_at = excluded.expires_at
	`, entry.EmailID, string(relevantJSON), string(irrelevantJSON), entry.LastSeen, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry.
func (c *SQLiteCache) Delete(ctx context.Context, emailID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE email_id = ?`, emailID)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries.
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean up cache: %w", err)
	}
	if removed, err := res.RowsAffected(); err == nil && removed > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("removed", removed))
	}
	return nil
}

// Stop terminates the background cleanup task and closes the database.
func (c *SQLiteCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close SQLite database", zap.Error(err))
		}
	})
}

func (c *SQLiteCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Cache cleanup failed", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}
