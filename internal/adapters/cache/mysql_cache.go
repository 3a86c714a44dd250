package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/attachment-triage/internal/core"
)

// MySQLCache is a MySQL implementation of the VerdictCache interface.
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMySQLCache connects to MySQL and ensures the cache table exists. The
// DSN should include parseTime=true so timestamps scan into time.Time.
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdict_cache (
			email_id VARCHAR(255) PRIMARY KEY,
			relevant TEXT NOT NULL,
			irrelevant TEXT NOT NULL,
			last_seen TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_verdict_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	c := &MySQLCache{
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
func (c *MySQLCache) Get(ctx context.Context, emailID string) (*core.CacheEntry, error) {
	var relevantJSON, irrelevantJSON string
	var lastSeen, expiresAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT relevant, irrelevant, last_seen, expires_at
		FROM verdict_cache
		WHERE email_id = ? AND expires_at > NOW()
	`, emailID).Scan(&relevantJSON, &irrelevantJSON, &lastSeen, &expiresAt)
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
func (c *MySQLCache) Set(ctx context.Context, entry *core.CacheEntry) error {
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
		ON DUPLICATE KEY UPDATE
			relevant = VALUES(relevant),
			irrelevant = VALUES(irrelevant),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)
	`, entry.EmailID, string(relevantJSON), string(irrelevantJSON), entry.LastSeen, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry.
func (c *MySQLCache) Delete(ctx context.Context, emailID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE email_id = ?`, emailID)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries.
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return fmt.Errorf("failed to clean up cache: %w", err)
	}
	if removed, err := res.RowsAffected(); err == nil && removed > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("removed", removed))
	}
	return nil
}

// Stop terminates the background cleanup task and closes the connection.
func (c *MySQLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close MySQL connection", zap.Error(err))
		}
	})
}

func (c *MySQLCache) startCleanupTask() {
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
