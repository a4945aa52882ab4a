package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/tracetm/domain/cache"
)

// Cache is a SQLite-backed implementation of cache.Cache. Expiry is checked
// on read; Cleanup drops expired rows in bulk.
type Cache struct {
	db        *sql.DB
	keyPrefix string
	now       func() time.Time
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewCache opens a database and prepares the result_cache table.
func NewCache(cfg Config, opts ...Option) (*Cache, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db, keyPrefix: cfg.KeyPrefix, now: time.Now}
	if cfg.AutoMigrate {
		if err := c.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return c, nil
}

// NewCacheFromDB creates a cache on an existing connection, typically one
// shared with a TrialStore.
func NewCacheFromDB(db *sql.DB, keyPrefix string) (*Cache, error) {
	c := &Cache{db: db, keyPrefix: keyPrefix, now: time.Now}
	if err := c.migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS result_cache (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_result_cache_expires_at ON result_cache(expires_at);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

func (c *Cache) prefixKey(key string) string {
	return c.keyPrefix + key
}

// Get retrieves a value from the cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	k := c.prefixKey(key)
	var value []byte
	var expiresAt sql.NullInt64

	err := c.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM result_cache WHERE key = ?", k,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Join(cache.ErrConnectionFailed, err)
	}

	if expiresAt.Valid && expiresAt.Int64 <= c.now().UnixNano() {
		_, _ = c.db.ExecContext(ctx, "DELETE FROM result_cache WHERE key = ?", k)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return value, true, nil
}

// Set stores a value in the cache.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts cache.SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	now := c.now()
	var expiresAt sql.NullInt64
	if opts.TTL > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(opts.TTL).UnixNano(), Valid: true}
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO result_cache (key, value, expires_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		c.prefixKey(key), value, expiresAt, now.UnixNano(),
	)
	return err
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, "DELETE FROM result_cache WHERE key = ?", c.prefixKey(key))
	return err
}

// Exists checks if an unexpired key exists in the cache.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var one int
	err := c.db.QueryRowContext(ctx,
		"SELECT 1 FROM result_cache WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)",
		c.prefixKey(key), c.now().UnixNano(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes every entry under this cache's prefix.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.keyPrefix == "" {
		_, err := c.db.ExecContext(ctx, "DELETE FROM result_cache")
		return err
	}
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM result_cache WHERE substr(key, 1, ?) = ?",
		len(c.keyPrefix), c.keyPrefix,
	)
	return err
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var size int64
	_ = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM result_cache").Scan(&size)

	return cache.Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
}

// Cleanup removes expired entries.
func (c *Cache) Cleanup(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	res, err := c.db.ExecContext(ctx,
		"DELETE FROM result_cache WHERE expires_at IS NOT NULL AND expires_at <= ?",
		c.now().UnixNano(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

var (
	_ cache.Cache         = (*Cache)(nil)
	_ cache.StatsProvider = (*Cache)(nil)
)
