package badger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/tracetm/domain/cache"
)

const namespace = "results:"

// Cache is a BadgerDB-backed implementation of cache.Cache.
type Cache struct {
	db        *badger.DB
	keyPrefix string
	hits      atomic.Int64
	misses    atomic.Int64
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
	closeOnce sync.Once
}

// NewCache opens a database and starts value log GC when configured.
func NewCache(cfg Config, opts ...Option) (*Cache, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	c := NewCacheFromDB(db, cfg.KeyPrefix)
	if cfg.GCInterval > 0 && !cfg.InMemory {
		c.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return c, nil
}

// NewCacheFromDB creates a cache over an open database.
func NewCacheFromDB(db *badger.DB, keyPrefix string) *Cache {
	return &Cache{
		db:        db,
		keyPrefix: keyPrefix,
		gcStop:    make(chan struct{}),
	}
}

func (c *Cache) startGC(interval time.Duration, discardRatio float64) {
	c.gcWg.Add(1)
	go func() {
		defer c.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.gcStop:
				return
			case <-ticker.C:
				// RunValueLogGC returns an error once nothing is left to rewrite.
				for c.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

func (c *Cache) prefix() []byte {
	return []byte(c.keyPrefix + namespace)
}

func (c *Cache) prefixKey(key string) []byte {
	return []byte(c.keyPrefix + namespace + key)
}

// Get retrieves a value from the cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.prefixKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapError(err)
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

	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(c.prefixKey(key), value)
		if opts.TTL > 0 {
			e = e.WithTTL(opts.TTL)
		}
		return txn.SetEntry(e)
	})
	return wrapError(err)
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return wrapError(c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(c.prefixKey(key))
	}))
}

// Exists checks if a key exists in the cache.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(c.prefixKey(key))
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapError(err)
	}
	return true, nil
}

// Clear removes every result under the key prefix.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapError(c.db.DropPrefix(c.prefix()))
}

// Keys returns the cached result keys, without the prefix.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	strip := len(c.prefix())
	var keys []string

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = c.prefix()

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[strip:]))
		}
		return nil
	})
	return keys, wrapError(err)
}

// Stats returns cache statistics. Size is counted by a key-only scan.
func (c *Cache) Stats() cache.Stats {
	var size int64

	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = c.prefix()

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})

	return cache.Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
}

// Close stops GC and closes the database. It is safe to call more than once.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.gcStop)
		c.gcWg.Wait()
		err = c.db.Close()
	})
	return err
}

// DB returns the underlying database.
func (c *Cache) DB() *badger.DB {
	return c.db
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return errors.Join(cache.ErrConnectionFailed, err)
	}
	return err
}

var (
	_ cache.Cache         = (*Cache)(nil)
	_ cache.StatsProvider = (*Cache)(nil)
)
