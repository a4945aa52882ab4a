// Package badger provides an embedded BadgerDB result cache.
package badger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/tracetm/infrastructure/logging"
)

// Config configures BadgerDB storage.
type Config struct {
	// Dir is the directory to store data in. Ignored when InMemory is set.
	Dir string

	InMemory   bool
	SyncWrites bool

	// ValueLogFileSize sets the size of value log files in bytes.
	ValueLogFileSize int64

	// NumVersionsToKeep sets the number of versions to keep per key.
	NumVersionsToKeep int

	GCDiscardRatio float64

	// GCInterval is the interval between value log GC runs (0 disables).
	GCInterval time.Duration

	// KeyPrefix is added to all keys.
	KeyPrefix string

	// Logger receives badger's internal messages. Nil routes them to the
	// application logger.
	Logger badger.Logger
}

// Option configures BadgerDB storage.
type Option func(*Config)

// WithDir sets the data directory.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithInMemory enables in-memory storage.
func WithInMemory() Option {
	return func(c *Config) {
		c.InMemory = true
	}
}

// WithSyncWrites enables synchronous writes.
func WithSyncWrites() Option {
	return func(c *Config) {
		c.SyncWrites = true
	}
}

// WithGCInterval sets the GC interval.
func WithGCInterval(d time.Duration) Option {
	return func(c *Config) {
		c.GCInterval = d
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger badger.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns a persistent configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:               dir,
		ValueLogFileSize:  1 << 26, // 64MB
		NumVersionsToKeep: 1,
		GCDiscardRatio:    0.5,
		GCInterval:        5 * time.Minute,
	}
}

// ErrConnectionFailed is returned when the database cannot be opened.
var ErrConnectionFailed = errors.New("badger: open failed")

func openDB(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(boltLogger{})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return db, nil
}

// boltLogger forwards badger's printf-style logging to bolt.
// Badger's info output is routine compaction chatter, so it is logged at debug.
type boltLogger struct{}

func format(f string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(f, args...))
}

func (boltLogger) Errorf(f string, args ...interface{}) {
	logging.Error().Add(logging.Component("badger")).Msg(format(f, args))
}

func (boltLogger) Warningf(f string, args ...interface{}) {
	logging.Warn().Add(logging.Component("badger")).Msg(format(f, args))
}

func (boltLogger) Infof(f string, args ...interface{}) {
	logging.Debug().Add(logging.Component("badger")).Msg(format(f, args))
}

func (boltLogger) Debugf(f string, args ...interface{}) {
	logging.Trace().Add(logging.Component("badger")).Msg(format(f, args))
}

var _ badger.Logger = boltLogger{}
