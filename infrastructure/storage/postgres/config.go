// Package postgres provides a PostgreSQL-backed trial store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// Config configures the PostgreSQL connection pool.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// DSN, when set, is used as-is and the fields above are ignored.
	DSN string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// Schema holds the trials table.
	Schema string
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "tracetm",
		User:            "postgres",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		Schema:          "public",
	}
}

// ConfigOption configures the pool.
type ConfigOption func(*Config)

// WithDSN sets a full connection string.
func WithDSN(dsn string) ConfigOption {
	return func(c *Config) {
		c.DSN = dsn
	}
}

// WithHost sets the server host.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithCredentials sets the user and password.
func WithCredentials(user, password string) ConfigOption {
	return func(c *Config) {
		c.User = user
		c.Password = password
	}
}

// WithPoolSize sets the pool bounds.
func WithPoolSize(minConns, maxConns int32) ConfigOption {
	return func(c *Config) {
		c.MinConns = minConns
		c.MaxConns = maxConns
	}
}

// WithSchema sets the schema holding the trials table.
func WithSchema(schema string) ConfigOption {
	return func(c *Config) {
		c.Schema = schema
	}
}

// ConnectionString renders the keyword/value form accepted by pgx.
// Values containing spaces or quotes are single-quoted.
func (c Config) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		quote(c.Host), c.Port, quote(c.Database), quote(c.User), quote(c.Password), quote(c.SSLMode))
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Connect opens a pool and verifies the server is reachable.
func Connect(ctx context.Context, cfg Config, opts ...ConfigOption) (*pgxpool.Pool, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Join(trial.ErrConnectionFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(trial.ErrConnectionFailed, err)
	}
	return pool, nil
}
