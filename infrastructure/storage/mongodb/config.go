// Package mongodb provides a MongoDB-backed trial store.
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// Config contains MongoDB connection configuration.
type Config struct {
	URI      string
	Database string

	ConnectTimeout time.Duration

	// QueryTimeout bounds every store operation.
	QueryTimeout time.Duration

	MaxPoolSize uint64
	MinPoolSize uint64
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "tracetm",
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   30 * time.Second,
		MaxPoolSize:    100,
		MinPoolSize:    2,
	}
}

// ConfigOption configures the MongoDB connection.
type ConfigOption func(*Config)

// WithURI sets the connection URI.
func WithURI(uri string) ConfigOption {
	return func(c *Config) {
		c.URI = uri
	}
}

// WithDatabase sets the database name.
func WithDatabase(db string) ConfigOption {
	return func(c *Config) {
		c.Database = db
	}
}

// WithQueryTimeout sets the per-operation timeout.
func WithQueryTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.QueryTimeout = d
	}
}

// Client wraps a MongoDB client bound to one database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	config   Config
}

// NewClient connects and pings the server.
func NewClient(ctx context.Context, opts ...ConfigOption) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, errors.Join(trial.ErrConnectionFailed, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Join(trial.ErrConnectionFailed, err)
	}

	return &Client{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

// Collection returns a collection from the database.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes used by trial listing.
func (c *Client) CreateIndexes(ctx context.Context, collection string) error {
	_, err := c.Collection(collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "machine", Value: 1}, {Key: "start_time", Value: -1}}},
		{Keys: bson.D{{Key: "outcome", Value: 1}}},
		{Keys: bson.D{{Key: "start_time", Value: -1}}},
	})
	return err
}
