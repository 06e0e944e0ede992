// Package database owns the mongo connection, the typed collection handles,
// index creation, and the startup recovery of documents left behind by an
// unclean shutdown.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/komodo-sh/komodo/pkg/config"
)

const (
	connectTimeout = 10 * time.Second
	appName        = "komodo-core"
)

// Client wraps the mongo client with the database handle and the typed
// collection set.
type Client struct {
	client *mongo.Client
	db     *mongo.Database

	Collections *Collections
}

// New connects to mongo, verifies the connection with a ping, and prepares
// the collection handles. Callers must Close the client on shutdown.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI()).
		SetAppName(appName).
		SetMaxPoolSize(20).
		SetConnectTimeout(connectTimeout)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.DBName)

	slog.Info("Connected to database", "db_name", cfg.DBName)

	return &Client{
		client:      client,
		db:          db,
		Collections: newCollections(db),
	}, nil
}

// Database exposes the raw handle for callers needing ad-hoc access.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Close disconnects from mongo.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
