// Package mongo stores enrolled identities as documents in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kozaktomas/face-auth/internal/config"
)

const (
	DefaultDatabase = "face_auth_db"
	usersCollection = "users"
	connectTimeout  = 15 * time.Second
)

// Client wraps a connected mongo client and the users collection.
type Client struct {
	client *mongo.Client
	users  *mongo.Collection
}

// Connect opens a client, verifies it with a ping and makes sure the
// username index exists.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("mongo URL is required")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URL)
	clientOpts.SetMinPoolSize(uint64(min(5, cfg.MaxIdleConns)))
	clientOpts.SetMaxPoolSize(uint64(max(1, cfg.MaxOpenConns)))

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = DefaultDatabase
	}
	users := client.Database(name).Collection(usersCollection)

	if err := setUpIndexes(ctx, users); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info().Str("backend", "mongo").Str("database", name).Msg("Database initialized")
	return &Client{client: client, users: users}, nil
}

// setUpIndexes creates the unique username index and the registration-time index.
func setUpIndexes(ctx context.Context, users *mongo.Collection) error {
	_, err := users.Indexes().CreateMany(ctx, []mongo.IndexModel{{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	}, {
		Keys:    bson.D{{Key: "registered_at", Value: 1}},
		Options: options.Index().SetName("registered_at"),
	}})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting mongo: %w", err)
	}
	return nil
}
