package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/mariadb"
	"github.com/kozaktomas/face-auth/internal/database/mongo"
	"github.com/kozaktomas/face-auth/internal/database/postgres"
)

// openStore connects to the backend named by DATABASE_BACKEND and registers it.
// The returned function closes the connection.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (func() error, error) {
	if cfg.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	var (
		store   database.IdentityWriter
		closeFn func() error
	)

	switch cfg.Backend {
	case "postgres", "postgresql":
		pool, err := postgres.Initialize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		store, closeFn = postgres.NewIdentityRepository(pool), pool.Close
	case "mariadb", "mysql":
		pool, err := mariadb.Initialize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		store, closeFn = mariadb.NewIdentityRepository(pool), pool.Close
	case "mongo", "mongodb":
		client, err := mongo.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		store, closeFn = mongo.NewIdentityRepository(client), client.Close
	default:
		return nil, fmt.Errorf("unknown DATABASE_BACKEND %q (want postgres, mariadb or mongo)", cfg.Backend)
	}

	database.RegisterBackend(cfg.Backend, func() database.IdentityWriter { return store })
	log.Info().Str("backend", cfg.Backend).Msg("Storage backend registered")
	return closeFn, nil
}
