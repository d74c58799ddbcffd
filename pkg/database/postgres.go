package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepstack-ai/prepstack-engine/pkg/config"
)

// DB wraps the pgxpool connection pool shared by all repositories.
type DB struct {
	*pgxpool.Pool
}

// NewConnection creates the request-path connection pool. Pool sizing and
// connection lifetimes come from the database config section; zero values
// keep the driver defaults.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}
	if cfg.ConnMaxLifetimeMin > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetimeMin) * time.Minute
	}
	if cfg.ConnMaxIdleMin > 0 {
		poolConfig.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleMin) * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
