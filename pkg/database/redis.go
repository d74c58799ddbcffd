package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prepstack-ai/prepstack-engine/pkg/config"
)

// redisConnectTimeout bounds the startup connectivity check so a wrong host
// fails the boot quickly instead of hanging on the default dial behavior.
const redisConnectTimeout = 5 * time.Second

// NewRedisClient creates the client backing the design-spec cache.
// Returns nil if Redis is not configured (host is empty); the spec cache
// degrades to direct database reads in that case.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.IsConfigured() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
