package redisx

import (
	"context"

	"github.com/go-redis/redis/v8"

	"luxtrack/internal/config"
)

// NewClient creates the shared Redis client.
func NewClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping verifies connectivity.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close closes the client connection.
func Close(client *redis.Client) error {
	return client.Close()
}
