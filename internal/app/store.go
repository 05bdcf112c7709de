package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
)

// NewStore builds the configured entity store backend wrapped with the retry
// decorator. The returned cleanup releases backend resources and is safe to
// call once.
func NewStore(ctx context.Context, cfg *Config, logger *slog.Logger) (entitystore.Store, func(), error) {
	var (
		inner   entitystore.Store
		cleanup = func() {}
	)

	switch cfg.StoreBackend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := entitystore.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		inner = store
		cleanup = pool.Close
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping", slog.Any("error", err))
		}
		inner = entitystore.NewRedisStore(client)
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	case "memory":
		inner = entitystore.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return entitystore.NewRetryingStore(inner, cfg.StoreRetryMax, cfg.StoreRetryBackoff), cleanup, nil
}
