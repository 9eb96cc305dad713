package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/phrazzld/patentgate/internal/config"
)

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	if logger != nil {
		logger.Info("connected to redis", slog.String("addr", cfg.Addr), slog.Int("db", cfg.DB))
	}
	return rdb, nil
}

// keys builds namespaced key names.
type keys struct {
	prefix string
}

func (k keys) task(id string) string      { return k.prefix + ":task:" + id }
func (k keys) taskIndex() string          { return k.prefix + ":tasks" }
func (k keys) challenge(id string) string { return k.prefix + ":challenge:" + id }
