package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"example.com/vendor-marketplace/pkg/config"
)

// ConnectRedis создаёт клиент Redis и проверяет доступность сервера.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ошибка ping Redis %s: %w", cfg.Addr(), err)
	}
	return rdb, nil
}
