package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/blues/campaignhub/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient 创建 redis 客户端并检查连通性
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
