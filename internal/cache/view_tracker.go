package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewTracker 商品浏览去重
type ViewTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewViewTracker(rdb *redis.Client, ttl time.Duration) *ViewTracker {
	return &ViewTracker{rdb: rdb, ttl: ttl}
}

// FirstView 在 ttl 内同一浏览者首次查看时返回 true
func (v *ViewTracker) FirstView(ctx context.Context, productId int64, viewer string) (bool, error) {
	key := fmt.Sprintf("viewed_product:%d:%s", productId, viewer)
	ok, err := v.rdb.SetNX(ctx, key, 1, v.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark product view: %w", err)
	}
	return ok, nil
}
