package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freshmart/order-core/internal/core/domain"
)

const statsKey = "stats:dashboard"

// RedisAdapter caches dashboard aggregates as a TTL'd JSON blob.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) GetStats(ctx context.Context) (*domain.DashboardStats, error) {
	raw, err := r.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		// A corrupt blob is a miss, not an error.
		return nil, nil
	}
	return &stats, nil
}

func (r *RedisAdapter) SetStats(ctx context.Context, stats *domain.DashboardStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statsKey, raw, r.ttl).Err()
}

func (r *RedisAdapter) InvalidateStats(ctx context.Context) error {
	return r.client.Del(ctx, statsKey).Err()
}
