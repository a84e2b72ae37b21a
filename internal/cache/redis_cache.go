package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"xiaomupos/backend/internal/domain"
)

type RedisCommodityCache struct {
	client *redis.Client
}

func NewRedisCommodityCache(addr string, password string, db int) *RedisCommodityCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCommodityCache{client: client}
}

func (c *RedisCommodityCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCommodityCache) Close() error {
	return c.client.Close()
}

func (c *RedisCommodityCache) Get(ctx context.Context, barcode string) (*domain.CommodityRecord, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(barcode)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var record domain.CommodityRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *RedisCommodityCache) Set(ctx context.Context, barcode string, value *domain.CommodityRecord, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(barcode), payload, ttl).Err()
}

func (c *RedisCommodityCache) Invalidate(ctx context.Context, barcode string) error {
	return c.client.Del(ctx, cacheKey(barcode)).Err()
}

func cacheKey(barcode string) string {
	return "commodity:" + barcode
}
