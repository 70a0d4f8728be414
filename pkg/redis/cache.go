package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache over redis strings
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a cache under prefix (e.g. "aegis-risk")
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get decodes a cached value into dest; (false, nil) on miss or when disabled
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, namespacedKey(c.prefix, "cache", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Set stores value as JSON with ttl
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	return c.client.Redis().Set(ctx, namespacedKey(c.prefix, "cache", key), data, ttl).Err()
}

// Predefined TTLs
const (
	TTLShort = 1 * time.Minute // 최신 분석 결과
	TTLLong  = 1 * time.Hour   // 거래상대방/호가 레퍼런스
)

// CounterpartyRefKey 거래상대방 레퍼런스 키
func CounterpartyRefKey(id string) string {
	return "ref:counterparty:" + id
}

// MarketDepthKey 호가/거래량 레퍼런스 키
func MarketDepthKey(symbol string) string {
	return "ref:depth:" + symbol
}

// LatestResultKey 포트폴리오별 최신 분석 결과 키
func LatestResultKey(portfolioID string) string {
	return "result:latest:" + portfolioID
}
