package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/aegis-risk/pkg/config"
)

// dialTimeout 연결/핑 제한 시간 (redis는 선택 의존성이므로 짧게)
const dialTimeout = 2 * time.Second

// Client wraps go-redis for the reference cache, result publishing and rate limiting
// ⭐ SSOT: Redis 연결은 여기서만 관리
// 비활성(REDIS_ENABLED=false)이면 모든 헬퍼가 no-op
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New connects when redis is enabled
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb, enabled: true}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled reports whether redis is in use
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// Ping checks the connection (health endpoint); disabled clients report nil
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Redis returns the underlying go-redis client
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// namespacedKey builds "<prefix>:<kind>:<key>"
func namespacedKey(prefix, kind, key string) string {
	return prefix + ":" + kind + ":" + key
}
