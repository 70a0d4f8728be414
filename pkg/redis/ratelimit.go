package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow 정렬 집합 기반 슬라이딩 윈도우 (원자적 실행)
// 반환: {허용 여부, 남은 횟수}
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)
	local count = redis.call('ZCARD', key)
	if count >= limit then
		return {0, 0}
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)
	return {1, limit - count - 1}
`)

// waitStep Wait 재시도 간격
const waitStep = 100 * time.Millisecond

// RateLimiter is a sliding-window limiter shared across riskd processes
// ⭐ SSOT: 외부 스냅샷 소스 호출 제한은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
}

// RateLimitConfig defines one limit
type RateLimitConfig struct {
	Key    string        // "snapshot"
	Limit  int           // window당 최대 요청 수
	Window time.Duration // window 길이
}

// NewRateLimiter creates a limiter under prefix
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// Allow records one request if the window has room; returns (allowed, remaining)
// redis 비활성 시 항상 허용
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := namespacedKey(r.prefix, "ratelimit", cfg.Key)
	now := time.Now()

	// member는 같은 밀리초의 요청끼리 겹치지 않도록 나노초 사용
	res, err := slidingWindow.Run(ctx, r.client.Redis(), []string{key},
		now.UnixMilli(), cfg.Window.Milliseconds(), cfg.Limit, now.UnixNano(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", cfg.Key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit %s: unexpected reply %v", cfg.Key, res)
	}

	return res[0] == 1, int(res[1]), nil
}

// Wait blocks until Allow succeeds or ctx ends
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	ticker := time.NewTicker(waitStep)
	defer ticker.Stop()

	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SnapshotFetchRateLimit HTTP 스냅샷 소스: 초당 5회
var SnapshotFetchRateLimit = RateLimitConfig{
	Key:    "snapshot",
	Limit:  5,
	Window: time.Second,
}
