package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter — фиксированное окно в Redis: INCR + EXPIRE в одной транзакции.
// Счётчик общий для всех реплик gateway.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter создаёт ограничитель поверх клиента Redis.
// prefix — префикс ключей (по умолчанию "ag:rl:").
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "ag:rl:"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow реализует Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	winStart := l.now().UTC().Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX: TTL выставляется только первым запросом окна
	pipe.ExpireNX(ctx, redisKey, l.window)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("redis rate limit %s: %w", redisKey, err)
	}

	hits := incr.Val()
	if hits > l.max {
		retry := ttl.Val()
		if retry <= 0 {
			retry = l.window
		}
		return Result{Allowed: false, RetryAfter: retry}, nil
	}

	return Result{Allowed: true, Remaining: l.max - hits}, nil
}

// CheckReady проверяет доступность Redis.
// Реализует handlers.ReadinessChecker.
func (l *RedisLimiter) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := l.client.Ping(ctx).Err(); err != nil {
		return "fail", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
