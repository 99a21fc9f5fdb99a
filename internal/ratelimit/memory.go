package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// MemoryLimiter — token bucket на ключ: limit действий за window,
// пополнение равномерное. Неактивный ключ вытесняется через window
// (к этому моменту его корзина всё равно полна) или при переполнении таблицы.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	limit   int
	every   rate.Limit
	now     func() time.Time
}

// NewMemoryLimiter создаёт in-memory ограничитель.
// maxKeys — максимум отслеживаемых ключей.
func NewMemoryLimiter(limit int, window time.Duration, maxKeys int) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, window),
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
		now:     time.Now,
	}
}

// Allow реализует Limiter. Ошибку не возвращает.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()

	l.mu.Lock()
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.every, l.limit)
	}
	// Add продлевает TTL ключа
	l.buckets.Add(key, lim)
	l.mu.Unlock()

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay}, nil
	}

	remaining := int64(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining}, nil
}

// Len возвращает число отслеживаемых ключей.
func (l *MemoryLimiter) Len() int {
	return l.buckets.Len()
}
