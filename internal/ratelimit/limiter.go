// Пакет ratelimit — ограничение частоты действий по ключу.
// Используется для сброса пароля: ключ — идентификатор целевого пользователя.
//
// Два бэкенда:
//   - MemoryLimiter — token bucket (golang.org/x/time/rate) на ключ,
//     таблица ключей ограничена LRU (per-instance);
//   - RedisLimiter — фиксированное окно (INCR + EXPIRE), общее для всех реплик.
package ratelimit

import (
	"context"
	"time"
)

// Result — решение ограничителя.
type Result struct {
	// Allowed — действие разрешено
	Allowed bool
	// Remaining — сколько действий осталось в текущем окне
	Remaining int64
	// RetryAfter — через сколько повторить (только при Allowed == false)
	RetryAfter time.Duration
}

// Limiter — ограничитель частоты по ключу.
type Limiter interface {
	// Allow расходует одну единицу лимита для key.
	Allow(ctx context.Context, key string) (Result, error)
}
