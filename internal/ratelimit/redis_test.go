package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupTestRedis запускает Redis в Docker-контейнере через testcontainers.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "docker.io/redis:7-alpine")
	if err != nil {
		t.Fatalf("Не удалось запустить Redis контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить адрес Redis: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("Некорректный адрес Redis %q: %v", uri, err)
	}

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLimiter_Allow(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	l := NewRedisLimiter(client, "test:", 2, time.Hour)
	fixed := time.Date(2026, 5, 1, 10, 15, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "u1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("попытка %d должна быть разрешена", i+1)
		}
		if res.Remaining != int64(1-i) {
			t.Errorf("Remaining = %d, ожидается %d", res.Remaining, 1-i)
		}
	}

	res, err := l.Allow(ctx, "u1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("третья попытка в окне должна быть отклонена")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Hour {
		t.Errorf("RetryAfter = %v, ожидается в пределах окна", res.RetryAfter)
	}

	// Следующее окно — новый счётчик
	l.now = func() time.Time { return fixed.Add(time.Hour) }
	if res, _ := l.Allow(ctx, "u1"); !res.Allowed {
		t.Error("в новом окне попытка должна быть разрешена")
	}

	if status, _ := l.CheckReady(); status != "ok" {
		t.Errorf("CheckReady = %q, ожидается ok", status)
	}
}
