package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"AG_PROVIDER_URL":              "https://idp.example.test/",
		"AG_PROVIDER_ANON_KEY":         "anon-key",
		"AG_PROVIDER_SERVICE_ROLE_KEY": "service-key",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.ProviderURL != "https://idp.example.test" {
		t.Errorf("ProviderURL = %q, trailing slash должен быть удалён", cfg.ProviderURL)
	}
	if cfg.AnonKey != "anon-key" {
		t.Errorf("AnonKey = %q, ожидается anon-key", cfg.AnonKey)
	}
	if string(cfg.ServiceRoleKey) != "service-key" {
		t.Errorf("ServiceRoleKey не загружен")
	}
	if cfg.ProviderTimeout != 10*time.Second {
		t.Errorf("ProviderTimeout = %v, ожидается 10s", cfg.ProviderTimeout)
	}
	if cfg.RoleSource != RoleSourceREST {
		t.Errorf("RoleSource = %q, ожидается rest", cfg.RoleSource)
	}
	if cfg.RoleTable != "user_roles" {
		t.Errorf("RoleTable = %q, ожидается user_roles", cfg.RoleTable)
	}
	if cfg.AdminRole != "admin" {
		t.Errorf("AdminRole = %q, ожидается admin", cfg.AdminRole)
	}
	if cfg.DatabaseEnabled() {
		t.Error("DatabaseEnabled() = true без AG_DB_HOST")
	}
	if cfg.AuditEnabled {
		t.Error("AuditEnabled = true без базы данных")
	}
	if cfg.RateLimitEnabled() {
		t.Error("ограничение сбросов пароля должно быть выключено по умолчанию")
	}
	if cfg.RateLimitBackend != RateLimitBackendMemory {
		t.Errorf("RateLimitBackend = %q, ожидается memory", cfg.RateLimitBackend)
	}
	if cfg.CORSAllowedOrigin != "*" {
		t.Errorf("CORSAllowedOrigin = %q, ожидается *", cfg.CORSAllowedOrigin)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
	if cfg.ProviderHealthURL() != "https://idp.example.test/auth/v1/health" {
		t.Errorf("ProviderHealthURL() = %q", cfg.ProviderHealthURL())
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["AG_PORT"] = "9090"
	envs["AG_LOG_LEVEL"] = "debug"
	envs["AG_LOG_FORMAT"] = "text"
	envs["AG_DB_HOST"] = "pg.local"
	envs["AG_DB_NAME"] = "gateway"
	envs["AG_DB_USER"] = "gateway"
	envs["AG_ROLE_SOURCE"] = "postgres"
	envs["AG_BATCH_CONCURRENCY"] = "8"
	envs["AG_RESET_RATE_LIMIT"] = "3"
	envs["AG_RESET_RATE_WINDOW"] = "15m"
	envs["AG_RATE_LIMIT_BACKEND"] = "redis"
	envs["AG_JWT_JWKS_URL"] = "https://idp.example.test/auth/v1/.well-known/jwks.json"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if !cfg.DatabaseEnabled() || !cfg.AuditEnabled {
		t.Error("с AG_DB_HOST база и аудит должны быть включены")
	}
	if cfg.RoleSource != RoleSourcePostgres {
		t.Errorf("RoleSource = %q, ожидается postgres", cfg.RoleSource)
	}
	if cfg.BatchConcurrency != 8 {
		t.Errorf("BatchConcurrency = %d, ожидается 8", cfg.BatchConcurrency)
	}
	if !cfg.RateLimitEnabled() || cfg.ResetRateWindow != 15*time.Minute {
		t.Errorf("ограничение сбросов: limit=%d window=%v", cfg.ResetRateLimit, cfg.ResetRateWindow)
	}
	if cfg.RateLimitBackend != RateLimitBackendRedis {
		t.Errorf("RateLimitBackend = %q, ожидается redis", cfg.RateLimitBackend)
	}
	if cfg.DatabaseURL() != "postgres://pg.local:5432/gateway" {
		t.Errorf("DatabaseURL() = %q", cfg.DatabaseURL())
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
	}{
		{"нет AG_PROVIDER_URL", map[string]string{"AG_PROVIDER_URL": ""}},
		{"нет anon key", map[string]string{"AG_PROVIDER_ANON_KEY": ""}},
		{"нет service role key", map[string]string{"AG_PROVIDER_SERVICE_ROLE_KEY": ""}},
		{"одинаковые ключи", map[string]string{"AG_PROVIDER_SERVICE_ROLE_KEY": "anon-key"}},
		{"некорректный порт", map[string]string{"AG_PORT": "abc"}},
		{"порт вне диапазона", map[string]string{"AG_PORT": "70000"}},
		{"некорректный уровень логов", map[string]string{"AG_LOG_LEVEL": "verbose"}},
		{"некорректный формат логов", map[string]string{"AG_LOG_FORMAT": "xml"}},
		{"неизвестный источник ролей", map[string]string{"AG_ROLE_SOURCE": "ldap"}},
		{"postgres без базы", map[string]string{"AG_ROLE_SOURCE": "postgres"}},
		{"аудит без базы", map[string]string{"AG_AUDIT_ENABLED": "true"}},
		{"отрицательный параллелизм", map[string]string{"AG_BATCH_CONCURRENCY": "-1"}},
		{"отрицательный лимит", map[string]string{"AG_RESET_RATE_LIMIT": "-5"}},
		{"нулевое окно", map[string]string{"AG_RESET_RATE_WINDOW": "0s"}},
		{"окно короче лимита", map[string]string{"AG_RESET_RATE_LIMIT": "5", "AG_RESET_RATE_WINDOW": "3ns"}},
		{"интервал меньше миллисекунды", map[string]string{"AG_RESET_RATE_LIMIT": "1000", "AG_RESET_RATE_WINDOW": "500ms"}},
		{"неизвестный бэкенд", map[string]string{"AG_RATE_LIMIT_BACKEND": "memcached"}},
		{"некорректная длительность", map[string]string{"AG_PROVIDER_TIMEOUT": "ten"}},
		{"некорректный SSL mode", map[string]string{"AG_DB_SSL_MODE": "prefer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			for k, v := range tt.envs {
				envs[k] = v
			}
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Fatal("ожидалась ошибка, получен nil")
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.env")
	content := "AG_PROVIDER_URL=https://from-file.test\n" +
		"AG_PROVIDER_ANON_KEY=file-anon\n" +
		"AG_PROVIDER_SERVICE_ROLE_KEY=file-service\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	// godotenv не перезаписывает заданные переменные — очищаем их
	for k := range minimalEnvs() {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("AG_ENV_FILE", path)
	t.Cleanup(func() {
		for k := range minimalEnvs() {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.ProviderURL != "https://from-file.test" {
		t.Errorf("ProviderURL = %q, ожидается значение из файла", cfg.ProviderURL)
	}
	if cfg.AnonKey != "file-anon" {
		t.Errorf("AnonKey = %q, ожидается file-anon", cfg.AnonKey)
	}
}

func TestServiceRoleKey_Redacted(t *testing.T) {
	key := ServiceRoleKey("super-secret")
	if got := fmt.Sprint(key); got != "[REDACTED]" {
		t.Errorf("fmt.Sprint = %q, ключ не должен печататься", got)
	}
	if got := key.LogValue().String(); got != "[REDACTED]" {
		t.Errorf("LogValue = %q, ключ не должен логироваться", got)
	}
}
