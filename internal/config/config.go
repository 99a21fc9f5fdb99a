// Пакет config — загрузка и валидация конфигурации Admin Gateway
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Источники ролей администратора.
const (
	// RoleSourceREST — роли читаются через data API провайдера (service role key).
	RoleSourceREST = "rest"
	// RoleSourcePostgres — роли читаются напрямую из PostgreSQL провайдера.
	RoleSourcePostgres = "postgres"
)

// Бэкенды ограничителя частоты сброса пароля.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// minResetRateInterval — минимальный интервал между сбросами одному
// пользователю при включённом лимите.
const minResetRateInterval = time.Millisecond

// AnonKey — ключ с минимальными привилегиями. Используется только
// клиентом, действующим от имени вызывающего пользователя.
type AnonKey string

// ServiceRoleKey — привилегированный ключ сервера. Используется только
// административным клиентом и никогда не попадает в caller-scoped путь.
type ServiceRoleKey string

// String скрывает значение ключа в логах.
func (ServiceRoleKey) String() string { return "[REDACTED]" }

// LogValue скрывает значение ключа в slog.
func (ServiceRoleKey) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// Config содержит все параметры конфигурации Admin Gateway.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Значение Access-Control-Allow-Origin
	CORSAllowedOrigin string

	// --- Identity provider ---

	// Базовый URL провайдера (без trailing slash)
	ProviderURL string
	// Ключ для caller-scoped запросов
	AnonKey AnonKey
	// Ключ для административных запросов
	ServiceRoleKey ServiceRoleKey
	// Таймаут HTTP-клиента провайдера
	ProviderTimeout time.Duration

	// --- JWT (локальная проверка, опционально) ---

	// URL JWKS endpoint. Пусто — claims разрешаются запросом к провайдеру.
	JWTJWKSURL string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Ожидаемый audience (пусто — не проверяется)
	JWTAudience string
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов
	JWTLeeway time.Duration

	// --- Роли ---

	// Источник ролей: rest или postgres
	RoleSource string
	// Таблица назначений ролей в data API
	RoleTable string
	// Имя роли администратора
	AdminRole string

	// --- PostgreSQL (опционально) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Запись аудита административных действий
	AuditEnabled bool

	// --- Действия ---

	// Ограничение параллелизма batch-запросов (0 — без ограничения)
	BatchConcurrency int
	// redirect_to для письма сброса пароля
	ResetRedirectURL string
	// Максимум сбросов пароля на пользователя за окно (0 — выключено)
	ResetRateLimit int
	// Окно ограничения сбросов
	ResetRateWindow time.Duration
	// Бэкенд ограничителя: memory или redis
	RateLimitBackend string
	// Максимум отслеживаемых ключей in-memory ограничителя
	RateLimitMaxKeys int

	// --- Redis (для RateLimitBackend=redis) ---

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Если задана AG_ENV_FILE — сначала подгружается указанный .env файл
// (уже заданные переменные окружения не перезаписываются).
func Load() (*Config, error) {
	if envFile := os.Getenv("AG_ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("AG_ENV_FILE: загрузка %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("AG_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("AG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("AG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AG_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("AG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.CORSAllowedOrigin = getEnvDefault("AG_CORS_ALLOWED_ORIGIN", "*")

	// --- Identity provider ---

	cfg.ProviderURL, err = getEnvRequired("AG_PROVIDER_URL")
	if err != nil {
		return nil, err
	}
	cfg.ProviderURL = strings.TrimRight(cfg.ProviderURL, "/")

	anonKey, err := getEnvRequired("AG_PROVIDER_ANON_KEY")
	if err != nil {
		return nil, err
	}
	cfg.AnonKey = AnonKey(anonKey)

	serviceKey, err := getEnvRequired("AG_PROVIDER_SERVICE_ROLE_KEY")
	if err != nil {
		return nil, err
	}
	cfg.ServiceRoleKey = ServiceRoleKey(serviceKey)

	if anonKey == serviceKey {
		return nil, fmt.Errorf("AG_PROVIDER_SERVICE_ROLE_KEY: совпадает с AG_PROVIDER_ANON_KEY")
	}

	cfg.ProviderTimeout, err = getEnvDuration("AG_PROVIDER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_PROVIDER_TIMEOUT: %w", err)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("AG_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("AG_JWT_ISSUER", "")
	cfg.JWTAudience = getEnvDefault("AG_JWT_AUDIENCE", "authenticated")

	cfg.JWKSRefreshInterval, err = getEnvDuration("AG_JWKS_REFRESH_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AG_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("AG_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_JWT_LEEWAY: %w", err)
	}

	// --- PostgreSQL (опционально) ---

	cfg.DBHost = getEnvDefault("AG_DB_HOST", "")
	cfg.DBPort, err = getEnvInt("AG_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("AG_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("AG_DB_NAME", "")
	cfg.DBUser = getEnvDefault("AG_DB_USER", "")
	cfg.DBPassword = getEnvDefault("AG_DB_PASSWORD", "")
	cfg.DBSSLMode = getEnvDefault("AG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("AG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	if cfg.DatabaseEnabled() && (cfg.DBName == "" || cfg.DBUser == "") {
		return nil, fmt.Errorf("AG_DB_HOST задан, но AG_DB_NAME или AG_DB_USER пусты")
	}

	cfg.AuditEnabled, err = getEnvBool("AG_AUDIT_ENABLED", cfg.DatabaseEnabled())
	if err != nil {
		return nil, fmt.Errorf("AG_AUDIT_ENABLED: %w", err)
	}
	if cfg.AuditEnabled && !cfg.DatabaseEnabled() {
		return nil, fmt.Errorf("AG_AUDIT_ENABLED: аудит требует AG_DB_HOST")
	}

	// --- Роли ---

	cfg.RoleSource = getEnvDefault("AG_ROLE_SOURCE", RoleSourceREST)
	switch cfg.RoleSource {
	case RoleSourceREST:
	case RoleSourcePostgres:
		if !cfg.DatabaseEnabled() {
			return nil, fmt.Errorf("AG_ROLE_SOURCE=postgres требует AG_DB_HOST")
		}
	default:
		return nil, fmt.Errorf("AG_ROLE_SOURCE: недопустимое значение %q, допустимые: rest, postgres", cfg.RoleSource)
	}
	cfg.RoleTable = getEnvDefault("AG_ROLE_TABLE", "user_roles")
	cfg.AdminRole = getEnvDefault("AG_ADMIN_ROLE", "admin")

	// --- Действия ---

	cfg.BatchConcurrency, err = getEnvInt("AG_BATCH_CONCURRENCY", 0)
	if err != nil {
		return nil, fmt.Errorf("AG_BATCH_CONCURRENCY: %w", err)
	}
	if cfg.BatchConcurrency < 0 {
		return nil, fmt.Errorf("AG_BATCH_CONCURRENCY: значение %d не может быть отрицательным", cfg.BatchConcurrency)
	}

	cfg.ResetRedirectURL = getEnvDefault("AG_RESET_REDIRECT_URL", "")

	cfg.ResetRateLimit, err = getEnvInt("AG_RESET_RATE_LIMIT", 0)
	if err != nil {
		return nil, fmt.Errorf("AG_RESET_RATE_LIMIT: %w", err)
	}
	if cfg.ResetRateLimit < 0 {
		return nil, fmt.Errorf("AG_RESET_RATE_LIMIT: значение %d не может быть отрицательным", cfg.ResetRateLimit)
	}

	cfg.ResetRateWindow, err = getEnvDuration("AG_RESET_RATE_WINDOW", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("AG_RESET_RATE_WINDOW: %w", err)
	}
	if cfg.ResetRateWindow <= 0 {
		return nil, fmt.Errorf("AG_RESET_RATE_WINDOW: окно должно быть положительным")
	}
	// Интервал пополнения токена (окно / лимит) короче миллисекунды
	// фактически снимает ограничение.
	if cfg.ResetRateLimit > 0 && cfg.ResetRateWindow/time.Duration(cfg.ResetRateLimit) < minResetRateInterval {
		return nil, fmt.Errorf("AG_RESET_RATE_WINDOW: окно %s слишком мало для лимита %d (нужно не меньше %s на запрос)",
			cfg.ResetRateWindow, cfg.ResetRateLimit, minResetRateInterval)
	}

	cfg.RateLimitBackend = getEnvDefault("AG_RATE_LIMIT_BACKEND", RateLimitBackendMemory)
	if cfg.RateLimitBackend != RateLimitBackendMemory && cfg.RateLimitBackend != RateLimitBackendRedis {
		return nil, fmt.Errorf("AG_RATE_LIMIT_BACKEND: недопустимое значение %q, допустимые: memory, redis", cfg.RateLimitBackend)
	}

	cfg.RateLimitMaxKeys, err = getEnvInt("AG_RATE_LIMIT_MAX_KEYS", 10000)
	if err != nil {
		return nil, fmt.Errorf("AG_RATE_LIMIT_MAX_KEYS: %w", err)
	}
	if cfg.RateLimitMaxKeys < 1 {
		return nil, fmt.Errorf("AG_RATE_LIMIT_MAX_KEYS: значение должно быть положительным")
	}

	// --- Redis ---

	cfg.RedisAddr = getEnvDefault("AG_REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvDefault("AG_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("AG_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("AG_REDIS_DB: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("AG_DEPHEALTH_GROUP", "admin-gateway")
	cfg.DephealthCheckInterval, err = getEnvDuration("AG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("AG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseEnabled сообщает, настроено ли подключение к PostgreSQL.
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

// RateLimitEnabled сообщает, включено ли ограничение сбросов пароля.
func (c *Config) RateLimitEnabled() bool {
	return c.ResetRateLimit > 0
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// ProviderHealthURL возвращает URL health endpoint auth API провайдера.
func (c *Config) ProviderHealthURL() string {
	return c.ProviderURL + "/auth/v1/health"
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
