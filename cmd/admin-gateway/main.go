// Точка входа Admin Gateway — административные действия над пользователями
// identity provider (статус входа и блокировки, блокировка, сброс пароля).
// Загружает конфигурацию, создаёт клиенты провайдера, при наличии БД
// подключается к PostgreSQL (журнал действий, источник ролей),
// собирает сервисный слой и запускает HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/goartstore/admin-gateway/internal/api/handlers"
	"github.com/bigkaa/goartstore/admin-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/admin-gateway/internal/api/openapi"
	"github.com/bigkaa/goartstore/admin-gateway/internal/config"
	"github.com/bigkaa/goartstore/admin-gateway/internal/database"
	"github.com/bigkaa/goartstore/admin-gateway/internal/idp"
	"github.com/bigkaa/goartstore/admin-gateway/internal/ratelimit"
	"github.com/bigkaa/goartstore/admin-gateway/internal/repository"
	"github.com/bigkaa/goartstore/admin-gateway/internal/server"
	"github.com/bigkaa/goartstore/admin-gateway/internal/service"
)

const serviceID = "admin-gateway"

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Admin Gateway запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("provider_url", cfg.ProviderURL),
	)

	if os.Getenv("AG_DEPHEALTH_GROUP") == "" {
		logger.Warn("AG_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx := context.Background()

	// 3. Клиенты identity provider
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	callerClient := idp.NewCallerClient(cfg.ProviderURL, cfg.AnonKey, httpClient, logger)
	adminClient := idp.NewAdminClient(cfg.ProviderURL, cfg.ServiceRoleKey, cfg.RoleTable, httpClient, logger)

	// 4. PostgreSQL (опционально)
	var (
		pool      *pgxpool.Pool
		pgDB      *sql.DB
		pgChecker handlers.ReadinessChecker
	)
	if cfg.DatabaseEnabled() {
		if cfg.AuditEnabled {
			logger.Info("Применение миграций БД...")
			if err := database.Migrate(cfg, logger); err != nil {
				logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}

		pool, err = database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics (проверка через тот же пул)
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		var roleTable string
		if cfg.RoleSource == config.RoleSourcePostgres {
			roleTable = cfg.RoleTable
		}
		pgChecker = database.NewReadinessChecker(pool, roleTable)
	} else {
		logger.Info("PostgreSQL не настроен (AG_DB_HOST пуст), журнал действий выключен")
	}

	// 5. Источник ролей
	var roles middleware.RoleStore = adminClient
	if cfg.RoleSource == config.RoleSourcePostgres {
		roles = repository.NewUserRoleRepository(pool, cfg.RoleTable)
	}
	logger.Info("Источник ролей",
		slog.String("source", cfg.RoleSource),
		slog.String("table", cfg.RoleTable),
		slog.String("role", cfg.AdminRole),
	)

	// 6. Разрешение claims вызывающего
	var resolver middleware.ClaimsResolver = callerClient
	if cfg.JWTJWKSURL != "" {
		jwksResolver, err := middleware.NewJWKSResolver(
			cfg.JWTJWKSURL,
			cfg.JWTIssuer,
			cfg.JWTAudience,
			httpClient,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWKS resolver", slog.String("error", err.Error()))
			os.Exit(1)
		}
		resolver = jwksResolver
		logger.Info("Токены проверяются локально по JWKS",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	}

	// 7. Журнал действий
	var recorder service.AuditRecorder
	if cfg.AuditEnabled {
		recorder = repository.NewAdminActionRepository(pool)
	}

	// 8. Ограничение сбросов пароля
	var (
		limiter      ratelimit.Limiter
		redisChecker handlers.ReadinessChecker
	)
	if cfg.RateLimitEnabled() {
		switch cfg.RateLimitBackend {
		case config.RateLimitBackendRedis:
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer rdb.Close()

			redisLimiter := ratelimit.NewRedisLimiter(rdb, "", cfg.ResetRateLimit, cfg.ResetRateWindow)
			limiter = redisLimiter
			redisChecker = redisLimiter
		default:
			limiter = ratelimit.NewMemoryLimiter(cfg.ResetRateLimit, cfg.ResetRateWindow, cfg.RateLimitMaxKeys)
		}
		logger.Info("Ограничение сбросов пароля включено",
			slog.String("backend", cfg.RateLimitBackend),
			slog.Int("limit", cfg.ResetRateLimit),
			slog.String("window", cfg.ResetRateWindow.String()),
		)
	}

	// 9. Services
	authInfoSvc := service.NewAuthInfoService(adminClient, cfg.BatchConcurrency, logger)
	banSvc := service.NewBanService(adminClient, recorder, logger)
	resetSvc := service.NewPasswordResetService(
		adminClient, adminClient,
		limiter,
		cfg.ResetRedirectURL,
		recorder,
		logger,
	)

	// 10. Проверка тела запроса по встроенному контракту
	validator, err := openapi.NewValidator(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Handlers и авторизация
	healthHandler := handlers.NewHealthHandler(callerClient, pgChecker, redisChecker)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		authInfoSvc,
		banSvc,
		resetSvc,
		validator,
		logger,
	)
	adminAuth := middleware.NewAdminAuth(resolver, roles, cfg.AdminRole, logger)

	// 12. topologymetrics — мониторинг зависимостей (провайдер + PostgreSQL)
	dephealthSvc, err := service.NewDephealthService(service.DephealthParams{
		ServiceID:         serviceID,
		Group:             cfg.DephealthGroup,
		ProviderHealthURL: cfg.ProviderHealthURL(),
		DB:                pgDB,
		PGConnURL:         cfg.DatabaseURL(),
		CheckInterval:     cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.Any("dependencies", dephealthSvc.Dependencies()),
		)
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, adminAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Admin Gateway остановлен")
}
