// Пакет server — HTTP-сервер Admin Gateway с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/admin-gateway/internal/api/handlers"
	"github.com/bigkaa/goartstore/admin-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/admin-gateway/internal/api/openapi"
	"github.com/bigkaa/goartstore/admin-gateway/internal/config"
)

// Server — HTTP-сервер Admin Gateway.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth применяется только к /api/v1/admin-users; health, metrics
// и контракт доступны без авторизации.
func New(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, auth *middleware.AdminAuth) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(cfg, logger, api, auth),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер Admin Gateway.
func NewRouter(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, auth *middleware.AdminAuth) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам).
	// CORS последним: preflight получает request id и попадает в лог и метрики.
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigin))

	router.Get("/health/live", api.HealthLive)
	router.Get("/health/ready", api.HealthReady)
	router.Get("/metrics", api.GetMetrics)
	router.Method(http.MethodGet, "/api/v1/openapi.yaml", openapi.Handler())

	// Действие определяется телом, а не методом: любой метод кроме OPTIONS
	// (его завершает CORS) проходит авторизацию и разбор тела.
	router.With(auth.Middleware()).HandleFunc("/api/v1/admin-users", api.HandleAdminUsers)

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
