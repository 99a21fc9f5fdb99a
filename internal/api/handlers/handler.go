// handler.go — основной обработчик API Admin Gateway.
// Объединяет обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/admin-gateway/internal/domain/model"
)

// AuthInfoFetcher — пакетное получение сведений о пользователях.
// Реализуется service.AuthInfoService.
type AuthInfoFetcher interface {
	GetUsersAuthInfo(ctx context.Context, userIDs []string) (map[string]model.AuthInfo, error)
}

// BanToggler — переключение блокировки.
// Реализуется service.BanService.
type BanToggler interface {
	ToggleBan(ctx context.Context, actorID, userID string) (bool, error)
}

// PasswordResetter — отправка письма сброса пароля.
// Реализуется service.PasswordResetService.
type PasswordResetter interface {
	ResetPassword(ctx context.Context, actorID, userID string) error
}

// SchemaValidator — проверка тела запроса по OpenAPI схеме.
// Реализуется openapi.Validator.
type SchemaValidator interface {
	ValidateSchema(name string, value any) error
}

// APIHandler — основной обработчик API Admin Gateway.
type APIHandler struct {
	health    *HealthHandler
	authInfo  AuthInfoFetcher
	ban       BanToggler
	reset     PasswordResetter
	validator SchemaValidator
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// validator может быть nil (проверка по схеме выключена).
func NewAPIHandler(
	health *HealthHandler,
	authInfo AuthInfoFetcher,
	ban BanToggler,
	reset PasswordResetter,
	validator SchemaValidator,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		authInfo:  authInfo,
		ban:       ban,
		reset:     reset,
		validator: validator,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
