// health.go — обработчики health endpoints Admin Gateway.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (провайдер + подключённые PostgreSQL/Redis)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/admin-gateway/internal/config"
)

const serviceName = "admin-gateway"

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	providerChecker ReadinessChecker
	pgChecker       ReadinessChecker
	redisChecker    ReadinessChecker
	promHandler     http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// providerChecker обязателен (nil даёт "fail"). pgChecker и redisChecker
// передаются только если зависимость подключена; nil исключает её из ответа.
func NewHealthHandler(providerChecker, pgChecker, redisChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		providerChecker: providerChecker,
		pgChecker:       pgChecker,
		redisChecker:    redisChecker,
		promHandler:     promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    make(map[string]healthCheckResult, 3),
	}

	if h.providerChecker != nil {
		status, msg := h.providerChecker.CheckReady()
		resp.Checks["identity_provider"] = healthCheckResult{Status: status, Message: msg}
	} else {
		resp.Checks["identity_provider"] = healthCheckResult{Status: "fail", Message: "не инициализирован"}
	}

	if h.pgChecker != nil {
		status, msg := h.pgChecker.CheckReady()
		resp.Checks["postgresql"] = healthCheckResult{Status: status, Message: msg}
	}

	if h.redisChecker != nil {
		status, msg := h.redisChecker.CheckReady()
		resp.Checks["redis"] = healthCheckResult{Status: status, Message: msg}
	}

	statuses := make([]string, 0, len(resp.Checks))
	for _, c := range resp.Checks {
		statuses = append(statuses, c.Status)
	}
	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == "fail" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
