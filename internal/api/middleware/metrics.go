// metrics.go — Prometheus HTTP метрики для Admin Gateway.
// Регистрирует метрики: ag_http_requests_total, ag_http_request_duration_seconds.
//
// Все действия приходят на один путь /api/v1/admin-users, поэтому
// запросы дополнительно размечаются действием из тела. Handler сообщает
// его через SetRequestAction после разбора тела.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения метки action вне разобранного действия.
const (
	// ActionLabelNone — действие не определено (публичный путь, отказ в авторизации, битое тело).
	ActionLabelNone = "none"
	// ActionLabelUnknown — тело разобрано, но действие не распознано.
	ActionLabelUnknown = "unknown"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_http_requests_total",
			Help: "Общее количество HTTP-запросов к Admin Gateway",
		},
		[]string{"method", "path", "action", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ag_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Admin Gateway в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "action"},
	)
)

// requestLabels — метки, известные только после разбора тела.
// Заполняются в горутине обработчика, читаются после next.ServeHTTP.
type requestLabels struct {
	action string
}

type requestLabelsKey struct{}

// SetRequestAction помечает текущий запрос именем действия.
// Вне MetricsMiddleware ничего не делает.
func SetRequestAction(ctx context.Context, action string) {
	if l, ok := ctx.Value(requestLabelsKey{}).(*requestLabels); ok {
		l.action = action
	}
}

// RequestActionFromContext возвращает действие, которым помечен запрос,
// или пустую строку.
func RequestActionFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(requestLabelsKey{}).(*requestLabels); ok {
		return l.action
	}
	return ""
}

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			labels := &requestLabels{}
			r = r.WithContext(context.WithValue(r.Context(), requestLabelsKey{}, labels))

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			action := actionLabel(path, labels.action)
			httpRequestsTotal.WithLabelValues(r.Method, path, action, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path, action).Observe(time.Since(start).Seconds())
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

const adminUsersPath = "/api/v1/admin-users"

// normalizePath сводит неизвестные пути к одному лейблу,
// чтобы сканеры не раздували кардинальность метрик.
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		adminUsersPath,
		"/api/v1/openapi.yaml":
		return path
	}
	return "other"
}

// actionLabel ограничивает метку action известными действиями:
// произвольная строка из тела в метку не попадает.
func actionLabel(path, action string) string {
	if path != adminUsersPath || action == "" {
		return ActionLabelNone
	}
	switch action {
	case "get-users-auth-info", "toggle-ban", "reset-password":
		return action
	}
	return ActionLabelUnknown
}
