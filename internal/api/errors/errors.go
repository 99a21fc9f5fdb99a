// Пакет errors — формат ошибок Admin Gateway.
// Единый формат: {"error": "...", "code": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError или FromError.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bigkaa/goartstore/admin-gateway/internal/service"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: message,
		Code:  code,
	})
}

// FromError записывает ответ по виду ошибки сервисного слоя.
// Нетипизированная ошибка — 500 с её текстом.
func FromError(w http.ResponseWriter, err error) {
	var svcErr *service.Error
	if !stderrors.As(err, &svcErr) {
		InternalError(w, err.Error())
		return
	}

	switch {
	case stderrors.Is(svcErr.Kind, service.ErrUnauthorized):
		Unauthorized(w, svcErr.Message)
	case stderrors.Is(svcErr.Kind, service.ErrForbidden):
		Forbidden(w, svcErr.Message)
	case stderrors.Is(svcErr.Kind, service.ErrValidation):
		ValidationError(w, svcErr.Message)
	case stderrors.Is(svcErr.Kind, service.ErrNotFound):
		NotFound(w, svcErr.Message)
	case stderrors.Is(svcErr.Kind, service.ErrUpstream):
		UpstreamError(w, svcErr.Message)
	case stderrors.Is(svcErr.Kind, service.ErrRateLimited):
		RateLimited(w, svcErr.Message, svcErr.RetryAfter)
	default:
		InternalError(w, svcErr.Error())
	}
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 пользователь не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// UpstreamError — 400 провайдер отклонил операцию (текст провайдера как есть).
func UpstreamError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeUpstreamError, message)
}

// RateLimited — 429 с заголовком Retry-After (секунды, с округлением вверх).
func RateLimited(w http.ResponseWriter, message string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
