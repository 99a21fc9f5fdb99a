package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/admin-gateway/internal/service"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("декодирование тела ошибки: %v", err)
	}
	return body
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, CodeValidationError, "Unknown action")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, ожидается 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := decodeBody(t, rec)
	if body.Error != "Unknown action" || body.Code != CodeValidationError {
		t.Errorf("тело = %+v", body)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"unauthorized", service.NewError(service.ErrUnauthorized, "Missing bearer token", nil), 401, CodeUnauthorized, "Missing bearer token"},
		{"forbidden", service.NewError(service.ErrForbidden, "Admin role required", nil), 403, CodeForbidden, "Admin role required"},
		{"validation", service.NewError(service.ErrValidation, "userId is required", nil), 400, CodeValidationError, "userId is required"},
		{"not found", service.NewError(service.ErrNotFound, "User not found", stderrors.New("404")), 404, CodeNotFound, "User not found"},
		{"upstream", service.NewError(service.ErrUpstream, "ban_duration is invalid", nil), 400, CodeUpstreamError, "ban_duration is invalid"},
		{"обёрнутая сервисная ошибка", fmt.Errorf("handler: %w", service.NewError(service.ErrNotFound, "User not found", nil)), 404, CodeNotFound, "User not found"},
		{"нетипизированная", stderrors.New("dial tcp: connection refused"), 500, CodeInternalError, "dial tcp: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, ожидается %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, ожидается %q", body.Code, tt.wantCode)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, ожидается %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestFromError_RateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, &service.Error{
		Kind:       service.ErrRateLimited,
		Message:    "Too many password reset requests for this user",
		RetryAfter: 1500 * time.Millisecond,
	})

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, ожидается 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, ожидается 2 (округление вверх)", got)
	}
}
