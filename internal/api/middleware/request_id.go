package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKeyRequestID — идентификатор запроса в контексте.
const ContextKeyRequestID contextKey = "request_id"

// maxRequestIDLen — входящий X-Request-ID длиннее этого заменяется новым.
const maxRequestIDLen = 128

// RequestID возвращает middleware, который берёт X-Request-ID клиента
// или генерирует UUID, возвращает его в ответе и кладёт в контекст.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if rid == "" || len(rid) > maxRequestIDLen {
				rid = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", rid)
			ctx := context.WithValue(r.Context(), ContextKeyRequestID, rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext возвращает идентификатор запроса или пустую строку.
func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(ContextKeyRequestID).(string)
	return rid
}
