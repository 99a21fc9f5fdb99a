package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/bigkaa/goartstore/admin-gateway/internal/api/errors"
)

// Recoverer перехватывает panic в обработчике и отвечает 500 в JSON-формате.
// http.ErrAbortHandler пробрасывается дальше.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // значение panic, не обёрнутая ошибка
					panic(rec)
				}

				logger.Error("Panic в обработчике",
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.InternalError(w, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
