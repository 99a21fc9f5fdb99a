// cors.go — CORS-заголовки и обработка preflight.
package middleware

import "net/http"

// CORS возвращает middleware, добавляющий CORS-заголовки ко всем ответам.
// OPTIONS завершается здесь же: 200 с пустым телом, без авторизации.
// allowedOrigin — значение Access-Control-Allow-Origin ("*" по умолчанию).
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, x-request-id")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			if allowedOrigin != "*" {
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
