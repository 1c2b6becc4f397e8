// logging.go — журнал HTTP-запросов сервера текстур.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger логирует каждый запрос после обработки: метод, путь,
// поверхность API, статус, длительность и объём ответа.
// 4xx пишутся на WARN, 5xx на ERROR.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			switch {
			case ww.Status() >= 500:
				level = slog.LevelError
			case ww.Status() >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "запрос обработан",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("surface", apiSurface(r.URL.Path)),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// apiSurface определяет поверхность API по префиксу пути:
// v1 — устаревшие имена типов, v2 — namespace-имена,
// none — служебные маршруты вне версий.
func apiSurface(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/"):
		return "v1"
	case strings.HasPrefix(path, "/api/v2/"):
		return "v2"
	default:
		return "none"
	}
}
