// Пакет server — HTTP-сервер Texture Server с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goskinstore/internal/api/handlers"
	"github.com/bigkaa/goskinstore/internal/api/middleware"
	"github.com/bigkaa/goskinstore/internal/config"
)

// Server — HTTP-сервер Texture Server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую, без ingress.
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	// Содержимое текстур раздаётся по хешу без аутентификации.
	router.Get("/textures/{hash}", handler.ServeTexture)

	// Обе версии API работают с одними обработчиками,
	// различаясь только конвенциями поверхности.
	mountAPI(router, "/api/v1", handler, jwtAuth, handlers.LegacySurface())
	mountAPI(router, "/api/v2", handler, jwtAuth, handlers.NamespacedSurface())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// mountAPI монтирует одну версию API под указанным префиксом.
func mountAPI(router chi.Router, prefix string, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth, s handlers.Surface) {
	router.Route(prefix, func(r chi.Router) {
		// Публичные маршруты
		r.Post("/auth/minecraft", handler.AuthHandshake)
		r.Post("/auth/minecraft/callback", handler.AuthResponse)
		// Устаревшие алиасы тех же шагов handshake
		r.Post("/auth/handshake", handler.AuthHandshake)
		r.Post("/auth/response", handler.AuthResponse)

		r.Get("/user/{user_id}", handler.GetUser(s))
		r.Get("/history/{user_id}", handler.GetHistory(s))
		r.Get("/user/{user_id}/history", handler.GetHistory(s))
		r.Post("/bulk_textures", handler.GetBulk(s))

		// Маршруты, требующие токена
		r.Group(func(pr chi.Router) {
			if jwtAuth != nil {
				pr.Use(jwtAuth.Middleware())
			}

			pr.Get("/user", handler.GetMe(s))
			pr.Get("/history", handler.GetMyHistory(s))

			pr.Get("/textures", handler.GetMe(s))
			pr.Put("/textures", handler.PutTexture(s))
			pr.Post("/textures", handler.PostTexture(s))
			pr.Delete("/textures", handler.DeleteTexture(s))
			pr.Delete("/texture", handler.DeleteTexture(s))

			// Устаревшая загрузка с типом в пути
			pr.Put("/user/{user_id}/{skin_type}", handler.PutTextureLegacy(s))
			pr.Post("/user/{user_id}/{skin_type}", handler.PostTextureLegacy(s))
		})
	})
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown с настраиваемым таймаутом
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
