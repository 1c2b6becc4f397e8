// Точка входа Texture Server — сервер версионируемых текстур Minecraft.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует хранилище блобов и клиент session-сервера Mojang,
// создаёт сервисный слой и API handlers, запускает topologymetrics,
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goskinstore/internal/api/handlers"
	"github.com/bigkaa/goskinstore/internal/api/middleware"
	"github.com/bigkaa/goskinstore/internal/authflow"
	"github.com/bigkaa/goskinstore/internal/config"
	"github.com/bigkaa/goskinstore/internal/database"
	"github.com/bigkaa/goskinstore/internal/mojang"
	"github.com/bigkaa/goskinstore/internal/repository"
	"github.com/bigkaa/goskinstore/internal/server"
	"github.com/bigkaa/goskinstore/internal/service"
	"github.com/bigkaa/goskinstore/internal/storage/blobstore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Texture Server запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище блобов
	var blobs blobstore.Store
	switch cfg.StorageBackend {
	case "gcs":
		blobs, err = blobstore.NewGCStore(ctx, cfg.GCSBucket)
		if err != nil {
			logger.Error("Ошибка подключения к GCS", slog.String("bucket", cfg.GCSBucket), slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Хранилище блобов: GCS", slog.String("bucket", cfg.GCSBucket))
	default:
		blobs, err = blobstore.NewFileStore(cfg.DataDir)
		if err != nil {
			logger.Error("Ошибка создания файлового хранилища", slog.String("dir", cfg.DataDir), slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Хранилище блобов: файловое", slog.String("dir", cfg.DataDir))
	}

	// 6. Клиент session-сервера Mojang
	mojangClient := mojang.New(cfg.SessionServerURL, cfg.SessionTimeout, logger)

	// 7. Repositories
	userRepo := repository.NewUserRepository(pool)
	uploadRepo := repository.NewUploadRepository(pool)
	textureRepo := repository.NewTextureRepository(pool)

	// 8. Services
	profileCache := service.NewProfileCache(cfg.ProfileCacheSize, cfg.ProfileCacheTTL)
	profileSvc := service.NewProfileService(userRepo, textureRepo, profileCache, logger)
	uploadSvc := service.NewUploadService(
		uploadRepo, textureRepo, blobs, profileCache,
		cfg.TextureTypeDenylist, cfg.MaxUploadSize, cfg.FetchTimeout,
		logger,
	)

	// 9. Handshake-аутентификация
	tokens := authflow.NewTokenTable(cfg.HandshakeCapacity, cfg.HandshakeTTL)
	authSvc := authflow.NewService(
		tokens, mojangClient, userRepo,
		[]byte(cfg.SecretKey), cfg.ServerID, cfg.TokenTTL,
		logger,
	)

	// 10. Readiness checkers (PostgreSQL + session-сервер)
	pgChecker := database.NewReadinessChecker(pool)
	sessionChecker := mojang.NewReadinessChecker(cfg.SessionServerURL, cfg.SessionTimeout)
	healthHandler := handlers.NewHealthHandler(pgChecker, sessionChecker)

	// 11. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		authSvc,
		profileSvc,
		uploadSvc,
		cfg.TexturesURL,
		logger,
	)

	// 12. JWT middleware
	jwtAuth := middleware.NewJWTAuth([]byte(cfg.SecretKey), userRepo, logger)

	// 13. topologymetrics — мониторинг зависимостей (PostgreSQL + session-сервер)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"texture-server",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		cfg.SessionServerURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Texture Server остановлен")
}
