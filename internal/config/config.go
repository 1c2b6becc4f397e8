// Пакет config — загрузка и валидация конфигурации сервера текстур
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервера текстур.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Аутентификация ---

	// Секрет подписи JWT (HS256)
	SecretKey string
	// Идентификатор сервера в handshake-протоколе
	ServerID string
	// Время жизни выданного access token
	TokenTTL time.Duration
	// Время жизни verify token незавершённого handshake
	HandshakeTTL time.Duration
	// Максимум одновременных незавершённых handshake
	HandshakeCapacity int
	// URL session-сервера Mojang
	SessionServerURL string
	// Таймаут запросов к session-серверу
	SessionTimeout time.Duration

	// --- Хранилище текстур ---

	// Бэкенд хранилища: file или gcs
	StorageBackend string
	// Каталог файлового хранилища (для backend=file)
	DataDir string
	// Имя bucket GCS (для backend=gcs)
	GCSBucket string
	// Базовый URL раздачи текстур; пустой — относительные ссылки /textures
	TexturesURL string

	// --- Загрузки ---

	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Запрещённые к загрузке типы текстур (нормализованная форма)
	TextureTypeDenylist []string
	// Таймаут скачивания текстуры по внешнему URL
	FetchTimeout time.Duration

	// --- Кеш профилей ---

	// Размер LRU-кеша профилей
	ProfileCacheSize int
	// Время жизни записи кеша профилей
	ProfileCacheTTL time.Duration

	// --- Наблюдаемость и остановка ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Таймаут чтения запроса HTTP-сервером
	HTTPReadTimeout time.Duration
	// Таймаут записи ответа HTTP-сервером
	HTTPWriteTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// TS_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("TS_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("TS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("TS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// TS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TS_LOG_LEVEL: %w", err)
	}

	// TS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// TS_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("TS_DB_HOST")
	if err != nil {
		return nil, err
	}

	// TS_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("TS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("TS_DB_PORT: %w", err)
	}

	// TS_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("TS_DB_NAME")
	if err != nil {
		return nil, err
	}

	// TS_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("TS_DB_USER")
	if err != nil {
		return nil, err
	}

	// TS_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("TS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// TS_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("TS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("TS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Аутентификация ---

	// TS_SECRET_KEY — обязательный
	cfg.SecretKey, err = getEnvRequired("TS_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// TS_SERVER_ID — идентификатор сервера (по умолчанию goskinstore)
	cfg.ServerID = getEnvDefault("TS_SERVER_ID", "goskinstore")

	// TS_TOKEN_TTL — время жизни access token (по умолчанию 1h)
	cfg.TokenTTL, err = getEnvDuration("TS_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TS_TOKEN_TTL: %w", err)
	}

	// TS_HANDSHAKE_TTL — время жизни verify token (по умолчанию 30s)
	cfg.HandshakeTTL, err = getEnvDuration("TS_HANDSHAKE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TS_HANDSHAKE_TTL: %w", err)
	}

	// TS_HANDSHAKE_CAPACITY — лимит незавершённых handshake (по умолчанию 100)
	cfg.HandshakeCapacity, err = getEnvInt("TS_HANDSHAKE_CAPACITY", 100)
	if err != nil {
		return nil, fmt.Errorf("TS_HANDSHAKE_CAPACITY: %w", err)
	}
	if cfg.HandshakeCapacity < 1 {
		return nil, fmt.Errorf("TS_HANDSHAKE_CAPACITY: значение %d должно быть положительным", cfg.HandshakeCapacity)
	}

	// TS_SESSION_SERVER_URL — URL session-сервера Mojang
	cfg.SessionServerURL = strings.TrimRight(
		getEnvDefault("TS_SESSION_SERVER_URL", "https://sessionserver.mojang.com"), "/")

	// TS_SESSION_TIMEOUT — таймаут запросов к session-серверу (по умолчанию 10s)
	cfg.SessionTimeout, err = getEnvDuration("TS_SESSION_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TS_SESSION_TIMEOUT: %w", err)
	}

	// --- Хранилище текстур ---

	// TS_STORAGE_BACKEND — бэкенд хранилища (по умолчанию file)
	cfg.StorageBackend = getEnvDefault("TS_STORAGE_BACKEND", "file")
	if cfg.StorageBackend != "file" && cfg.StorageBackend != "gcs" {
		return nil, fmt.Errorf("TS_STORAGE_BACKEND: недопустимое значение %q, допустимые: file, gcs", cfg.StorageBackend)
	}

	// TS_DATA_DIR — каталог файлового хранилища (по умолчанию ./data/textures)
	cfg.DataDir = getEnvDefault("TS_DATA_DIR", "./data/textures")

	// TS_GCS_BUCKET — обязателен при backend=gcs
	cfg.GCSBucket = getEnvDefault("TS_GCS_BUCKET", "")
	if cfg.StorageBackend == "gcs" && cfg.GCSBucket == "" {
		return nil, fmt.Errorf("TS_GCS_BUCKET: обязателен при TS_STORAGE_BACKEND=gcs")
	}

	// TS_TEXTURES_URL — базовый URL раздачи текстур (по умолчанию пустой)
	cfg.TexturesURL = strings.TrimRight(getEnvDefault("TS_TEXTURES_URL", ""), "/")

	// --- Загрузки ---

	// TS_MAX_UPLOAD_SIZE — максимальный размер файла (по умолчанию 5 MiB)
	maxUpload, err := getEnvInt("TS_MAX_UPLOAD_SIZE", 5*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("TS_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload < 1 {
		return nil, fmt.Errorf("TS_MAX_UPLOAD_SIZE: значение %d должно быть положительным", maxUpload)
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// TS_TEXTURE_TYPE_DENYLIST — запрещённые типы через запятую
	cfg.TextureTypeDenylist = parseCSV(getEnvDefault("TS_TEXTURE_TYPE_DENYLIST", ""))

	// TS_FETCH_TIMEOUT — таймаут скачивания по внешнему URL (по умолчанию 10s)
	cfg.FetchTimeout, err = getEnvDuration("TS_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TS_FETCH_TIMEOUT: %w", err)
	}

	// --- Кеш профилей ---

	// TS_PROFILE_CACHE_SIZE — размер кеша (по умолчанию 1024)
	cfg.ProfileCacheSize, err = getEnvInt("TS_PROFILE_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("TS_PROFILE_CACHE_SIZE: %w", err)
	}

	// TS_PROFILE_CACHE_TTL — TTL кеша (по умолчанию 1m)
	cfg.ProfileCacheTTL, err = getEnvDuration("TS_PROFILE_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TS_PROFILE_CACHE_TTL: %w", err)
	}

	// --- Наблюдаемость и остановка ---

	// TS_DEPHEALTH_GROUP — группа сервиса в topologymetrics
	cfg.DephealthGroup = getEnvDefault("TS_DEPHEALTH_GROUP", "texture-server")

	// TS_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("TS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// TS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("TS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// TS_HTTP_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 10s)
	cfg.HTTPReadTimeout, err = getEnvDuration("TS_HTTP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TS_HTTP_READ_TIMEOUT: %w", err)
	}

	// TS_HTTP_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 30s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("TS_HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TS_HTTP_WRITE_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
