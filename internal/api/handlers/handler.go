// handler.go — основной обработчик API сервера текстур.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
//
// API выставляется двумя поверхностями с разными конвенциями
// идентификаторов типов: /api/v1 (устаревшая, подчёркивания и
// миллисекундные отметки времени) и /api/v2 (строгая namespaced-форма,
// RFC3339). Обе поверхности работают с одной канонической формой в БД.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goskinstore/internal/authflow"
	"github.com/bigkaa/goskinstore/internal/domain/textype"
	"github.com/bigkaa/goskinstore/internal/service"
)

// APIHandler — основной обработчик API сервера текстур.
type APIHandler struct {
	health      *HealthHandler
	auth        *authflow.Service
	profiles    *service.ProfileService
	uploads     *service.UploadService
	texturesURL string
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// texturesURL — базовый URL раздачи текстур; пустой — относительные ссылки.
func NewAPIHandler(
	health *HealthHandler,
	auth *authflow.Service,
	profiles *service.ProfileService,
	uploads *service.UploadService,
	texturesURL string,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:      health,
		auth:        auth,
		profiles:    profiles,
		uploads:     uploads,
		texturesURL: texturesURL,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// textureLink строит URL содержимого текстуры по хешу.
func (h *APIHandler) textureLink(hash string) string {
	if h.texturesURL == "" {
		return "/textures/" + hash
	}
	return h.texturesURL + "/" + hash
}

// --- Поверхности API ---

// Surface описывает конвенции одной версии API: разбор и форматирование
// идентификаторов типов, представление отметок времени и UUID.
type Surface struct {
	// ParseType нормализует идентификатор типа из внешней формы.
	ParseType func(string) (string, error)
	// FormatType приводит канонический тип к внешней форме.
	FormatType func(string) string
	// DefaultType — тип по умолчанию во внешней форме.
	DefaultType string
	// FormatTime — представление отметки времени в ответах.
	FormatTime func(time.Time) any
	// FormatUUID — представление UUID в ответах.
	FormatUUID func(uuid.UUID) string
}

// LegacySurface — конвенции /api/v1: подчёркивания в типах, снисходительный
// разбор, миллисекундные отметки времени, UUID без дефисов.
func LegacySurface() Surface {
	return Surface{
		ParseType:   func(s string) (string, error) { return textype.ParseLegacy(s), nil },
		FormatType:  textype.FormatLegacy,
		DefaultType: "skin",
		FormatTime:  func(t time.Time) any { return t.UnixMilli() },
		FormatUUID:  func(u uuid.UUID) string { return strings.ReplaceAll(u.String(), "-", "") },
	}
}

// NamespacedSurface — конвенции /api/v2: строгая namespaced-форма
// с валидацией, RFC3339, канонические UUID.
func NamespacedSurface() Surface {
	return Surface{
		ParseType:   textype.ParseStrict,
		FormatType:  textype.FormatNamespaced,
		DefaultType: "minecraft:skin",
		FormatTime:  func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
		FormatUUID:  uuid.UUID.String,
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parseAt разбирает необязательный параметр момента времени.
// Принимает RFC3339 и миллисекунды Unix-эпохи.
func parseAt(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	ms, err := parseInt64(raw)
	if err != nil {
		return nil, err
	}
	t := time.UnixMilli(ms)
	return &t, nil
}

func parseInt64(s string) (int64, error) {
	var n int64
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return 0, err
	}
	return n, nil
}
