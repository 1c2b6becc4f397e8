// users.go — обработчики чтения профилей: карта текстур пользователя,
// bulk-запросы и история версий.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/goskinstore/internal/api/errors"
	"github.com/bigkaa/goskinstore/internal/api/middleware"
	"github.com/bigkaa/goskinstore/internal/service"
)

// GetUser — GET /user/{user_id}?at=. Карта активных текстур пользователя,
// либо срез на момент времени at.
func (h *APIHandler) GetUser(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apierrors.ValidationError(w, "Некорректный UUID пользователя")
			return
		}
		h.writeProfile(w, r, s, id)
	}
}

// GetMe — GET /user. Карта текстур владельца токена.
func (h *APIHandler) GetMe(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			apierrors.Unauthorized(w, "Требуется аутентификация")
			return
		}
		h.writeProfile(w, r, s, user.UUID)
	}
}

func (h *APIHandler) writeProfile(w http.ResponseWriter, r *http.Request, s Surface, id uuid.UUID) {
	at, err := parseAt(r.URL.Query().Get("at"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр at")
		return
	}

	profile, err := h.profiles.Get(r.Context(), id, at)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Пользователь не найден")
			return
		}
		h.logger.Error("Ошибка чтения профиля", "user", id, "error", err)
		apierrors.InternalError(w, "Не удалось прочитать профиль")
		return
	}

	writeJSON(w, http.StatusOK, h.profileResponse(s, profile))
}

// bulkRequest — тело POST /bulk_textures.
type bulkRequest struct {
	UUIDs []string `json:"uuids"`
}

// GetBulk — POST /bulk_textures. Массив карт текстур по списку UUID,
// неизвестные пользователи молча пропускаются.
func (h *APIHandler) GetBulk(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
			return
		}

		ids := make([]uuid.UUID, 0, len(req.UUIDs))
		for _, raw := range req.UUIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				apierrors.ValidationError(w, "Некорректный UUID: "+raw)
				return
			}
			ids = append(ids, id)
		}

		profiles, err := h.profiles.GetBulk(r.Context(), ids)
		if err != nil {
			h.logger.Error("Ошибка bulk-запроса профилей", "error", err)
			apierrors.InternalError(w, "Не удалось прочитать профили")
			return
		}

		users := make([]map[string]any, 0, len(profiles))
		for _, p := range profiles {
			users = append(users, h.profileResponse(s, p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

// GetHistory — GET /history/{user_id}?limit=&at=. История версий
// текстур пользователя, от новых к старым внутри каждого типа.
func (h *APIHandler) GetHistory(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apierrors.ValidationError(w, "Некорректный UUID пользователя")
			return
		}
		h.writeHistory(w, r, s, id)
	}
}

// GetMyHistory — GET /history. История владельца токена.
func (h *APIHandler) GetMyHistory(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			apierrors.Unauthorized(w, "Требуется аутентификация")
			return
		}
		h.writeHistory(w, r, s, user.UUID)
	}
}

func (h *APIHandler) writeHistory(w http.ResponseWriter, r *http.Request, s Surface, id uuid.UUID) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apierrors.ValidationError(w, "Некорректный параметр limit")
			return
		}
		limit = n
	}
	before, err := parseAt(r.URL.Query().Get("at"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр at")
		return
	}

	history, err := h.profiles.GetHistory(r.Context(), id, limit, before)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Пользователь не найден")
			return
		}
		h.logger.Error("Ошибка чтения истории", "user", id, "error", err)
		apierrors.InternalError(w, "Не удалось прочитать историю")
		return
	}

	textures := make(map[string][]map[string]any, len(history.Entries))
	for texType, entries := range history.Entries {
		list := make([]map[string]any, 0, len(entries))
		for _, t := range entries {
			entry := map[string]any{
				"url":       h.textureLink(t.Hash),
				"startTime": s.FormatTime(t.StartTime),
				"endTime":   nil,
			}
			if t.EndTime != nil {
				entry["endTime"] = s.FormatTime(*t.EndTime)
			}
			if len(t.Meta) > 0 {
				entry["metadata"] = t.Meta
			}
			list = append(list, entry)
		}
		textures[s.FormatType(texType)] = list
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profileId":   s.FormatUUID(history.User.UUID),
		"profileName": history.User.Name,
		"textures":    textures,
	})
}

// profileResponse собирает карту текстур пользователя во внешней форме.
func (h *APIHandler) profileResponse(s Surface, p *service.Profile) map[string]any {
	textures := make(map[string]any, len(p.Textures))
	for texType, t := range p.Textures {
		entry := map[string]any{"url": h.textureLink(t.Hash)}
		if len(t.Meta) > 0 {
			entry["metadata"] = t.Meta
		}
		textures[s.FormatType(texType)] = entry
	}
	return map[string]any{
		"timestamp":   s.FormatTime(time.Now()),
		"profileId":   s.FormatUUID(p.User.UUID),
		"profileName": p.User.Name,
		"textures":    textures,
	}
}
