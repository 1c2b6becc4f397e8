// textures.go — обработчики загрузки, очистки и раздачи текстур.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/goskinstore/internal/api/errors"
	"github.com/bigkaa/goskinstore/internal/api/middleware"
	"github.com/bigkaa/goskinstore/internal/domain/textype"
	"github.com/bigkaa/goskinstore/internal/imaging"
	"github.com/bigkaa/goskinstore/internal/service"
)

// PutTexture — PUT /textures. Multipart-загрузка файла текстуры:
// поле file — содержимое, поле type — тип (по умолчанию скин),
// остальные строковые поля формы — метаданные.
func (h *APIHandler) PutTexture(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			apierrors.Unauthorized(w, "Требуется аутентификация")
			return
		}

		// Заявленный размер проверяется до чтения тела
		if r.ContentLength > h.uploads.MaxSize() {
			apierrors.PayloadTooLarge(w, "Файл превышает лимит размера")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxSize())
		if err := r.ParseMultipartForm(h.uploads.MaxSize()); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				apierrors.PayloadTooLarge(w, "Файл превышает лимит размера")
				return
			}
			apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			apierrors.ValidationError(w, "Поле file обязательно")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			apierrors.ValidationError(w, "Не удалось прочитать файл: "+err.Error())
			return
		}

		rawType := r.PostFormValue("type")
		if rawType == "" {
			rawType = s.DefaultType
		}
		texType, err := s.ParseType(rawType)
		if err != nil {
			writeTypeError(w, err)
			return
		}

		meta := formMeta(r, "file", "type")
		if err := h.uploads.Upload(r.Context(), user, texType, data, meta); err != nil {
			h.writeUploadError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// texturePostRequest — тело POST /textures.
type texturePostRequest struct {
	Type     string            `json:"type"`
	File     string            `json:"file"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PostTexture — POST /textures. Сервер сам скачивает файл по URL
// и дальше ведёт себя как PUT.
func (h *APIHandler) PostTexture(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			apierrors.Unauthorized(w, "Требуется аутентификация")
			return
		}

		var req texturePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
			return
		}
		if req.File == "" {
			apierrors.ValidationError(w, "Поле file (URL) обязательно")
			return
		}
		if req.Type == "" {
			req.Type = s.DefaultType
		}
		texType, err := s.ParseType(req.Type)
		if err != nil {
			writeTypeError(w, err)
			return
		}

		if err := h.uploads.UploadFromURL(r.Context(), user, texType, req.File, req.Metadata); err != nil {
			h.writeUploadError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// textureDeleteRequest — тело DELETE /texture.
type textureDeleteRequest struct {
	Type string `json:"type"`
}

// DeleteTexture — DELETE /textures и DELETE /texture.
// Типы берутся из повторяемого query-параметра type либо из JSON-тела
// {type}; без указания очищается скин.
func (h *APIHandler) DeleteTexture(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			apierrors.Unauthorized(w, "Требуется аутентификация")
			return
		}

		rawTypes := r.URL.Query()["type"]
		if len(rawTypes) == 0 && r.Body != nil {
			var req textureDeleteRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Type != "" {
				rawTypes = []string{req.Type}
			}
		}
		if len(rawTypes) == 0 {
			rawTypes = []string{s.DefaultType}
		}

		for _, raw := range rawTypes {
			texType, err := s.ParseType(raw)
			if err != nil {
				writeTypeError(w, err)
				return
			}
			if err := h.uploads.Clear(r.Context(), user, texType); err != nil {
				h.logger.Error("Ошибка очистки текстуры", "type", texType, "error", err)
				apierrors.InternalError(w, "Не удалось очистить текстуру")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

// PutTextureLegacy — PUT /user/{user_id}/{skin_type}. Устаревшая
// загрузка файла: тип в пути, владелец обязан совпадать с токеном.
func (h *APIHandler) PutTextureLegacy(s Surface) http.HandlerFunc {
	put := h.PutTexture(s)
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.checkLegacyOwner(w, r) {
			return
		}
		if r.ContentLength > h.uploads.MaxSize() {
			apierrors.PayloadTooLarge(w, "Файл превышает лимит размера")
			return
		}
		if err := r.ParseMultipartForm(h.uploads.MaxSize()); err != nil {
			apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
			return
		}
		// Тип из пути важнее формы.
		r.PostForm.Set("type", chi.URLParam(r, "skin_type"))
		if r.MultipartForm != nil {
			r.MultipartForm.Value["type"] = []string{chi.URLParam(r, "skin_type")}
		}
		put(w, r)
	}
}

// PostTextureLegacy — POST /user/{user_id}/{skin_type}. Устаревшая
// загрузка по URL: form-поле file, тип в пути, прочие поля — метаданные.
func (h *APIHandler) PostTextureLegacy(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.checkLegacyOwner(w, r) {
			return
		}
		user := middleware.UserFromContext(r.Context())

		if err := r.ParseForm(); err != nil {
			apierrors.ValidationError(w, "Некорректная форма: "+err.Error())
			return
		}
		fileURL := r.PostFormValue("file")
		if fileURL == "" {
			apierrors.ValidationError(w, "Поле file (URL) обязательно")
			return
		}

		texType, err := s.ParseType(chi.URLParam(r, "skin_type"))
		if err != nil {
			writeTypeError(w, err)
			return
		}

		meta := formMeta(r, "file")
		if err := h.uploads.UploadFromURL(r.Context(), user, texType, fileURL, meta); err != nil {
			h.writeUploadError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// ServeTexture — GET /textures/{hash}. Раздача содержимого текстуры.
// Содержимое неизменно по построению ключа, поэтому кешируется навсегда.
func (h *APIHandler) ServeTexture(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	rc, err := h.uploads.OpenTexture(r.Context(), hash)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Текстура не найдена")
			return
		}
		h.logger.Error("Ошибка чтения текстуры", "hash", hash, "error", err)
		apierrors.InternalError(w, "Не удалось прочитать текстуру")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = io.Copy(w, rc)
}

// checkLegacyOwner сверяет user_id пути с владельцем токена.
func (h *APIHandler) checkLegacyOwner(w http.ResponseWriter, r *http.Request) bool {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return false
	}
	pathID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный UUID пользователя")
		return false
	}
	if pathID != user.UUID {
		apierrors.Forbidden(w, "Загрузка разрешена только в собственный профиль")
		return false
	}
	return true
}

// formMeta собирает метаданные из строковых полей формы,
// исключая служебные поля.
func formMeta(r *http.Request, exclude ...string) map[string]string {
	excluded := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		excluded[k] = true
	}
	meta := make(map[string]string)
	for k, v := range r.PostForm {
		if !excluded[k] && len(v) > 0 {
			meta[k] = v[0]
		}
	}
	if r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			if !excluded[k] && len(v) > 0 {
				meta[k] = v[0]
			}
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// writeTypeError транслирует ошибки разбора типа в ответ API.
func writeTypeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, textype.ErrReservedNamespace):
		apierrors.ReservedNamespace(w, err.Error())
	case errors.Is(err, textype.ErrInvalidIdentifier):
		apierrors.InvalidIdentifier(w, err.Error())
	default:
		apierrors.ValidationError(w, err.Error())
	}
}

// writeUploadError транслирует ошибки сервиса загрузки в ответ API.
func (h *APIHandler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTypeNotAllowed):
		apierrors.TypeNotAllowed(w, "Этот тип текстуры запрещён к загрузке")
	case errors.Is(err, service.ErrPayloadTooLarge):
		apierrors.PayloadTooLarge(w, "Файл превышает лимит размера")
	case errors.Is(err, service.ErrFetchFailed):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		apierrors.UnsupportedFormat(w, "Поддерживается только PNG")
	case errors.Is(err, imaging.ErrUnsupportedDimensions):
		apierrors.UnsupportedDimensions(w, err.Error())
	case errors.Is(err, imaging.ErrInvalidImage):
		apierrors.InvalidImage(w, "Данные не являются изображением")
	default:
		h.logger.Error("Ошибка загрузки текстуры", "error", err)
		apierrors.InternalError(w, "Не удалось загрузить текстуру")
	}
}
