// Пакет errors — конструкторы стандартных ошибок API сервера текстур.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError       = "VALIDATION_ERROR"
	CodeInvalidImage          = "INVALID_IMAGE"
	CodeUnsupportedFormat     = "UNSUPPORTED_FORMAT"
	CodeUnsupportedDimensions = "UNSUPPORTED_DIMENSIONS"
	CodePayloadTooLarge       = "PAYLOAD_TOO_LARGE"
	CodeInvalidIdentifier     = "INVALID_IDENTIFIER"
	CodeReservedNamespace     = "RESERVED_NAMESPACE"
	CodeTypeNotAllowed        = "TYPE_NOT_ALLOWED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeUpstreamError         = "UPSTREAM_ERROR"
	CodeInternalError         = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// InvalidImage — 400 данные не являются изображением.
func InvalidImage(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidImage, message)
}

// UnsupportedFormat — 400 формат изображения не PNG.
func UnsupportedFormat(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeUnsupportedFormat, message)
}

// UnsupportedDimensions — 400 недопустимые размеры изображения.
func UnsupportedDimensions(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeUnsupportedDimensions, message)
}

// PayloadTooLarge — 413 превышен лимит размера файла.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// InvalidIdentifier — 400 некорректный идентификатор типа текстуры.
func InvalidIdentifier(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidIdentifier, message)
}

// ReservedNamespace — 400 зарезервированное пространство имён.
func ReservedNamespace(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeReservedNamespace, message)
}

// TypeNotAllowed — 403 тип текстуры запрещён к загрузке.
func TypeNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeTypeNotAllowed, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// UpstreamError — 502 внешний сервис недоступен.
func UpstreamError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeUpstreamError, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
