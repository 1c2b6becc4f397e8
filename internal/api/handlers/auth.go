// auth.go — обработчики handshake-аутентификации.
// POST /auth/minecraft — шаг 1, POST /auth/minecraft/callback — шаг 3.
// Устаревшие алиасы /auth/handshake и /auth/response ведут на те же
// обработчики.
package handlers

import (
	"errors"
	"net"
	"net/http"

	apierrors "github.com/bigkaa/goskinstore/internal/api/errors"
	"github.com/bigkaa/goskinstore/internal/authflow"
	"github.com/bigkaa/goskinstore/internal/mojang"
)

// handshakeResponse — ответ первого шага handshake.
type handshakeResponse struct {
	ServerID    string `json:"serverId"`
	VerifyToken uint32 `json:"verifyToken"`
	Offline     bool   `json:"offline"`
}

// loginResponse — ответ успешного завершения handshake.
// AccessToken включает префикс "Bearer " — клиенты подставляют значение
// в заголовок Authorization как есть.
type loginResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
}

// AuthHandshake — POST /auth/minecraft. Принимает form-поле name,
// возвращает server id и одноразовый verify token.
func (h *APIHandler) AuthHandshake(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.ValidationError(w, "Некорректная форма: "+err.Error())
		return
	}
	name := r.PostFormValue("name")
	if name == "" {
		apierrors.ValidationError(w, "Поле name обязательно")
		return
	}

	challenge, err := h.auth.Handshake(name, clientAddr(r))
	if err != nil {
		h.logger.Error("Ошибка начала handshake", "error", err)
		apierrors.InternalError(w, "Не удалось начать handshake")
		return
	}

	writeJSON(w, http.StatusOK, handshakeResponse{
		ServerID:    challenge.ServerID,
		VerifyToken: challenge.VerifyToken,
		Offline:     challenge.Offline,
	})
}

// AuthResponse — POST /auth/minecraft/callback. Принимает form-поля
// name и verifyToken, подтверждает сессию у session-сервера и выдаёт
// access token.
func (h *APIHandler) AuthResponse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.ValidationError(w, "Некорректная форма: "+err.Error())
		return
	}
	name := r.PostFormValue("name")
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	verifyToken := r.PostFormValue("verifyToken")
	if name == "" || verifyToken == "" {
		apierrors.ValidationError(w, "Поля name и verifyToken обязательны")
		return
	}

	result, err := h.auth.Response(r.Context(), name, verifyToken, clientAddr(r))
	if err != nil {
		switch {
		case errors.Is(err, authflow.ErrForbidden):
			apierrors.Forbidden(w, "Токен не запрошен, истёк или данные клиента не совпадают")
		case errors.Is(err, mojang.ErrUnauthorized):
			apierrors.Unauthorized(w, "Session-сервер не подтвердил вход")
		case errors.Is(err, mojang.ErrUnavailable):
			apierrors.UpstreamError(w, "Session-сервер недоступен")
		default:
			h.logger.Error("Ошибка завершения handshake", "name", name, "error", err)
			apierrors.InternalError(w, "Не удалось завершить handshake")
		}
		return
	}

	w.Header().Set("Authorization", result.AccessToken)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: "Bearer " + result.AccessToken,
		UserID:      result.User.UUID.String(),
	})
}

// clientAddr возвращает сетевой адрес клиента без порта.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
