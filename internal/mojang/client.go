// Пакет mojang — HTTP-клиент к Mojang session server.
// Единственная операция — серверная проверка hasJoined: подтверждение,
// что клиент действительно аутентифицировался у провайдера с совпадающим
// server id. Обязательный таймаут, недоступность провайдера отличается
// от отказа в подтверждении.
package mojang

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionServerURL — корень session server по умолчанию.
const DefaultSessionServerURL = "https://sessionserver.mojang.com"

// hasJoinedPath — путь проверки hasJoined относительно корня session server.
const hasJoinedPath = "/session/minecraft/hasJoined"

// Ошибки клиента.
var (
	// ErrUnauthorized — провайдер не подтвердил аутентификацию (нет
	// серверной сессии с таким именем и server id).
	ErrUnauthorized = errors.New("mojang не подтвердил аутентификацию")
	// ErrUnavailable — провайдер недоступен или не ответил вовремя.
	ErrUnavailable = errors.New("mojang session server недоступен")
)

// Profile — подтверждённый профиль из ответа hasJoined.
type Profile struct {
	// ID — UUID профиля
	ID uuid.UUID `json:"id"`
	// Name — каноническое имя профиля
	Name string `json:"name"`
}

// Client — HTTP-клиент к session server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент session server.
// baseURL — корень session server (TS_SESSION_SERVER_URL), путь hasJoined
// клиент добавляет сам.
// timeout — таймаут HTTP-запросов (TS_SESSION_TIMEOUT).
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultSessionServerURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "mojang_client")),
	}
}

// HasJoined проверяет у провайдера, что клиент username аутентифицировался
// с указанным serverID с адреса ip. Возвращает подтверждённый профиль.
// Отказ провайдера → ErrUnauthorized, сетевые ошибки → ErrUnavailable.
func (c *Client) HasJoined(ctx context.Context, username, serverID, ip string) (*Profile, error) {
	params := url.Values{
		"username": {username},
		"serverId": {serverID},
	}
	if ip != "" {
		params.Set("ip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+hasJoinedPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса hasJoined: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Session server недоступен",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Продолжаем разбор профиля
	case resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		// Сессия не найдена — аутентификация не подтверждена
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: статус %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: неожиданный статус %d", ErrUnavailable, resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: некорректный ответ: %v", ErrUnavailable, err)
	}

	c.logger.Debug("hasJoined подтверждён",
		slog.String("name", profile.Name),
		slog.String("uuid", profile.ID.String()),
	)

	return &profile, nil
}
