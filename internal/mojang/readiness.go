package mojang

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ReadinessChecker — проверка доступности session-сервера для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	baseURL string
	client  *http.Client
}

// NewReadinessChecker создаёт checker доступности session-сервера.
func NewReadinessChecker(baseURL string, timeout time.Duration) *ReadinessChecker {
	return &ReadinessChecker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// CheckReady проверяет, что session-сервер отвечает по HTTP.
// Любой HTTP-ответ считается успехом: корень session-сервера может
// возвращать 403, важна достижимость, а не статус.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, http.NoBody)
	if err != nil {
		return "fail", fmt.Sprintf("некорректный URL session-сервера: %v", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("session-сервер недоступен: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "fail", fmt.Sprintf("session-сервер вернул статус %d", resp.StatusCode)
	}
	return "ok", "session-сервер отвечает"
}
