package mojang

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestHasJoined_Success проверяет разбор успешного ответа провайдера.
func TestHasJoined_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("username"); got != "Sollace" {
			t.Errorf("username = %q, ожидалось %q", got, "Sollace")
		}
		if got := r.URL.Query().Get("serverId"); got != "srv-1" {
			t.Errorf("serverId = %q, ожидалось %q", got, "srv-1")
		}
		if got := r.URL.Query().Get("ip"); got != "10.0.0.1" {
			t.Errorf("ip = %q, ожидалось %q", got, "10.0.0.1")
		}
		w.Header().Set("Content-Type", "application/json")
		// Mojang возвращает UUID без дефисов
		_, _ = w.Write([]byte(`{"id":"51aa42eb7aef4b6ab758ab0fadac5ab5","name":"Sollace"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, 5*time.Second, testLogger())
	profile, err := client.HasJoined(context.Background(), "Sollace", "srv-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if profile.Name != "Sollace" {
		t.Errorf("name = %q, ожидалось %q", profile.Name, "Sollace")
	}
	if profile.ID.String() != "51aa42eb-7aef-4b6a-b758-ab0fadac5ab5" {
		t.Errorf("uuid = %q, разбор не удался", profile.ID.String())
	}
}

// TestHasJoined_Path проверяет, что путь hasJoined добавляется к корню
// session server: в конфигурации задаётся именно корень.
func TestHasJoined_Path(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"51aa42eb7aef4b6ab758ab0fadac5ab5","name":"Sollace"}`))
	}))
	defer srv.Close()

	// Хвостовой слэш, как мог бы задать оператор
	client := New(srv.URL+"/", 5*time.Second, testLogger())
	if _, err := client.HasJoined(context.Background(), "Sollace", "srv-1", ""); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if gotPath != "/session/minecraft/hasJoined" {
		t.Errorf("путь запроса = %q, ожидался %q", gotPath, "/session/minecraft/hasJoined")
	}
}

// TestHasJoined_NoContent проверяет, что 204 трактуется как отказ провайдера.
func TestHasJoined_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New(srv.URL, 5*time.Second, testLogger())
	_, err := client.HasJoined(context.Background(), "Sollace", "srv-1", "10.0.0.1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("ожидалась ErrUnauthorized, получено %v", err)
	}
}

// TestHasJoined_ServerError проверяет, что 5xx отличается от отказа.
func TestHasJoined_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, 5*time.Second, testLogger())
	_, err := client.HasJoined(context.Background(), "Sollace", "srv-1", "10.0.0.1")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ожидалась ErrUnavailable, получено %v", err)
	}
}

// TestHasJoined_Timeout проверяет, что медленный провайдер не подвешивает запрос.
func TestHasJoined_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := New(srv.URL, 50*time.Millisecond, testLogger())
	start := time.Now()
	_, err := client.HasJoined(context.Background(), "Sollace", "srv-1", "10.0.0.1")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ожидалась ErrUnavailable, получено %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("таймаут клиента не сработал")
	}
}
