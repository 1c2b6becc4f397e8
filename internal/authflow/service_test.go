package authflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bigkaa/goskinstore/internal/domain/model"
	"github.com/bigkaa/goskinstore/internal/mojang"
)

type fakeVerifier struct {
	profile *mojang.Profile
	err     error
	calls   int
}

func (f *fakeVerifier) HasJoined(_ context.Context, _, _, _ string) (*mojang.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeRegistry struct {
	users map[uuid.UUID]*model.User
}

func (f *fakeRegistry) GetOrCreate(_ context.Context, id uuid.UUID, name string) (*model.User, error) {
	if f.users == nil {
		f.users = make(map[uuid.UUID]*model.User)
	}
	u, ok := f.users[id]
	if !ok {
		u = &model.User{ID: int64(len(f.users) + 1), UUID: id, Name: name}
		f.users[id] = u
	}
	return u, nil
}

func newTestService(t *testing.T, verifier SessionVerifier) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := NewTokenTable(100, 30*time.Second)
	return NewService(tokens, verifier, &fakeRegistry{},
		[]byte("test-secret"), "test-server", time.Hour, logger)
}

func TestHandshakeIssuesDistinctTokens(t *testing.T) {
	srv := newTestService(t, &fakeVerifier{})

	seen := make(map[uint32]bool)
	for i := 0; i < 50; i++ {
		ch, err := srv.Handshake("steve", "10.0.0.1")
		if err != nil {
			t.Fatalf("Handshake вернул ошибку: %v", err)
		}
		if ch.ServerID != "test-server" {
			t.Fatalf("serverId = %q, ожидалось %q", ch.ServerID, "test-server")
		}
		if ch.Offline {
			t.Fatal("offline = true, ожидалось false")
		}
		if seen[ch.VerifyToken] {
			t.Fatalf("токен %d выдан повторно", ch.VerifyToken)
		}
		seen[ch.VerifyToken] = true
	}
}

func TestResponseSuccess(t *testing.T) {
	id := uuid.New()
	verifier := &fakeVerifier{profile: &mojang.Profile{ID: id, Name: "Steve"}}
	srv := newTestService(t, verifier)

	ch, err := srv.Handshake("Steve", "10.0.0.1")
	if err != nil {
		t.Fatalf("Handshake вернул ошибку: %v", err)
	}

	res, err := srv.Response(context.Background(), "Steve",
		strconv.FormatUint(uint64(ch.VerifyToken), 10), "10.0.0.1")
	if err != nil {
		t.Fatalf("Response вернул ошибку: %v", err)
	}
	if res.User.UUID != id {
		t.Errorf("UUID пользователя = %s, ожидался %s", res.User.UUID, id)
	}
	if verifier.calls != 1 {
		t.Errorf("HasJoined вызван %d раз, ожидался 1", verifier.calls)
	}

	// проверяем подпись и claims выданного токена
	parsed, err := jwt.Parse(res.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("разбор access token: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sid"] != id.String() {
		t.Errorf("claim sid = %v, ожидался %s", claims["sid"], id)
	}
}

func TestResponseTokenIsSingleUse(t *testing.T) {
	id := uuid.New()
	srv := newTestService(t, &fakeVerifier{profile: &mojang.Profile{ID: id, Name: "Steve"}})

	ch, _ := srv.Handshake("Steve", "10.0.0.1")
	token := strconv.FormatUint(uint64(ch.VerifyToken), 10)

	if _, err := srv.Response(context.Background(), "Steve", token, "10.0.0.1"); err != nil {
		t.Fatalf("первый Response вернул ошибку: %v", err)
	}
	if _, err := srv.Response(context.Background(), "Steve", token, "10.0.0.1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("повторное предъявление токена: err = %v, ожидался ErrForbidden", err)
	}
}

func TestResponseConsumesTokenOnFailure(t *testing.T) {
	// токен сгорает даже если проверка не прошла
	srv := newTestService(t, &fakeVerifier{err: mojang.ErrUnauthorized})

	ch, _ := srv.Handshake("Steve", "10.0.0.1")
	token := strconv.FormatUint(uint64(ch.VerifyToken), 10)

	if _, err := srv.Response(context.Background(), "Steve", token, "10.0.0.1"); !errors.Is(err, mojang.ErrUnauthorized) {
		t.Fatalf("err = %v, ожидался ErrUnauthorized", err)
	}
	if srv.tokens.Len() != 0 {
		t.Errorf("в таблице осталось %d токенов, ожидалось 0", srv.tokens.Len())
	}
}

func TestResponseMismatch(t *testing.T) {
	tests := []struct {
		name       string
		claimName  string
		remoteAddr string
	}{
		{"чужое имя", "Alex", "10.0.0.1"},
		{"чужой адрес", "Steve", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{profile: &mojang.Profile{ID: uuid.New(), Name: "Steve"}}
			srv := newTestService(t, verifier)

			ch, _ := srv.Handshake("Steve", "10.0.0.1")
			token := strconv.FormatUint(uint64(ch.VerifyToken), 10)

			_, err := srv.Response(context.Background(), tt.claimName, token, tt.remoteAddr)
			if !errors.Is(err, ErrForbidden) {
				t.Fatalf("err = %v, ожидался ErrForbidden", err)
			}
			if verifier.calls != 0 {
				t.Error("HasJoined вызван до сверки имени и адреса")
			}
		})
	}
}

func TestResponseUnknownToken(t *testing.T) {
	srv := newTestService(t, &fakeVerifier{})
	if _, err := srv.Response(context.Background(), "Steve", "12345", "10.0.0.1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, ожидался ErrForbidden", err)
	}
}

func TestTokenTableExpiry(t *testing.T) {
	tokens := NewTokenTable(10, 50*time.Millisecond)
	tokens.Put(42, PendingLogin{Name: "Steve", RemoteAddr: "10.0.0.1"})

	if _, ok := tokens.Take("42"); !ok {
		t.Fatal("токен не найден сразу после записи")
	}

	tokens.Put(43, PendingLogin{Name: "Steve", RemoteAddr: "10.0.0.1"})
	time.Sleep(100 * time.Millisecond)
	if _, ok := tokens.Take("43"); ok {
		t.Fatal("токен доступен после истечения TTL")
	}
}

func TestTokenTableCapacity(t *testing.T) {
	tokens := NewTokenTable(3, time.Minute)
	for i := uint32(0); i < 5; i++ {
		tokens.Put(i, PendingLogin{Name: "Steve"})
	}
	if got := tokens.Len(); got != 3 {
		t.Fatalf("в таблице %d записей, ожидалось 3", got)
	}
	// старейшие вытеснены
	if _, ok := tokens.Take("0"); ok {
		t.Error("вытесненный токен 0 всё ещё доступен")
	}
	if _, ok := tokens.Take("4"); !ok {
		t.Error("свежий токен 4 недоступен")
	}
}
