package authflow

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goskinstore/internal/domain/model"
	"github.com/bigkaa/goskinstore/internal/mojang"
)

// Метрика исходов завершения handshake.
// result: success, forbidden, unauthorized, unavailable, error.
var loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ts_auth_logins_total",
	Help: "Количество попыток завершения handshake по исходу",
}, []string{"result"})

// Ошибки handshake-протокола.
var (
	// ErrForbidden — token неизвестен, истёк, либо имя или адрес клиента
	// не совпадают с заявленными на первом шаге.
	ErrForbidden = errors.New("токен недействителен или данные клиента не совпадают")
)

// SessionVerifier подтверждает сессию клиента у Mojang.
type SessionVerifier interface {
	HasJoined(ctx context.Context, username, serverID, ip string) (*mojang.Profile, error)
}

// UserRegistry регистрирует пользователей по подтверждённому профилю.
type UserRegistry interface {
	GetOrCreate(ctx context.Context, id uuid.UUID, name string) (*model.User, error)
}

// Service реализует серверную сторону handshake-протокола.
type Service struct {
	tokens   *TokenTable
	verifier SessionVerifier
	users    UserRegistry
	secret   []byte
	serverID string
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewService создаёт сервис аутентификации.
func NewService(tokens *TokenTable, verifier SessionVerifier, users UserRegistry,
	secret []byte, serverID string, tokenTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		tokens:   tokens,
		verifier: verifier,
		users:    users,
		secret:   secret,
		serverID: serverID,
		tokenTTL: tokenTTL,
		logger:   logger.With(slog.String("component", "authflow")),
	}
}

// Challenge — ответ сервера на первый шаг handshake.
type Challenge struct {
	ServerID    string `json:"serverId"`
	VerifyToken uint32 `json:"verifyToken"`
	Offline     bool   `json:"offline"`
}

// LoginResult — результат успешного завершения handshake.
type LoginResult struct {
	User        *model.User
	AccessToken string
	ExpiresAt   time.Time
}

// Handshake — шаг 1: запоминает (имя, адрес) под свежим случайным token.
func (s *Service) Handshake(name, remoteAddr string) (*Challenge, error) {
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("генерация verify token: %w", err)
	}
	s.tokens.Put(token, PendingLogin{Name: name, RemoteAddr: remoteAddr})
	s.logger.Debug("handshake начат",
		slog.String("name", name),
		slog.String("remote_addr", remoteAddr),
	)
	return &Challenge{
		ServerID:    s.serverID,
		VerifyToken: token,
		Offline:     false,
	}, nil
}

// Response — шаг 3: проверяет token, сверяет имя и адрес, подтверждает
// сессию у Mojang и выдаёт access token. Token потребляется при первом
// же предъявлении, до любых проверок.
func (s *Service) Response(ctx context.Context, name, verifyToken, remoteAddr string) (*LoginResult, error) {
	pending, ok := s.tokens.Take(verifyToken)
	if !ok {
		s.logger.Info("handshake отклонён: неизвестный или истёкший токен",
			slog.String("name", name),
		)
		loginsTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrForbidden
	}
	if pending.Name != name || pending.RemoteAddr != remoteAddr {
		s.logger.Info("handshake отклонён: имя или адрес не совпадают",
			slog.String("name", name),
			slog.String("remote_addr", remoteAddr),
			slog.String("expected_name", pending.Name),
		)
		loginsTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrForbidden
	}

	profile, err := s.verifier.HasJoined(ctx, name, s.serverID, remoteAddr)
	if err != nil {
		switch {
		case errors.Is(err, mojang.ErrUnauthorized):
			loginsTotal.WithLabelValues("unauthorized").Inc()
		case errors.Is(err, mojang.ErrUnavailable):
			loginsTotal.WithLabelValues("unavailable").Inc()
		default:
			loginsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	user, err := s.users.GetOrCreate(ctx, profile.ID, profile.Name)
	if err != nil {
		return nil, fmt.Errorf("регистрация пользователя %s: %w", profile.ID, err)
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := s.issueToken(user, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("выпуск access token: %w", err)
	}

	loginsTotal.WithLabelValues("success").Inc()
	s.logger.Info("handshake завершён",
		slog.String("uuid", user.UUID.String()),
		slog.String("name", user.Name),
	)
	return &LoginResult{User: user, AccessToken: token, ExpiresAt: expiresAt}, nil
}

// issueToken подписывает JWT с UUID пользователя в claim sid.
func (s *Service) issueToken(user *model.User, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": user.UUID.String(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// randomToken — криптостойкий 32-битный verify token.
func randomToken() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}
