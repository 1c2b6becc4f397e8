// auth.go — JWT middleware аутентификации сервера текстур.
// Access token — HS256 JWT, выданный authflow после handshake;
// claim sid содержит UUID подтверждённого профиля.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/goskinstore/internal/api/errors"
	"github.com/bigkaa/goskinstore/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyUser — аутентифицированный пользователь в контексте запроса.
const ContextKeyUser contextKey = "auth_user"

// UserResolver возвращает пользователя по UUID из access token.
// Реализуется repository.UserRepository.
type UserResolver interface {
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// sessionClaims — claims access token.
type sessionClaims struct {
	jwt.RegisteredClaims
	// SID — UUID профиля Minecraft.
	SID string `json:"sid"`
}

// JWTAuth — middleware HS256-аутентификации.
type JWTAuth struct {
	secret []byte
	users  UserResolver
	logger *slog.Logger
	leeway time.Duration
}

// NewJWTAuth создаёт JWT middleware.
func NewJWTAuth(secret []byte, users UserResolver, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		secret: secret,
		users:  users,
		logger: logger.With(slog.String("component", "jwt_auth")),
		leeway: 30 * time.Second,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, проверяет подпись (HS256) и срок действия,
// резолвит пользователя по claim sid и помещает его в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims := &sessionClaims{}
			_, err := jwt.ParseWithClaims(tokenString, claims,
				func(*jwt.Token) (interface{}, error) { return j.secret, nil },
				jwt.WithValidMethods([]string{"HS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.leeway),
			)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			sid, err := uuid.Parse(claims.SID)
			if err != nil {
				apierrors.Unauthorized(w, "Некорректный claim sid в токене")
				return
			}

			user, err := j.users.GetByUUID(r.Context(), sid)
			if err != nil {
				apierrors.Unauthorized(w, "Пользователь токена не найден")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext извлекает аутентифицированного пользователя из контекста.
// Возвращает nil, если пользователь не найден.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ContextKeyUser).(*model.User)
	return user
}
