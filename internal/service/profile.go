// profile.go — сервис чтения профилей: активные текстуры, срезы
// на момент времени, история и bulk-запросы.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goskinstore/internal/domain/model"
	"github.com/bigkaa/goskinstore/internal/repository"
)

// Profile — пользователь с набором его текстур по типам.
type Profile struct {
	User     *model.User
	Textures map[string]*model.Texture
}

// ProfileService — чтение профилей и истории.
type ProfileService struct {
	users    repository.UserRepository
	textures repository.TextureRepository
	cache    *ProfileCache
	logger   *slog.Logger
}

// NewProfileService создаёт сервис профилей.
func NewProfileService(
	users repository.UserRepository,
	textures repository.TextureRepository,
	cache *ProfileCache,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:    users,
		textures: textures,
		cache:    cache,
		logger:   logger.With(slog.String("component", "profile_service")),
	}
}

// Get возвращает профиль пользователя. at == nil — актуальный срез
// (кешируется), иначе срез на момент времени at.
func (s *ProfileService) Get(ctx context.Context, id uuid.UUID, at *time.Time) (*Profile, error) {
	if at == nil {
		if user, textures, ok := s.cache.Get(id); ok {
			return &Profile{User: user, Textures: textures}, nil
		}
	}

	user, err := s.users.GetByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("поиск пользователя %s: %w", id, err)
	}

	textures, err := s.textures.GetActive(ctx, user.ID, at)
	if err != nil {
		return nil, fmt.Errorf("выборка текстур пользователя %s: %w", id, err)
	}

	if at == nil {
		s.cache.Put(id, user, textures)
	}
	return &Profile{User: user, Textures: textures}, nil
}

// GetBulk возвращает профили по списку UUID. Неизвестные UUID молча
// пропускаются; порядок результата соответствует порядку найденных
// пользователей.
func (s *ProfileService) GetBulk(ctx context.Context, ids []uuid.UUID) ([]*Profile, error) {
	users, err := s.users.GetByUUIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("выборка пользователей: %w", err)
	}

	profiles := make([]*Profile, 0, len(users))
	for _, user := range users {
		textures, err := s.textures.GetActive(ctx, user.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("выборка текстур пользователя %s: %w", user.UUID, err)
		}
		profiles = append(profiles, &Profile{User: user, Textures: textures})
	}
	return profiles, nil
}

// History — история текстур пользователя, сгруппированная по типам.
type History struct {
	User    *model.User
	Entries map[string][]*model.Texture
}

// GetHistory возвращает историю текстур пользователя от новых к старым.
// limit > 0 ограничивает число записей на тип; before фильтрует записи,
// закрытые до указанного момента.
func (s *ProfileService) GetHistory(ctx context.Context, id uuid.UUID, limit int, before *time.Time) (*History, error) {
	user, err := s.users.GetByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("поиск пользователя %s: %w", id, err)
	}

	entries, err := s.textures.GetHistory(ctx, user.ID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("выборка истории пользователя %s: %w", id, err)
	}
	return &History{User: user, Entries: entries}, nil
}
