package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goskinstore/internal/domain/model"
)

// UserRepository — доступ к таблице users.
type UserRepository interface {
	// GetOrCreate возвращает пользователя по UUID, создавая запись
	// при первом обращении. Имя обновляется при каждом вызове —
	// игроки переименовываются, UUID остаётся.
	GetOrCreate(ctx context.Context, id uuid.UUID, name string) (*model.User, error)
	// GetByUUID возвращает пользователя по UUID.
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUUIDs возвращает пользователей по списку UUID.
	// Неизвестные UUID молча пропускаются.
	GetByUUIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.UUID, &u.Name)
	return u, err
}

func (r *userRepo) GetOrCreate(ctx context.Context, id uuid.UUID, name string) (*model.User, error) {
	// upsert: гонка двух параллельных первых входов разрешается
	// на уникальном индексе по uuid
	query := `
		INSERT INTO users (uuid, name)
		VALUES ($1, $2)
		ON CONFLICT (uuid) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, uuid, name`

	u, err := scanUser(r.db.QueryRow(ctx, query, id, name))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT id, uuid, name FROM users WHERE uuid = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByUUIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	query := `SELECT id, uuid, name FROM users WHERE uuid = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки пользователей: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
