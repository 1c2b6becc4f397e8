package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goskinstore/internal/domain/model"
)

// UploadRepository — доступ к таблице uploads.
type UploadRepository interface {
	// Create регистрирует загрузку содержимого с данным хешем.
	// Хеш уникален на всю таблицу; при гонке двух одинаковых загрузок
	// возвращается уже существующая строка.
	Create(ctx context.Context, hash string, userID int64) (*model.Upload, error)
	// GetByHash возвращает загрузку с данным хешем.
	// Используется для проверки наличия содержимого в хранилище.
	GetByHash(ctx context.Context, hash string) (*model.Upload, error)
}

type uploadRepo struct {
	db DBTX
}

// NewUploadRepository создаёт репозиторий загрузок.
func NewUploadRepository(db DBTX) UploadRepository {
	return &uploadRepo{db: db}
}

func scanUpload(row pgx.Row) (*model.Upload, error) {
	u := &model.Upload{}
	err := row.Scan(&u.ID, &u.Hash, &u.UserID, &u.UploadTime)
	return u, err
}

func (r *uploadRepo) Create(ctx context.Context, hash string, userID int64) (*model.Upload, error) {
	query := `
		INSERT INTO uploads (hash, user_id)
		VALUES ($1, $2)
		RETURNING id, hash, user_id, upload_time`

	u, err := scanUpload(r.db.QueryRow(ctx, query, hash, userID))
	if err != nil {
		// Параллельная загрузка того же содержимого уже создала строку
		if isUniqueViolation(err) {
			return r.GetByHash(ctx, hash)
		}
		return nil, fmt.Errorf("ошибка регистрации загрузки: %w", err)
	}
	return u, nil
}

func (r *uploadRepo) GetByHash(ctx context.Context, hash string) (*model.Upload, error) {
	query := `
		SELECT id, hash, user_id, upload_time
		FROM uploads
		WHERE hash = $1`

	u, err := scanUpload(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска загрузки по хешу: %w", err)
	}
	return u, nil
}
