package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goskinstore/internal/domain/model"
)

// putRetries — число повторов транзакции Put при гонке на уникальном
// индексе активных записей.
const putRetries = 3

// TextureRepository — журнал версий текстур.
//
// Журнал интервальный: каждая запись живёт в [start_time, end_time),
// активная запись имеет end_time IS NULL. Инвариант «не более одной
// активной записи на (user, type)» обеспечивается частичным уникальным
// индексом textures_active_key.
type TextureRepository interface {
	// Put — основная операция записи. Атомарно закрывает активную
	// запись (user, type) и, если upload задан, создаёт новую активную.
	// upload == nil означает явную очистку: тип остаётся без активной
	// текстуры, новая запись не создаётся.
	Put(ctx context.Context, userID int64, texType string, upload *model.Upload, meta map[string]string) error
	// GetActive возвращает срез активных текстур пользователя по типам.
	// Если at задан, возвращается срез на момент времени at.
	GetActive(ctx context.Context, userID int64, at *time.Time) (map[string]*model.Texture, error)
	// GetHistory возвращает историю текстур пользователя, сгруппированную
	// по типам, от новых к старым. limit > 0 ограничивает число записей
	// на тип; limit <= 0 — без ограничения. Если before задан,
	// возвращаются только записи, закрытые до before.
	GetHistory(ctx context.Context, userID int64, limit int, before *time.Time) (map[string][]*model.Texture, error)
}

type textureRepo struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewTextureRepository создаёт репозиторий журнала текстур.
func NewTextureRepository(pool *pgxpool.Pool) TextureRepository {
	return &textureRepo{pool: pool, tx: NewTxRunner(pool)}
}

func scanTexture(row pgx.Row) (*model.Texture, error) {
	t := &model.Texture{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.UploadID, &t.Hash,
		&t.Meta, &t.StartTime, &t.EndTime,
	)
	return t, err
}

// texColumns — столбцы textures с хешем из связанной загрузки.
const texColumns = `t.id, t.user_id, t.tex_type, t.upload_id, u.hash,
	t.meta, t.start_time, t.end_time`

func (r *textureRepo) Put(ctx context.Context, userID int64, texType string, upload *model.Upload, meta map[string]string) error {
	var lastErr error
	for attempt := 0; attempt < putRetries; attempt++ {
		err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
			return putTx(ctx, tx, userID, texType, upload, meta)
		})
		if err == nil {
			return nil
		}
		// под READ COMMITTED параллельный Put может вставить активную
		// запись между нашим UPDATE и INSERT; индекс textures_active_key
		// превращает это в 23505 — повторяем всю транзакцию
		if !isUniqueViolation(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w после %d попыток: %v", ErrConflict, putRetries, lastErr)
}

func putTx(ctx context.Context, tx pgx.Tx, userID int64, texType string, upload *model.Upload, meta map[string]string) error {
	_, err := tx.Exec(ctx, `
		UPDATE textures
		SET end_time = now()
		WHERE user_id = $1 AND tex_type = $2 AND end_time IS NULL`,
		userID, texType,
	)
	if err != nil {
		return fmt.Errorf("ошибка закрытия активной записи: %w", err)
	}

	if upload == nil {
		return nil
	}

	if meta == nil {
		meta = map[string]string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO textures (user_id, tex_type, upload_id, meta)
		VALUES ($1, $2, $3, $4)`,
		userID, texType, upload.ID, meta,
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки записи журнала: %w", err)
	}
	return nil
}

func (r *textureRepo) GetActive(ctx context.Context, userID int64, at *time.Time) (map[string]*model.Texture, error) {
	// DISTINCT ON выбирает последнюю запись каждого типа,
	// чей интервал покрывает момент среза
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (t.tex_type) %s
		FROM textures t
		JOIN uploads u ON u.id = t.upload_id
		WHERE t.user_id = $1
		  AND ($2::timestamptz IS NULL AND t.end_time IS NULL
		       OR $2::timestamptz IS NOT NULL
		          AND t.start_time <= $2
		          AND (t.end_time IS NULL OR t.end_time > $2))
		ORDER BY t.tex_type, t.id DESC`, texColumns)

	rows, err := r.pool.Query(ctx, query, userID, at)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки активных текстур: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*model.Texture)
	for rows.Next() {
		t, err := scanTexture(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования текстуры: %w", err)
		}
		result[t.Type] = t
	}
	return result, rows.Err()
}

func (r *textureRepo) GetHistory(ctx context.Context, userID int64, limit int, before *time.Time) (map[string][]*model.Texture, error) {
	// оконная функция ограничивает число записей на каждый тип
	query := `
		SELECT id, user_id, tex_type, upload_id, hash, meta, start_time, end_time
		FROM (
			SELECT t.id, t.user_id, t.tex_type, t.upload_id, u.hash,
			       t.meta, t.start_time, t.end_time,
			       row_number() OVER (PARTITION BY t.tex_type ORDER BY t.id DESC) AS rn
			FROM textures t
			JOIN uploads u ON u.id = t.upload_id
			WHERE t.user_id = $1
			  AND ($2::timestamptz IS NULL OR t.end_time < $2)
		) s
		WHERE $3 <= 0 OR s.rn <= $3
		ORDER BY tex_type, id DESC`

	rows, err := r.pool.Query(ctx, query, userID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки истории текстур: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]*model.Texture)
	for rows.Next() {
		t, err := scanTexture(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования текстуры: %w", err)
		}
		result[t.Type] = append(result[t.Type], t)
	}
	return result, rows.Err()
}
