// Пакет repository — доступ к PostgreSQL: пользователи, загрузки
// и журнал версий текстур. Чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — пользователь, загрузка или запись журнала не найдены.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — не удалось разрешить гонку записи в журнал.
	ErrConflict = errors.New("конфликт записи в журнал")
)

// DBTX — минимальный интерфейс выполнения SQL-запросов.
// Его реализуют и *pgxpool.Pool, и pgx.Tx: одни и те же репозитории
// работают в авто-commit режиме и внутри транзакции записи в журнал.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner выполняет операции над журналом в транзакции.
// Закрытие активной записи и вставка новой версии должны быть атомарны,
// иначе наблюдатель увидит тип без активной текстуры.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner над пулом соединений.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn в транзакции: commit при успехе, rollback при ошибке.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if err := pgx.BeginFunc(ctx, r.pool, fn); err != nil {
		return fmt.Errorf("транзакция журнала: %w", err)
	}
	return nil
}

// isUniqueViolation — нарушение unique-ограничения PostgreSQL (23505).
// Возникает на textures_active_key при гонке двух записей одного типа
// и на uploads(hash) при одновременной загрузке одинакового содержимого.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
