// Пакет blobstore — content-addressed хранилище байт текстур.
//
// Ключ — fingerprint содержимого, поэтому хранилище write-once: повторная
// запись под тем же ключом несёт идентичные байты по построению ключа и
// безопасно пропускается. Блокировки не требуются.
//
// Два бэкенда, выбираемых конфигурацией при старте: локальная директория
// (FileStore) и GCS bucket (GCStore).
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound — объект с указанным ключом отсутствует в хранилище.
var ErrNotFound = errors.New("объект не найден в хранилище")

// Store — интерфейс content-addressed хранилища.
type Store interface {
	// Exists сообщает, существует ли объект с указанным ключом.
	Exists(ctx context.Context, key string) (bool, error)
	// Write сохраняет data под ключом key. Если объект уже существует —
	// запись пропускается (write-once). Успешный возврат гарантирует,
	// что байты записаны durable.
	Write(ctx context.Context, key string, data []byte) error
	// Open открывает объект для чтения. ErrNotFound, если его нет.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
