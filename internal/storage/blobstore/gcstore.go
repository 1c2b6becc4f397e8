package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCStore — хранилище в GCS bucket.
// Write-once обеспечивается precondition DoesNotExist: гонка двух писателей
// за один ключ безопасна — проигравший получает 412 и трактует его как успех
// (содержимое идентично по построению ключа).
type GCStore struct {
	bucket *gcs.BucketHandle
}

// NewGCStore создаёт GCStore для указанного bucket.
// Клиент использует Application Default Credentials.
func NewGCStore(ctx context.Context, bucketName string) (*GCStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCS клиента: %w", err)
	}
	return &GCStore{bucket: client.Bucket(bucketName)}, nil
}

// Exists сообщает, существует ли объект в bucket.
func (g *GCStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("ошибка проверки объекта %s: %w", key, err)
}

// Write сохраняет data под ключом key с precondition DoesNotExist.
func (g *GCStore) Write(ctx context.Context, key string, data []byte) error {
	w := g.bucket.Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "image/png"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("ошибка записи объекта %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			// Объект уже существует — write-once, содержимое идентично
			return nil
		}
		return fmt.Errorf("ошибка завершения записи объекта %s: %w", key, err)
	}

	return nil
}

// Open открывает объект для чтения.
func (g *GCStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия объекта %s: %w", key, err)
	}
	return r, nil
}

// isPreconditionFailed распознаёт HTTP 412 от GCS API.
func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusPreconditionFailed
	}
	return false
}

// Проверка на этапе компиляции
var _ Store = (*GCStore)(nil)
