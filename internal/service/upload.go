// upload.go — сервис загрузки текстур: валидация изображения,
// дедупликация содержимого, запись в blob-хранилище и журнал.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goskinstore/internal/domain/model"
	"github.com/bigkaa/goskinstore/internal/imaging"
	"github.com/bigkaa/goskinstore/internal/repository"
	"github.com/bigkaa/goskinstore/internal/storage/blobstore"
)

// Метрики загрузок. result: new (новое содержимое), dedup (повторное),
// cleared (очистка).
var uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ts_texture_uploads_total",
	Help: "Количество записей в журнал текстур по результату",
}, []string{"result"})

// UploadService — запись текстур в хранилище и журнал.
type UploadService struct {
	uploads    repository.UploadRepository
	textures   repository.TextureRepository
	blobs      blobstore.Store
	cache      *ProfileCache
	denylist   map[string]bool
	maxSize    int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewUploadService создаёт сервис загрузок.
// denylist — нормализованные типы, запрещённые к загрузке.
// fetchTimeout — таймаут скачивания по внешнему URL (TS_FETCH_TIMEOUT).
func NewUploadService(
	uploads repository.UploadRepository,
	textures repository.TextureRepository,
	blobs blobstore.Store,
	cache *ProfileCache,
	denylist []string,
	maxSize int64,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) *UploadService {
	denied := make(map[string]bool, len(denylist))
	for _, t := range denylist {
		denied[t] = true
	}
	return &UploadService{
		uploads:    uploads,
		textures:   textures,
		blobs:      blobs,
		cache:      cache,
		denylist:   denied,
		maxSize:    maxSize,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger.With(slog.String("component", "upload_service")),
	}
}

// MaxSize возвращает лимит размера загружаемого файла.
func (s *UploadService) MaxSize() int64 {
	return s.maxSize
}

// Upload валидирует изображение и записывает новую версию текстуры.
// texType — нормализованный тип. Содержимое дедуплицируется по хешу
// пикселей: blob пишется и загрузка регистрируется только для нового
// содержимого, иначе новая версия ссылается на существующую загрузку.
func (s *UploadService) Upload(ctx context.Context, user *model.User, texType string, data []byte, meta map[string]string) error {
	if s.denylist[texType] {
		return ErrTypeNotAllowed
	}
	if int64(len(data)) > s.maxSize {
		return ErrPayloadTooLarge
	}

	hash, err := imaging.ValidateAndHash(data)
	if err != nil {
		return err
	}

	result := "dedup"
	upload, err := s.uploads.GetByHash(ctx, hash)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		result = "new"
		// blob пишется до регистрации в БД: осиротевший файл безвреден,
		// запись в журнале без файла — нет
		if err := s.blobs.Write(ctx, hash, data); err != nil {
			return fmt.Errorf("запись текстуры %s в хранилище: %w", hash, err)
		}
		upload, err = s.uploads.Create(ctx, hash, user.ID)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if err := s.textures.Put(ctx, user.ID, texType, upload, meta); err != nil {
		return err
	}

	s.cache.Invalidate(user.UUID)
	uploadsTotal.WithLabelValues(result).Inc()
	s.logger.Info("текстура загружена",
		slog.String("uuid", user.UUID.String()),
		slog.String("type", texType),
		slog.String("hash", hash),
	)
	return nil
}

// UploadFromURL скачивает файл по внешнему URL и загружает его как Upload.
// Перед скачиванием проверяется Content-Length через HEAD-запрос.
func (s *UploadService) UploadFromURL(ctx context.Context, user *model.User, texType, url string, meta map[string]string) error {
	data, err := s.fetch(ctx, url)
	if err != nil {
		return err
	}
	return s.Upload(ctx, user, texType, data, meta)
}

// Clear закрывает активную текстуру типа, не создавая новой версии.
// Очистка пустого типа — no-op.
func (s *UploadService) Clear(ctx context.Context, user *model.User, texType string) error {
	if err := s.textures.Put(ctx, user.ID, texType, nil, nil); err != nil {
		return err
	}
	s.cache.Invalidate(user.UUID)
	uploadsTotal.WithLabelValues("cleared").Inc()
	s.logger.Info("текстура очищена",
		slog.String("uuid", user.UUID.String()),
		slog.String("type", texType),
	)
	return nil
}

// OpenTexture открывает содержимое текстуры по хешу из blob-хранилища.
func (s *UploadService) OpenTexture(ctx context.Context, hash string) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, hash)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("чтение текстуры %s: %w", hash, err)
	}
	return rc, nil
}

// fetch скачивает файл по URL с проверкой размера до и во время чтения.
func (s *UploadService) fetch(ctx context.Context, url string) ([]byte, error) {
	head, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	headResp, err := s.httpClient.Do(head)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	headResp.Body.Close()
	if headResp.StatusCode < 200 || headResp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HEAD вернул статус %d", ErrFetchFailed, headResp.StatusCode)
	}

	cl := headResp.Header.Get("Content-Length")
	if cl == "" {
		return nil, fmt.Errorf("%w: отсутствует Content-Length", ErrFetchFailed)
	}
	size, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: некорректный Content-Length %q", ErrFetchFailed, cl)
	}
	if size > s.maxSize {
		return nil, ErrPayloadTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET вернул статус %d", ErrFetchFailed, resp.StatusCode)
	}

	// заявленный размер мог соврать — читаем не больше лимита
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}
