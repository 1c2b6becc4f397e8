package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goskinstore/internal/domain/model"
	"github.com/bigkaa/goskinstore/internal/imaging"
	"github.com/bigkaa/goskinstore/internal/repository"
)

// pngBytes кодирует PNG заданного размера с заливкой цветом.
func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("кодирование PNG: %v", err)
	}
	return buf.Bytes()
}

// --- Фейки репозиториев и хранилища ---

type fakeUploads struct {
	byHash  map[string]*model.Upload
	nextID  int64
	created int
}

func newFakeUploads() *fakeUploads {
	return &fakeUploads{byHash: make(map[string]*model.Upload)}
}

func (f *fakeUploads) Create(_ context.Context, hash string, userID int64) (*model.Upload, error) {
	// hash уникален, повтор возвращает существующую строку
	if up, ok := f.byHash[hash]; ok {
		return up, nil
	}
	f.nextID++
	f.created++
	up := &model.Upload{ID: f.nextID, Hash: hash, UserID: userID, UploadTime: time.Now()}
	f.byHash[hash] = up
	return up, nil
}

func (f *fakeUploads) GetByHash(_ context.Context, hash string) (*model.Upload, error) {
	up, ok := f.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return up, nil
}

type putCall struct {
	userID  int64
	texType string
	upload  *model.Upload
	meta    map[string]string
}

type fakeTextures struct {
	puts   []putCall
	active map[int64]map[string]*model.Texture
}

func (f *fakeTextures) Put(_ context.Context, userID int64, texType string, upload *model.Upload, meta map[string]string) error {
	f.puts = append(f.puts, putCall{userID: userID, texType: texType, upload: upload, meta: meta})
	return nil
}

func (f *fakeTextures) GetActive(_ context.Context, userID int64, _ *time.Time) (map[string]*model.Texture, error) {
	if f.active == nil {
		return map[string]*model.Texture{}, nil
	}
	return f.active[userID], nil
}

func (f *fakeTextures) GetHistory(_ context.Context, _ int64, _ int, _ *time.Time) (map[string][]*model.Texture, error) {
	return map[string][]*model.Texture{}, nil
}

type fakeBlobs struct {
	files  map[string][]byte
	writes int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{files: make(map[string][]byte)}
}

func (f *fakeBlobs) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.files[key]
	return ok, nil
}

func (f *fakeBlobs) Write(_ context.Context, key string, data []byte) error {
	f.writes++
	if _, ok := f.files[key]; ok {
		return nil
	}
	f.files[key] = data
	return nil
}

func (f *fakeBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// --- Тесты UploadService ---

type uploadFixture struct {
	svc      *UploadService
	uploads  *fakeUploads
	textures *fakeTextures
	blobs    *fakeBlobs
	cache    *ProfileCache
	user     *model.User
}

func newUploadFixture(t *testing.T, denylist []string) *uploadFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &uploadFixture{
		uploads:  newFakeUploads(),
		textures: &fakeTextures{},
		blobs:    newFakeBlobs(),
		cache:    NewProfileCache(16, time.Minute),
		user:     &model.User{ID: 1, UUID: uuid.New(), Name: "Steve"},
	}
	f.svc = NewUploadService(f.uploads, f.textures, f.blobs, f.cache, denylist, 5*1024*1024, 5*time.Second, logger)
	return f
}

func TestUpload_NewContent(t *testing.T) {
	f := newUploadFixture(t, nil)
	data := pngBytes(t, 64, 64, color.NRGBA{R: 200, A: 255})

	err := f.svc.Upload(context.Background(), f.user, "minecraft:skin", data, map[string]string{"model": "slim"})
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	if f.blobs.writes != 1 {
		t.Errorf("записей в blob-хранилище %d, ожидалась 1", f.blobs.writes)
	}
	if f.uploads.created != 1 {
		t.Errorf("зарегистрировано загрузок %d, ожидалась 1", f.uploads.created)
	}
	if len(f.textures.puts) != 1 {
		t.Fatalf("записей в журнал %d, ожидалась 1", len(f.textures.puts))
	}
	put := f.textures.puts[0]
	if put.texType != "minecraft:skin" || put.upload == nil || put.meta["model"] != "slim" {
		t.Errorf("запись в журнал: %+v", put)
	}
}

func TestUpload_DeduplicatesContent(t *testing.T) {
	f := newUploadFixture(t, nil)
	data := pngBytes(t, 64, 64, color.NRGBA{G: 150, A: 255})

	if err := f.svc.Upload(context.Background(), f.user, "minecraft:skin", data, nil); err != nil {
		t.Fatalf("первый Upload() ошибка: %v", err)
	}

	// то же содержимое от другого пользователя — blob и загрузка
	// переиспользуются, в журнал идёт новая запись
	other := &model.User{ID: 2, UUID: uuid.New(), Name: "Alex"}
	if err := f.svc.Upload(context.Background(), other, "minecraft:skin", data, nil); err != nil {
		t.Fatalf("второй Upload() ошибка: %v", err)
	}

	if f.blobs.writes != 1 {
		t.Errorf("записей в blob-хранилище %d, ожидалась 1 (дедупликация)", f.blobs.writes)
	}
	if f.uploads.created != 1 {
		t.Errorf("зарегистрировано загрузок %d, ожидалась 1 (дедупликация)", f.uploads.created)
	}
	if len(f.textures.puts) != 2 {
		t.Errorf("записей в журнал %d, ожидалось 2", len(f.textures.puts))
	}
	if f.textures.puts[1].upload.ID != f.textures.puts[0].upload.ID {
		t.Error("вторая запись журнала не переиспользует существующую загрузку")
	}
}

func TestUpload_Denylist(t *testing.T) {
	f := newUploadFixture(t, []string{"minecraft:cape"})
	data := pngBytes(t, 64, 32, color.NRGBA{B: 100, A: 255})

	err := f.svc.Upload(context.Background(), f.user, "minecraft:cape", data, nil)
	if !errors.Is(err, ErrTypeNotAllowed) {
		t.Fatalf("err = %v, ожидался ErrTypeNotAllowed", err)
	}
	if f.blobs.writes != 0 || len(f.textures.puts) != 0 {
		t.Error("запрещённый тип дошёл до хранилища или журнала")
	}
}

func TestUpload_InvalidImage(t *testing.T) {
	f := newUploadFixture(t, nil)

	err := f.svc.Upload(context.Background(), f.user, "minecraft:skin", []byte("не картинка"), nil)
	if !errors.Is(err, imaging.ErrInvalidImage) {
		t.Fatalf("err = %v, ожидался ErrInvalidImage", err)
	}
}

func TestUpload_Oversized(t *testing.T) {
	f := newUploadFixture(t, nil)
	f.svc.maxSize = 100

	data := pngBytes(t, 64, 64, color.NRGBA{R: 1, A: 255})
	err := f.svc.Upload(context.Background(), f.user, "minecraft:skin", data, nil)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, ожидался ErrPayloadTooLarge", err)
	}
}

func TestUpload_InvalidatesCache(t *testing.T) {
	f := newUploadFixture(t, nil)
	f.cache.Put(f.user.UUID, f.user, map[string]*model.Texture{})

	data := pngBytes(t, 64, 64, color.NRGBA{R: 9, A: 255})
	if err := f.svc.Upload(context.Background(), f.user, "minecraft:skin", data, nil); err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	if _, _, ok := f.cache.Get(f.user.UUID); ok {
		t.Error("кеш профиля не инвалидирован после загрузки")
	}
}

func TestClear(t *testing.T) {
	f := newUploadFixture(t, nil)

	if err := f.svc.Clear(context.Background(), f.user, "minecraft:skin"); err != nil {
		t.Fatalf("Clear() ошибка: %v", err)
	}
	if len(f.textures.puts) != 1 {
		t.Fatalf("записей в журнал %d, ожидалась 1", len(f.textures.puts))
	}
	if f.textures.puts[0].upload != nil {
		t.Error("очистка передала в журнал ненулевую загрузку")
	}
}

func TestUploadFromURL(t *testing.T) {
	f := newUploadFixture(t, nil)
	data := pngBytes(t, 64, 64, color.NRGBA{R: 42, A: 255})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// httptest сам выставляет Content-Length для HEAD и GET
		_, _ = w.Write(data)
	}))
	defer srv.Close()
	f.svc.httpClient = srv.Client()

	err := f.svc.UploadFromURL(context.Background(), f.user, "minecraft:skin", srv.URL, nil)
	if err != nil {
		t.Fatalf("UploadFromURL() ошибка: %v", err)
	}
	if len(f.textures.puts) != 1 {
		t.Errorf("записей в журнал %d, ожидалась 1", len(f.textures.puts))
	}
}

func TestUploadFromURL_Rejected(t *testing.T) {
	bigData := make([]byte, 200)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		maxSize int64
		wantErr error
	}{
		{
			name: "заявленный размер превышает лимит",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(bigData)
			},
			maxSize: 100,
			wantErr: ErrPayloadTooLarge,
		},
		{
			name: "сервер вернул ошибку",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			maxSize: 5 * 1024 * 1024,
			wantErr: ErrFetchFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUploadFixture(t, nil)
			f.svc.maxSize = tt.maxSize

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			f.svc.httpClient = srv.Client()

			err := f.svc.UploadFromURL(context.Background(), f.user, "minecraft:skin", srv.URL, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, ожидался %v", err, tt.wantErr)
			}
		})
	}
}

// TestUploadFromURL_Timeout проверяет, что медленный источник
// не подвешивает загрузку: таймаут задаётся при создании сервиса.
func TestUploadFromURL_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewUploadService(newFakeUploads(), &fakeTextures{}, newFakeBlobs(),
		NewProfileCache(16, time.Minute), nil, 5*1024*1024, 50*time.Millisecond, logger)
	user := &model.User{ID: 1, UUID: uuid.New(), Name: "Steve"}

	start := time.Now()
	err := svc.UploadFromURL(context.Background(), user, "minecraft:skin", srv.URL, nil)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, ожидался %v", err, ErrFetchFailed)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("таймаут скачивания не сработал")
	}
}

func TestOpenTexture(t *testing.T) {
	f := newUploadFixture(t, nil)

	data := pngBytes(t, 64, 64, color.NRGBA{R: 7, A: 255})
	if err := f.svc.Upload(context.Background(), f.user, "minecraft:skin", data, nil); err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	hash := f.textures.puts[0].upload.Hash
	rc, err := f.svc.OpenTexture(context.Background(), hash)
	if err != nil {
		t.Fatalf("OpenTexture() ошибка: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Error("содержимое текстуры не совпадает с загруженным")
	}
}
