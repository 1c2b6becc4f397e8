package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore — хранилище в локальной директории.
// Паттерн записи: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
type FileStore struct {
	// dataDir — корневая директория хранения (TS_DATA_DIR)
	dataDir string
}

// NewFileStore создаёт FileStore. Проверяет и создаёт директорию,
// если она не существует.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// DataDir возвращает корневую директорию хранения.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// path возвращает путь объекта на диске. Ключ — hex-строка fingerprint,
// поэтому дополнительной санитизации не требуется, но filepath.Base
// отсекает любые попытки path traversal.
func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.dataDir, filepath.Base(key))
}

// Exists сообщает, существует ли объект на диске.
func (fs *FileStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(fs.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("ошибка проверки объекта %s: %w", key, err)
}

// Write сохраняет data под ключом key. Существующий объект не перезаписывается.
func (fs *FileStore) Write(ctx context.Context, key string, data []byte) error {
	exists, err := fs.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	fullPath := fs.path(key)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка переименования: %w", err)
	}

	return nil
}

// Open открывает объект для чтения.
func (fs *FileStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия объекта %s: %w", key, err)
	}
	return f, nil
}

// Проверка на этапе компиляции
var _ Store = (*FileStore)(nil)
