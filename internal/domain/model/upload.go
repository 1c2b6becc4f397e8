package model

import "time"

// Upload — загруженный файл текстуры.
// Ровно одна запись на каждый уникальный fingerprint (дедупликация).
// Записи неизменяемы и никогда не удаляются — на них ссылается история.
type Upload struct {
	// ID — внутренний числовой идентификатор (PK)
	ID int64
	// Hash — fingerprint содержимого: SHA-256 декодированного пиксельного
	// буфера, а не сырых байт файла. Уникален.
	Hash string
	// UserID — кто загрузил (для аудита, не для контроля доступа)
	UserID int64
	// UploadTime — время создания записи
	UploadTime time.Time
}
