// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrTypeNotAllowed — тип текстуры запрещён конфигурацией.
	ErrTypeNotAllowed = errors.New("тип текстуры запрещён к загрузке")
	// ErrPayloadTooLarge — файл превышает лимит размера.
	ErrPayloadTooLarge = errors.New("файл превышает лимит размера")
	// ErrFetchFailed — не удалось получить файл по внешнему URL.
	ErrFetchFailed = errors.New("не удалось получить файл по URL")
)
