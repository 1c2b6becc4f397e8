// Пакет model — доменные структуры Texture Server.
package model

import "github.com/google/uuid"

// User — зарегистрированный пользователь.
// Создаётся при первом успешном логине, имя обновляется при каждом логине.
type User struct {
	// ID — внутренний числовой идентификатор (PK)
	ID int64
	// UUID — внешний идентификатор из Mojang (уникальный, неизменяемый)
	UUID uuid.UUID
	// Name — отображаемое имя профиля (обновляется при логине)
	Name string
}
