package model

import "time"

// Texture — запись реестра назначений текстур (append-only).
// Каждая загрузка или очистка добавляет запись; записи никогда не удаляются.
//
// Инвариант: для пары (UserID, Type) в любой момент времени существует
// не более одной записи с EndTime == nil ("активная версия").
type Texture struct {
	// ID — внутренний числовой идентификатор (PK)
	ID int64
	// UserID — владелец текстуры
	UserID int64
	// Type — тип текстуры в канонической форме namespace:value
	Type string
	// UploadID — ссылка на Upload (разделяемая, nil у исторических записей
	// не бывает: очистка не создаёт новых записей)
	UploadID *int64
	// Hash — fingerprint связанного Upload (eager join, без ленивой загрузки)
	Hash string
	// Meta — произвольные строковые метаданные (например, вариант модели)
	Meta map[string]string
	// StartTime — начало интервала действия
	StartTime time.Time
	// EndTime — конец интервала действия; nil = активна сейчас
	EndTime *time.Time
}

// Active сообщает, действует ли запись в данный момент.
func (t *Texture) Active() bool {
	return t.EndTime == nil
}
