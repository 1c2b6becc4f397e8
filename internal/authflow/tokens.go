// Пакет authflow — трёхшаговый handshake-протокол аутентификации.
//
// Шаг 1: клиент заявляет имя, сервер выдаёт случайный verify token и
// server id. Шаг 2: клиент аутентифицируется у Mojang с этим server id.
// Шаг 3: клиент возвращает (имя, token); сервер сверяет имя и сетевой
// адрес с запомненными, подтверждает сессию у Mojang server-side и выдаёт
// подписанный время-ограниченный JWT.
package authflow

import (
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PendingLogin — состояние незавершённого handshake, привязанное к token.
type PendingLogin struct {
	// Name — имя, заявленное клиентом на шаге 1
	Name string
	// RemoteAddr — сетевой адрес, с которого пришёл шаг 1
	RemoteAddr string
}

// TokenTable — ограниченная таблица незавершённых handshake с TTL.
// Потокобезопасна; записи истекают по TTL независимо от обращений,
// при переполнении вытесняется старейшая (LRU).
type TokenTable struct {
	table *expirable.LRU[string, PendingLogin]
}

// NewTokenTable создаёт таблицу ёмкостью capacity с временем жизни ttl.
// Значения по умолчанию протокола: 100 записей, 30 секунд.
func NewTokenTable(capacity int, ttl time.Duration) *TokenTable {
	return &TokenTable{
		table: expirable.NewLRU[string, PendingLogin](capacity, nil, ttl),
	}
}

// Put сохраняет состояние handshake под ключом token.
func (t *TokenTable) Put(token uint32, p PendingLogin) {
	t.table.Add(formatToken(token), p)
}

// Take извлекает и УДАЛЯЕТ запись — token одноразовый, повторное
// предъявление невозможно независимо от исхода проверки.
func (t *TokenTable) Take(token string) (PendingLogin, bool) {
	p, ok := t.table.Get(token)
	if ok {
		t.table.Remove(token)
	}
	return p, ok
}

// Len возвращает текущее число незавершённых handshake.
func (t *TokenTable) Len() int {
	return t.table.Len()
}

// formatToken — каноническое строковое представление verify token.
func formatToken(token uint32) string {
	return strconv.FormatUint(uint64(token), 10)
}
