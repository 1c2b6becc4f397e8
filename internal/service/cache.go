// cache.go — LRU-кеш текущих профилей с TTL.
//
// Кешируются только актуальные срезы (без параметра at): исторические
// запросы редки и не инвалидируемы. Записи вытесняются по TTL и при
// любой записи в журнал владельца.
package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goskinstore/internal/domain/model"
)

// Метрики кеша профилей.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_profile_cache_hits_total",
		Help: "Количество попаданий в кеш профилей",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_profile_cache_misses_total",
		Help: "Количество промахов кеша профилей",
	})
)

// cachedProfile — кешированный срез активных текстур пользователя.
type cachedProfile struct {
	user     *model.User
	textures map[string]*model.Texture
}

// ProfileCache — кеш актуальных профилей.
type ProfileCache struct {
	lru *expirable.LRU[uuid.UUID, cachedProfile]
}

// NewProfileCache создаёт кеш на size записей с временем жизни ttl.
func NewProfileCache(size int, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		lru: expirable.NewLRU[uuid.UUID, cachedProfile](size, nil, ttl),
	}
}

// Get возвращает кешированный профиль.
func (c *ProfileCache) Get(id uuid.UUID) (*model.User, map[string]*model.Texture, bool) {
	p, ok := c.lru.Get(id)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, nil, false
	}
	cacheHitsTotal.Inc()
	return p.user, p.textures, true
}

// Put сохраняет профиль в кеш.
func (c *ProfileCache) Put(id uuid.UUID, user *model.User, textures map[string]*model.Texture) {
	c.lru.Add(id, cachedProfile{user: user, textures: textures})
}

// Invalidate удаляет профиль из кеша. Вызывается после любой записи
// в журнал текстур владельца.
func (c *ProfileCache) Invalidate(id uuid.UUID) {
	c.lru.Remove(id)
}
