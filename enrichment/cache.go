package enrichment

import (
	"sync"
	"time"
)

// LookupCache кэш результатов поиска на время одного запуска.
// Хранит только окончательные ответы сервиса (найден / не найден), на диск не сохраняется.
type LookupCache struct {
	config *CacheConfig
	data   map[string]*cacheEntry
	mutex  sync.RWMutex
	stats  CacheStats
}

type cacheEntry struct {
	result    *LookupResult
	timestamp time.Time
}

// CacheStats статистика кэша
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// NewLookupCache создает новый кэш
func NewLookupCache(config *CacheConfig) *LookupCache {
	if config == nil {
		config = &CacheConfig{Enabled: true}
	}
	return &LookupCache{
		config: config,
		data:   make(map[string]*cacheEntry),
	}
}

// Get возвращает результат по нормализованному CEP
func (c *LookupCache) Get(key string) (*LookupResult, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.config.Enabled {
		c.stats.Misses++
		return nil, false
	}

	entry, exists := c.data[key]
	if !exists {
		c.stats.Misses++
		return nil, false
	}

	// Проверяем TTL
	if c.config.TTL > 0 && time.Since(entry.timestamp) > c.config.TTL {
		delete(c.data, key)
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	return entry.result, true
}

// Set сохраняет результат. Кэшируются только ответы found и not_found.
func (c *LookupCache) Set(key string, result *LookupResult) {
	if !c.config.Enabled || result == nil {
		return
	}
	if result.Reason != ReasonFound && result.Reason != ReasonNotFound {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &cacheEntry{
		result:    result,
		timestamp: time.Now(),
	}
}

// Clear очищает кэш и статистику
func (c *LookupCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*cacheEntry)
	c.stats = CacheStats{}
}

// GetStats возвращает копию статистики
func (c *LookupCache) GetStats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := c.stats
	stats.Size = len(c.data)
	return stats
}
