package infra

import (
	"sync"
	"time"

	"deal-gateway/gateway/domain"
)

// FIFOCache guarda respostas por TTL com teto de entradas.
//
// Despejo é FIFO puro: a entrada inserida há mais tempo sai primeiro, lida ou não
// (leitura não renova posição, não é LRU). Expiradas são removidas na próxima leitura.
type FIFOCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[domain.Key]domain.CacheEntry
	// queue mantém as chaves na ordem de inserção; índice 0 é a mais antiga.
	queue []domain.Key
}

func NewFIFOCache(ttl time.Duration, maxEntries int) *FIFOCache {
	return &FIFOCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[domain.Key]domain.CacheEntry),
	}
}

// Get implementa domain.ResponseCache.
// Entrada vale enquanto now - StoredAt < TTL.
func (c *FIFOCache) Get(key domain.Key, now time.Time) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(ent.StoredAt) >= c.ttl {
		c.removeLocked(key)
		return nil, false
	}
	return ent.Value, true
}

// Put implementa domain.ResponseCache.
// Regravar uma chave conta como nova inserção (vai para o fim da fila).
func (c *FIFOCache) Put(key domain.Key, value any, now time.Time) (domain.Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeLocked(key)
	}
	c.entries[key] = domain.CacheEntry{Key: key, Value: value, StoredAt: now}
	c.queue = append(c.queue, key)

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		oldest := c.queue[0]
		c.queue = c.queue[1:]
		delete(c.entries, oldest)
		return oldest, true
	}
	return "", false
}

func (c *FIFOCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains informa presença sem considerar TTL e sem efeitos colaterais.
func (c *FIFOCache) Contains(key domain.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Purge remove todas as entradas.
func (c *FIFOCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.Key]domain.CacheEntry)
	c.queue = nil
}

func (c *FIFOCache) removeLocked(key domain.Key) {
	delete(c.entries, key)
	for i, k := range c.queue {
		if k == key {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
}
