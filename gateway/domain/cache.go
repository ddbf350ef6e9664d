package domain

import "time"

// Key é a chave canônica de uma requisição (URL + opções serializadas).
type Key string

// Options são as opções dinâmicas de uma requisição. Participam da chave do cache.
// A chave "query" (map) é mesclada na query string pelo transporte.
type Options map[string]any

// CacheEntry é uma resposta JSON já decodificada.
type CacheEntry struct {
	Key      Key
	Value    any
	StoredAt time.Time
}

// ResponseCache guarda respostas bem-sucedidas por tempo limitado.
//
// Get deve tratar entradas expiradas como ausentes (removendo-as).
// Put sobrescreve a entrada da chave e retorna a chave despejada, se houve despejo.
type ResponseCache interface {
	Get(key Key, now time.Time) (any, bool)
	Put(key Key, value any, now time.Time) (evicted Key, didEvict bool)
	Len() int
}
