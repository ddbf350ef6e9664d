package domain

import (
	"context"
	"errors"
	"time"
)

// Chaves persistidas da cota de visitante: data ISO (2006-01-02) e contagem decimal.
const (
	QuotaDateKey  = "guest_quota_date"
	QuotaCountKey = "guest_quota_count"
)

// QuotaUntracked é devolvido por Increment quando a contagem não foi registrada
// (usuário autenticado ou armazenamento indisponível).
const QuotaUntracked = -1

var ErrStorageUnavailable = errors.New("quota storage unavailable")

// QuotaState é o par persistido (dia, contagem).
type QuotaState struct {
	Date  string
	Count int
}

// KVStore é a capacidade de chave/valor persistente usada pela cota.
//
// Get retorna ("", nil) quando a chave não existe.
// Qualquer erro é tratado pela cota como ErrStorageUnavailable.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ExpiringKVStore expira chaves sozinho. A cota usa para as chaves por cliente,
// que senão se acumulam para sempre num servidor de longa duração.
type ExpiringKVStore interface {
	KVStore
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// QuotaStatus é uma leitura da cota sem consumi-la.
type QuotaStatus struct {
	Unlimited bool `json:"unlimited"`
	Allowed   bool `json:"allowed"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
}
