package infra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV guarda a cota de visitantes no Redis, com prefixo por namespace
// (ex: um namespace por perfil/dispositivo do visitante).
type RedisKV struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisKV(rdb *redis.Client, namespace string) *RedisKV {
	prefix := "quota"
	if ns := strings.Trim(namespace, ":"); ns != "" {
		prefix = prefix + ":" + ns
	}
	return &RedisKV{rdb: rdb, prefix: prefix}
}

func (s *RedisKV) key(k string) string { return s.prefix + ":" + k }

func (s *RedisKV) Get(ctx context.Context, key string) (string, error) {
	if s == nil || s.rdb == nil {
		return "", errors.New("redis kv: no client")
	}
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisKV) Set(ctx context.Context, key, value string) error {
	if s == nil || s.rdb == nil {
		return errors.New("redis kv: no client")
	}
	// sem expiração: a virada de dia é detectada pela data gravada
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}

// SetWithTTL usa a expiração nativa do Redis (chaves por cliente).
func (s *RedisKV) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return errors.New("redis kv: no client")
	}
	return s.rdb.Set(ctx, s.key(key), value, ttl).Err()
}
