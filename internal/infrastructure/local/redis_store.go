package local

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sangkips/smartbill/internal/domain/repository"
)

const maxUpdateAttempts = 10

// ErrUpdateConflict is returned when a key kept changing under an Update
var ErrUpdateConflict = errors.New("kv update kept conflicting with concurrent writers")

// RedisStore is a KVStore over plain redis string keys, optionally namespaced
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// Update retries an optimistic WATCH/MULTI transaction until no other
// client touched the key in between
func (s *RedisStore) Update(ctx context.Context, key string, fn repository.KVUpdateFunc) error {
	k := s.prefix + key
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Result()
		exists := true
		if errors.Is(err, redis.Nil) {
			cur, exists = "", false
		} else if err != nil {
			return err
		}

		next, keep, err := fn(cur, exists)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.Set(ctx, k, next, 0)
			} else {
				pipe.Del(ctx, k)
			}
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.rdb.Watch(ctx, txf, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrUpdateConflict
}

// Close is a no-op; the client is shared and closed by its owner
func (s *RedisStore) Close() error {
	return nil
}
