package repository

import (
	"context"
	"encoding/json"

	"github.com/sangkips/smartbill/internal/domain/entity"
	domainRepo "github.com/sangkips/smartbill/internal/domain/repository"
)

const idempotencyKeyPrefix = "idempotency:"

type idempotencyRepository struct {
	kv domainRepo.KVStore
}

// NewIdempotencyRepository stores idempotency keys in the local key-value store
func NewIdempotencyRepository(kv domainRepo.KVStore) domainRepo.IdempotencyRepository {
	return &idempotencyRepository{kv: kv}
}

func storageKey(key, sessionID string) string {
	return idempotencyKeyPrefix + sessionID + ":" + key
}

func (r *idempotencyRepository) GetByKey(ctx context.Context, key string, sessionID string) (*entity.IdempotencyKey, error) {
	raw, ok, err := r.kv.Get(ctx, storageKey(key, sessionID))
	if err != nil || !ok {
		return nil, err
	}

	var ikey entity.IdempotencyKey
	if err := json.Unmarshal([]byte(raw), &ikey); err != nil {
		return nil, err
	}
	if ikey.IsExpired() {
		_ = r.kv.Remove(ctx, storageKey(key, sessionID))
		return nil, nil
	}
	return &ikey, nil
}

func (r *idempotencyRepository) Create(ctx context.Context, ikey *entity.IdempotencyKey) error {
	raw, err := json.Marshal(ikey)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, storageKey(ikey.Key, ikey.SessionID), string(raw))
}
