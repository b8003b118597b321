package service

import (
	"context"
	"encoding/json"
	"iter"
	"sync"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/pkg/apperror"
)

// DefaultQueueKey is the local storage key holding unsynced bills
const DefaultQueueKey = "offlineBills"

// OfflineQueue is the durable, ordered list of bills waiting for a remote
// write. It is stored as one JSON array under a fixed key. Every mutation is
// an atomic KVStore.Update, so appends made during a drain are never lost,
// even when another process shares the store.
type OfflineQueue struct {
	kv  repository.KVStore
	key string
	mu  sync.Mutex
}

// NewOfflineQueue creates a queue persisted in kv under key
func NewOfflineQueue(kv repository.KVStore, key string) *OfflineQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &OfflineQueue{kv: kv, key: key}
}

func decodeQueue(raw string, exists bool) ([]entity.Bill, error) {
	if !exists || raw == "" {
		return []entity.Bill{}, nil
	}
	var bills []entity.Bill
	if err := json.Unmarshal([]byte(raw), &bills); err != nil {
		return nil, apperror.NewLocalStorageError("decode queue", err)
	}
	return bills, nil
}

func (q *OfflineQueue) load(ctx context.Context) ([]entity.Bill, error) {
	raw, ok, err := q.kv.Get(ctx, q.key)
	if err != nil {
		return nil, apperror.NewLocalStorageError("read queue", err)
	}
	return decodeQueue(raw, ok)
}

// update applies change to the stored bills in one atomic step. change may
// run more than once.
func (q *OfflineQueue) update(ctx context.Context, change func([]entity.Bill) []entity.Bill) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.kv.Update(ctx, q.key, func(raw string, exists bool) (string, bool, error) {
		bills, err := decodeQueue(raw, exists)
		if err != nil {
			return "", false, err
		}
		bills = change(bills)
		if len(bills) == 0 {
			return "", false, nil
		}
		out, err := json.Marshal(bills)
		if err != nil {
			return "", false, apperror.NewLocalStorageError("encode queue", err)
		}
		return string(out), true, nil
	})
	if err != nil && !apperror.IsKind(err, apperror.KindLocalStorage) {
		return apperror.NewLocalStorageError("write queue", err)
	}
	return err
}

// Enqueue appends a bill as unsynced. A bill already queued under the same
// local id is left in place.
func (q *OfflineQueue) Enqueue(ctx context.Context, bill entity.Bill) error {
	bill.Synced = false
	bill.RemoteID = ""
	return q.update(ctx, func(bills []entity.Bill) []entity.Bill {
		for i := range bills {
			if bills[i].LocalID == bill.LocalID && bills[i].DeviceID == bill.DeviceID {
				return bills
			}
		}
		return append(bills, bill)
	})
}

// Snapshot returns the queued bills in enqueue order without removing them
func (q *OfflineQueue) Snapshot(ctx context.Context) ([]entity.Bill, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// DrainAll lazily yields every queued bill in enqueue order without removing
// any. The queue is read when iteration starts; a read failure is yielded
// once as the error.
func (q *OfflineQueue) DrainAll(ctx context.Context) iter.Seq2[entity.Bill, error] {
	return func(yield func(entity.Bill, error) bool) {
		bills, err := q.Snapshot(ctx)
		if err != nil {
			yield(entity.Bill{}, err)
			return
		}
		for _, b := range bills {
			if !yield(b, nil) {
				return
			}
		}
	}
}

// Ack removes exactly one bill, identified by device and local id, after its
// remote write was confirmed. Acking a bill that is not queued is a no-op.
func (q *OfflineQueue) Ack(ctx context.Context, deviceID string, localID int64) error {
	return q.update(ctx, func(bills []entity.Bill) []entity.Bill {
		for i := range bills {
			if bills[i].LocalID == localID && bills[i].DeviceID == deviceID {
				return append(bills[:i:i], bills[i+1:]...)
			}
		}
		return bills
	})
}

// Clear empties the queue
func (q *OfflineQueue) Clear(ctx context.Context) error {
	return q.update(ctx, func([]entity.Bill) []entity.Bill { return nil })
}

// Len returns the number of queued bills
func (q *OfflineQueue) Len(ctx context.Context) (int, error) {
	bills, err := q.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(bills), nil
}
