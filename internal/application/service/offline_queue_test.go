package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/internal/infrastructure/database"
	"github.com/sangkips/smartbill/internal/infrastructure/local"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflineQueue_EnqueueKeepsOrderAndUnsyncs(t *testing.T) {
	ctx := context.Background()
	q := newQueue()

	for _, id := range []int64{3, 1, 2} {
		b := makeBill(t, id, "Alice")
		b.Synced = true
		b.RemoteID = "leftover"
		require.NoError(t, q.Enqueue(ctx, b))
	}

	bills, err := q.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, localIDs(bills))
	for _, b := range bills {
		assert.False(t, b.Synced)
		assert.Empty(t, b.RemoteID)
	}
}

func TestOfflineQueue_EnqueueIgnoresDuplicate(t *testing.T) {
	ctx := context.Background()
	q := newQueue()

	require.NoError(t, q.Enqueue(ctx, makeBill(t, 1, "Alice")))
	require.NoError(t, q.Enqueue(ctx, makeBill(t, 1, "Alice")))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOfflineQueue_DrainAllIsRepeatable(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, makeBill(t, i, "Alice")))
	}

	collect := func() []int64 {
		var out []int64
		for b, err := range q.DrainAll(ctx) {
			require.NoError(t, err)
			out = append(out, b.LocalID)
		}
		return out
	}

	first := collect()
	second := collect()
	assert.Equal(t, []int64{1, 2, 3}, first)
	assert.Equal(t, first, second)
}

func TestOfflineQueue_DrainAllStopsEarly(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, makeBill(t, i, "Alice")))
	}

	var seen []int64
	for b := range q.DrainAll(ctx) {
		seen = append(seen, b.LocalID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []int64{1, 2}, seen)

	n, _ := q.Len(ctx)
	assert.Equal(t, 3, n)
}

func TestOfflineQueue_AckRemovesExactlyOne(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, makeBill(t, i, "Alice")))
	}

	require.NoError(t, q.Ack(ctx, "till-1", 2))
	require.NoError(t, q.Ack(ctx, "till-1", 2))
	require.NoError(t, q.Ack(ctx, "till-9", 1))

	bills, err := q.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, localIDs(bills))
}

func TestOfflineQueue_Clear(t *testing.T) {
	ctx := context.Background()
	kv := local.NewMemoryStore()
	q := NewOfflineQueue(kv, "")
	require.NoError(t, q.Enqueue(ctx, makeBill(t, 1, "Alice")))

	require.NoError(t, q.Clear(ctx))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok, _ := kv.Get(ctx, DefaultQueueKey)
	assert.False(t, ok)
}

func TestOfflineQueue_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	kv := local.NewMemoryStore()
	require.NoError(t, NewOfflineQueue(kv, "q").Enqueue(ctx, makeBill(t, 7, "Alice")))

	bills, err := NewOfflineQueue(kv, "q").Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, int64(7), bills[0].LocalID)
	assert.True(t, bills[0].TotalAmount.Equal(makeBill(t, 7, "Alice").TotalAmount))
}

type brokenKV struct{}

var errDiskFull = errors.New("disk full")

func (brokenKV) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (brokenKV) Set(context.Context, string, string) error         { return errDiskFull }
func (brokenKV) Remove(context.Context, string) error              { return errDiskFull }
func (brokenKV) Close() error                                      { return nil }

func (brokenKV) Update(context.Context, string, repository.KVUpdateFunc) error {
	return errDiskFull
}

func TestOfflineQueue_StorageFailureIsLocalStorageError(t *testing.T) {
	q := NewOfflineQueue(brokenKV{}, "")

	err := q.Enqueue(context.Background(), makeBill(t, 1, "Alice"))
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindLocalStorage))
	assert.ErrorIs(t, err, errDiskFull)
}

func TestOfflineQueue_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	kv := local.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultQueueKey, "{not json"))

	_, err := NewOfflineQueue(kv, "").Snapshot(ctx)
	assert.True(t, apperror.IsKind(err, apperror.KindLocalStorage))

	var got []entity.Bill
	for b, err := range NewOfflineQueue(kv, "").DrainAll(ctx) {
		assert.Error(t, err)
		got = append(got, b)
	}
	assert.Len(t, got, 1)
}

func TestOfflineQueue_SharedFileKeepsConcurrentEnqueues(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "smartbill.db")
	open := func() *OfflineQueue {
		db, err := database.NewSQLiteDB(path)
		require.NoError(t, err)
		kv, err := local.NewSQLiteStore(db)
		require.NoError(t, err)
		t.Cleanup(func() { _ = kv.Close() })
		return NewOfflineQueue(kv, "")
	}
	syncer, till := open(), open()

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, syncer.Enqueue(ctx, makeBill(t, i, "Alice")))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 10; i++ {
			assert.NoError(t, syncer.Ack(ctx, "till-1", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := int64(11); i <= 20; i++ {
			assert.NoError(t, till.Enqueue(ctx, makeBill(t, i, "Bob")))
		}
	}()
	wg.Wait()

	bills, err := syncer.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, localIDs(bills))
}
