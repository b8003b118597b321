package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFeed replays fixed snapshots and then an error, if set
type scriptedFeed struct {
	mu      sync.Mutex
	batches [][]entity.Bill
	err     error
	stopped chan struct{}
	once    sync.Once
}

func newScriptedFeed(err error, batches ...[]entity.Bill) *scriptedFeed {
	return &scriptedFeed{batches: batches, err: err, stopped: make(chan struct{})}
}

func (f *scriptedFeed) Next(ctx context.Context) ([]entity.Bill, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return b, nil
	}
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.stopped:
		return nil, repository.ErrFeedClosed
	}
}

func (f *scriptedFeed) Stop() {
	f.once.Do(func() { close(f.stopped) })
}

type scriptedRemote struct {
	*flakyRemote
	feed *scriptedFeed
}

func (r *scriptedRemote) Watch(context.Context) (repository.BillFeed, error) {
	return r.feed, nil
}

type snapshots struct {
	mu  sync.Mutex
	got []BillSnapshot
}

func (s *snapshots) add(snap BillSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, snap)
}

func (s *snapshots) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *snapshots) at(i int) BillSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[i]
}

func TestLiveBillService_OrdersNewestFirstAndDropsInvalid(t *testing.T) {
	broken := makeBill(t, 9, "Mallory")
	broken.TotalAmount = decimal.NewFromInt(1)
	feed := newScriptedFeed(nil, []entity.Bill{makeBill(t, 1, "a"), makeBill(t, 3, "c"), broken, makeBill(t, 2, "b")})
	live := NewLiveBillService(&scriptedRemote{flakyRemote: newFlakyRemote(), feed: feed}, newQueue(), testLogger())

	got := &snapshots{}
	sub, err := live.Subscribe(context.Background(), got.add)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { return got.len() == 1 }, time.Second, 5*time.Millisecond)
	snap := got.at(0)
	assert.False(t, snap.Degraded)
	assert.Equal(t, []int64{3, 2, 1}, localIDs(snap.Bills))
}

func TestLiveBillService_FailureFallsBackOnce(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	require.NoError(t, q.Enqueue(ctx, makeBill(t, 5, "queued")))
	require.NoError(t, q.Enqueue(ctx, makeBill(t, 1, "dup")))

	remoteBill := makeBill(t, 1, "dup")
	remoteBill.Synced = true
	feed := newScriptedFeed(errUnreachable, []entity.Bill{remoteBill})
	live := NewLiveBillService(&scriptedRemote{flakyRemote: newFlakyRemote(), feed: feed}, q, testLogger())

	got := &snapshots{}
	sub, err := live.Subscribe(ctx, got.add)
	require.NoError(t, err)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not end after feed error")
	}

	require.Equal(t, 2, got.len())
	degraded := got.at(1)
	assert.True(t, degraded.Degraded)
	assert.True(t, apperror.IsKind(degraded.Err, apperror.KindRemoteSubscription))
	assert.Equal(t, []int64{5, 1}, localIDs(degraded.Bills))
	assert.True(t, degraded.Bills[1].Synced, "remote copy wins over the queued one")

	sub.Unsubscribe()
	sub.Unsubscribe()
}

func TestLiveBillService_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyRemote()
	live := NewLiveBillService(remote, newQueue(), testLogger())

	got := &snapshots{}
	sub, err := live.Subscribe(ctx, got.add)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return got.len() == 1 }, time.Second, 5*time.Millisecond)

	b := makeBill(t, 1, "Alice")
	b.Synced = true
	_, err = remote.Write(ctx, &b)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return got.len() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, got.at(1).Bills, 1)

	sub.Unsubscribe()
	sub.Unsubscribe()

	b2 := makeBill(t, 2, "Bob")
	_, err = remote.Write(ctx, &b2)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, got.len())
}

func TestLiveBillService_UnsubscribeFromCallback(t *testing.T) {
	remote := newFlakyRemote()
	live := NewLiveBillService(remote, newQueue(), testLogger())

	var sub *Subscription
	ready := make(chan struct{})
	calls := 0
	var err error
	sub, err = live.Subscribe(context.Background(), func(BillSnapshot) {
		<-ready
		calls++
		sub.Unsubscribe()
	})
	require.NoError(t, err)
	close(ready)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("unsubscribe from callback deadlocked")
	}
	assert.Equal(t, 1, calls)
}

func TestLiveBillService_WatchErrorIsSubscriptionError(t *testing.T) {
	remote := newFlakyRemote()
	remote.watchErr = errUnreachable
	live := NewLiveBillService(remote, newQueue(), testLogger())

	_, err := live.Subscribe(context.Background(), func(BillSnapshot) {})
	assert.True(t, apperror.IsKind(err, apperror.KindRemoteSubscription))
}

func TestBillMirror_MergesQueueAndFansOut(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	mirror := NewBillMirror(NewLiveBillService(remote, q, testLogger()), q, testLogger())

	synced := makeBill(t, 1, "Alice")
	synced.Synced = true
	_, err := remote.Write(ctx, &synced)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, makeBill(t, 2, "Bob")))

	require.NoError(t, mirror.Start(ctx))
	defer mirror.Stop()

	ch, stop := mirror.Listen()
	defer stop()

	select {
	case snap := <-ch:
		assert.Len(t, snap.Bills, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}

	bills, err := mirror.Bills(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, localIDs(bills))
	assert.False(t, bills[0].Synced)
	assert.True(t, bills[1].Synced)
}

func TestBillMirror_StartFailureServesQueue(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	require.NoError(t, q.Enqueue(ctx, makeBill(t, 4, "Bob")))
	remote := newFlakyRemote()
	remote.watchErr = errUnreachable
	mirror := NewBillMirror(NewLiveBillService(remote, q, testLogger()), q, testLogger())

	err := mirror.Start(ctx)
	require.Error(t, err)

	snap, ok := mirror.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.Degraded)
	assert.Equal(t, []int64{4}, localIDs(snap.Bills))
}
