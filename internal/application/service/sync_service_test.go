package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressLog struct {
	mu    sync.Mutex
	steps []SyncProgress
}

func (p *progressLog) add(s SyncProgress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, s)
}

func (p *progressLog) all() []SyncProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SyncProgress{}, p.steps...)
}

func newSync(q *OfflineQueue, remote *flakyRemote, online OnlineChecker, lock DrainLock) (*SyncService, *progressLog) {
	s := NewSyncService(q, remote, online, lock, time.Second, time.Hour, testLogger())
	log := &progressLog{}
	s.OnProgress(log.add)
	return s, log
}

func fillQueue(t *testing.T, q *OfflineQueue, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), makeBill(t, id, "Alice")))
	}
}

func TestSyncService_DrainSuccess(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	fillQueue(t, q, 1, 2, 3)
	s, progress := newSync(q, remote, newOnline(true), nil)

	report, err := s.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainReport{Total: 3, Completed: 3}, report)
	assert.Equal(t, []int64{1, 2, 3}, remote.written())

	steps := progress.all()
	require.NotEmpty(t, steps)
	assert.Equal(t, 100, steps[len(steps)-1].Percent)
	assert.Equal(t, 3, steps[len(steps)-1].Completed)

	n, _ := q.Len(ctx)
	assert.Zero(t, n)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncStateIdle, st.State)
	assert.NotNil(t, st.LastSyncedAt)
	assert.Empty(t, st.LastError)
}

func TestSyncService_EmptyQueueReportsComplete(t *testing.T) {
	s, progress := newSync(newQueue(), newFlakyRemote(), newOnline(true), nil)

	report, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	steps := progress.all()
	require.NotEmpty(t, steps)
	assert.Equal(t, 100, steps[len(steps)-1].Percent)
}

func TestSyncService_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	remote.failOn[2] = true
	fillQueue(t, q, 1, 2, 3)
	s, progress := newSync(q, remote, newOnline(true), nil)

	report, err := s.Drain(ctx)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindRemoteWrite))
	assert.Equal(t, DrainReport{Total: 3, Completed: 1}, report)

	steps := progress.all()
	assert.Equal(t, SyncProgress{Completed: 1, Total: 3, Percent: 33}, steps[len(steps)-1])

	queued, _ := q.Snapshot(ctx)
	assert.Equal(t, []int64{2, 3}, localIDs(queued))

	st, _ := s.Status(ctx)
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, enum.SyncStateError, st.State)
	assert.Equal(t, 2, st.Pending)

	report, err = s.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, []int64{1, 2, 3}, remote.written())
	assert.Equal(t, 3, remote.Len())

	st, _ = s.Status(ctx)
	assert.Equal(t, enum.SyncStateIdle, st.State)
	assert.Empty(t, st.LastError)
}

func TestSyncService_ConcurrentTriggersCoalesce(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	remote.block = make(chan struct{})
	fillQueue(t, q, 1)
	s, _ := newSync(q, remote, newOnline(true), nil)

	done := make(chan DrainReport)
	go func() {
		r, _ := s.Drain(ctx)
		done <- r
	}()

	require.Eventually(t, func() bool {
		st, _ := s.Status(ctx)
		return st.State == enum.SyncStateDraining
	}, time.Second, 5*time.Millisecond)

	second, err := s.Drain(ctx)
	require.NoError(t, err)
	assert.True(t, second.Coalesced)

	close(remote.block)
	first := <-done
	assert.False(t, first.Coalesced)
	assert.Equal(t, 1, first.Completed)
	assert.Equal(t, 1, remote.Len())
}

type heldLock struct{ err error }

func (l heldLock) TryLock(context.Context) (func(context.Context), bool, error) {
	return nil, false, l.err
}

func TestSyncService_LockHeldElsewhere(t *testing.T) {
	q := newQueue()
	remote := newFlakyRemote()
	fillQueue(t, q, 1)
	s, _ := newSync(q, remote, newOnline(true), heldLock{})

	report, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Coalesced)
	assert.Zero(t, remote.Len())
}

func TestSyncService_LockErrorStillDrains(t *testing.T) {
	q := newQueue()
	remote := newFlakyRemote()
	fillQueue(t, q, 1)
	s, _ := newSync(q, remote, newOnline(true), heldLock{err: errUnreachable})

	report, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
}

func TestSyncService_HandleConnectivity(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	fillQueue(t, q, 1)
	s, _ := newSync(q, remote, newOnline(true), nil)

	s.HandleConnectivity(ctx, false)
	assert.Zero(t, remote.Len())

	s.HandleConnectivity(ctx, true)
	assert.Equal(t, 1, remote.Len())
}

func TestSyncService_HeartbeatTick(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	online := newOnline(false)
	fillQueue(t, q, 1)
	s, _ := newSync(q, remote, online, nil)

	s.tick(ctx)
	st, _ := s.Status(ctx)
	assert.Nil(t, st.LastHeartbeat)
	assert.Zero(t, remote.Len())

	online.Set(true)
	s.tick(ctx)
	st, _ = s.Status(ctx)
	assert.NotNil(t, st.LastHeartbeat)
	assert.Equal(t, 1, remote.Len())
}

// An offline capture followed by reconnection ends with the bill remote,
// identical apart from sync state and identity.
func TestOfflineCaptureRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q := newQueue()
	remote := newFlakyRemote()
	online := newOnline(false)
	billing := newBilling(t, remote, online, q)
	syncer, _ := newSync(q, remote, online, nil)

	_, err := billing.AddItem("s1", "Pen", decimal.NewFromInt(2), decimal.NewFromInt(10))
	require.NoError(t, err)
	res, err := billing.GenerateBill(ctx, GenerateBillInput{Session: "s1", CreatedBy: "staff", CustomerName: "Alice"})
	require.NoError(t, err)
	n, _ := q.Len(ctx)
	require.Equal(t, 1, n)
	assert.Equal(t, "23.6", res.Bill.TotalAmount.String())

	online.Set(true)
	syncer.HandleConnectivity(ctx, true)

	n, _ = q.Len(ctx)
	assert.Zero(t, n)

	feed, err := remote.Watch(ctx)
	require.NoError(t, err)
	defer feed.Stop()
	bills, err := feed.Next(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 1)

	got := bills[0]
	want := res.Bill
	assert.True(t, got.Synced)
	assert.NotEmpty(t, got.RemoteID)
	assert.Equal(t, want.LocalID, got.LocalID)
	require.Len(t, got.Items, len(want.Items))
	for i := range want.Items {
		assert.Equal(t, want.Items[i].ID, got.Items[i].ID)
		assert.True(t, want.Items[i].LineTotal.Equal(got.Items[i].LineTotal))
	}
	assert.True(t, want.Subtotal.Equal(got.Subtotal))
	assert.True(t, want.Tax.Equal(got.Tax))
	assert.True(t, want.TotalAmount.Equal(got.TotalAmount))
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, want.CreatedBy, got.CreatedBy)
}
