package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/infrastructure/local"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBilling(t *testing.T, remote *flakyRemote, online *onlineFlag, q *OfflineQueue) *BillingService {
	t.Helper()
	s := NewBillingService(q, remote, online, billingConfig(), time.Second, testLogger())
	s.now = func() time.Time { return time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC) }
	return s
}

func addPen(t *testing.T, s *BillingService, session string) {
	t.Helper()
	_, err := s.AddItem(session, "Pen", decimal.NewFromInt(2), decimal.NewFromInt(10))
	require.NoError(t, err)
}

func TestBillingService_AddItemValidation(t *testing.T) {
	s := newBilling(t, newFlakyRemote(), newOnline(false), newQueue())

	cases := []struct {
		name  string
		item  string
		qty   decimal.Decimal
		price decimal.Decimal
		field string
	}{
		{"empty name", "  ", decimal.NewFromInt(1), decimal.NewFromInt(1), "name"},
		{"zero quantity", "Pen", decimal.Zero, decimal.NewFromInt(1), "quantity"},
		{"negative price", "Pen", decimal.NewFromInt(1), decimal.NewFromInt(-5), "unit_price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.AddItem("s1", tc.item, tc.qty, tc.price)
			require.Error(t, err)
			appErr := apperror.GetAppError(err)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			require.Len(t, appErr.Errors, 1)
			assert.Equal(t, tc.field, appErr.Errors[0].Field)
		})
	}
	assert.Empty(t, s.Draft("s1").Items)
}

func TestBillingService_DraftTotalsAndRemove(t *testing.T) {
	s := newBilling(t, newFlakyRemote(), newOnline(false), newQueue())

	pen, err := s.AddItem("s1", "Pen", decimal.NewFromInt(2), decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = s.AddItem("s1", "Notebook", decimal.NewFromInt(1), decimal.RequireFromString("45.50"))
	require.NoError(t, err)

	d := s.Draft("s1")
	assert.Len(t, d.Items, 2)
	assert.Equal(t, "65.5", d.Totals.Subtotal.String())

	s.RemoveItem("s1", pen.ID)
	s.RemoveItem("s1", pen.ID)
	s.RemoveItem("s1", "missing")

	d = s.Draft("s1")
	require.Len(t, d.Items, 1)
	assert.Equal(t, "Notebook", d.Items[0].Name)
	assert.Empty(t, s.Draft("s2").Items)
}

func TestBillingService_GenerateBillValidation(t *testing.T) {
	q := newQueue()
	s := newBilling(t, newFlakyRemote(), newOnline(false), q)

	_, err := s.GenerateBill(context.Background(), GenerateBillInput{Session: "s1", CreatedBy: "staff"})
	require.Error(t, err)
	appErr := apperror.GetAppError(err)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	fields := []string{}
	for _, fe := range appErr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"customer_name", "items"}, fields)

	addPen(t, s, "s1")
	_, err = s.GenerateBill(context.Background(), GenerateBillInput{Session: "s1", CreatedBy: "staff", CustomerName: "Alice", CustomerPhone: "12"})
	require.Error(t, err)
	assert.Equal(t, "customer_phone", apperror.GetAppError(err).Errors[0].Field)

	assert.Len(t, s.Draft("s1").Items, 1, "a rejected bill keeps the draft")
	n, _ := q.Len(context.Background())
	assert.Zero(t, n)
}

func TestBillingService_OfflineCaptureIsQueued(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	s := newBilling(t, remote, newOnline(false), q)
	addPen(t, s, "s1")

	res, err := s.GenerateBill(ctx, GenerateBillInput{Session: "s1", CreatedBy: "staff", CustomerName: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, enum.DeliveryQueued, res.Delivery)
	assert.Empty(t, res.Warning)
	assert.False(t, res.Bill.Synced)
	assert.Equal(t, "20", res.Bill.Subtotal.String())
	assert.Equal(t, "3.6", res.Bill.Tax.String())
	assert.Equal(t, "23.6", res.Bill.TotalAmount.String())
	assert.Equal(t, "staff", res.Bill.CreatedBy)
	assert.Empty(t, s.Draft("s1").Items)

	queued, err := q.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, res.Bill.LocalID, queued[0].LocalID)
	assert.Zero(t, remote.Len())
}

func TestBillingService_OnlineCaptureWritesRemote(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	s := newBilling(t, remote, newOnline(true), q)
	addPen(t, s, "s1")

	res, err := s.GenerateBill(ctx, GenerateBillInput{Session: "s1", CreatedBy: "owner", CustomerName: "Alice", CustomerPhone: "81234 56789"})
	require.NoError(t, err)

	assert.Equal(t, enum.DeliveryRemote, res.Delivery)
	assert.True(t, res.Bill.Synced)
	assert.NotEmpty(t, res.Bill.RemoteID)
	assert.Equal(t, "+918123456789", res.Bill.CustomerPhone)
	assert.Equal(t, 1, remote.Len())

	n, _ := q.Len(ctx)
	assert.Zero(t, n)
}

func TestBillingService_RemoteFailureFallsBackToQueue(t *testing.T) {
	ctx := context.Background()
	q := newQueue()
	remote := newFlakyRemote()
	remote.failAll = true
	s := newBilling(t, remote, newOnline(true), q)
	addPen(t, s, "s1")

	res, err := s.GenerateBill(ctx, GenerateBillInput{Session: "s1", CreatedBy: "staff", CustomerName: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, enum.DeliveryQueued, res.Delivery)
	assert.False(t, res.Bill.Synced)
	assert.Empty(t, res.Bill.RemoteID)
	n, _ := q.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestBillingService_EnqueueFailureWarns(t *testing.T) {
	s := newBilling(t, newFlakyRemote(), newOnline(false), NewOfflineQueue(brokenKV{}, ""))
	addPen(t, s, "s1")

	res, err := s.GenerateBill(context.Background(), GenerateBillInput{Session: "s1", CreatedBy: "staff", CustomerName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, enum.DeliveryQueued, res.Delivery)
	assert.NotEmpty(t, res.Warning)
	assert.Empty(t, s.Draft("s1").Items)
}

func TestBillingService_LocalIDsIncrease(t *testing.T) {
	ctx := context.Background()
	s := newBilling(t, newFlakyRemote(), newOnline(false), newQueue())

	var last int64
	for i := 0; i < 3; i++ {
		addPen(t, s, "s1")
		res, err := s.GenerateBill(ctx, GenerateBillInput{Session: "s1", CreatedBy: "staff", CustomerName: "Alice"})
		require.NoError(t, err)
		assert.Greater(t, res.Bill.LocalID, last)
		last = res.Bill.LocalID
	}
}

func TestBillingService_LocalIDsContinueAfterRestart(t *testing.T) {
	ctx := context.Background()
	q := newQueue()

	first := newBilling(t, newFlakyRemote(), newOnline(false), q)
	addPen(t, first, "s1")
	before, err := first.GenerateBill(ctx, GenerateBillInput{Session: "s1", CreatedBy: "ravi", CustomerName: "Alice"})
	require.NoError(t, err)

	// same clock, fresh process
	second := newBilling(t, newFlakyRemote(), newOnline(false), q)
	addPen(t, second, "s1")
	after, err := second.GenerateBill(ctx, GenerateBillInput{Session: "s1", CreatedBy: "ravi", CustomerName: "Bob"})
	require.NoError(t, err)

	assert.Greater(t, after.Bill.LocalID, before.Bill.LocalID)
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// gatedKV holds its first read until released
type gatedKV struct {
	*local.MemoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedKV) Get(ctx context.Context, key string) (string, bool, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.MemoryStore.Get(ctx, key)
}

func TestBillingService_ItemsAddedDuringGenerateStartNextBill(t *testing.T) {
	ctx := context.Background()
	kv := &gatedKV{MemoryStore: local.NewMemoryStore(), entered: make(chan struct{}), release: make(chan struct{})}
	s := newBilling(t, newFlakyRemote(), newOnline(false), NewOfflineQueue(kv, ""))
	addPen(t, s, "s1")

	done := make(chan *CaptureResult, 1)
	go func() {
		res, err := s.GenerateBill(ctx, GenerateBillInput{Session: "s1", CreatedBy: "staff", CustomerName: "Alice"})
		assert.NoError(t, err)
		done <- res
	}()

	<-kv.entered
	_, err := s.AddItem("s1", "Ink", decimal.NewFromInt(1), decimal.NewFromInt(150))
	require.NoError(t, err)
	close(kv.release)

	res := <-done
	require.NotNil(t, res)
	require.Len(t, res.Bill.Items, 1)
	assert.Equal(t, "Pen", res.Bill.Items[0].Name)

	draft := s.Draft("s1")
	require.Len(t, draft.Items, 1)
	assert.Equal(t, "Ink", draft.Items[0].Name)
}
