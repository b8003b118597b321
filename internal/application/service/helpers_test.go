package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sangkips/smartbill/internal/config"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/internal/infrastructure/local"
	"github.com/sangkips/smartbill/internal/infrastructure/remote"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("remote unreachable")

func testLogger() *logrus.Logger {
	log, _ := logtest.NewNullLogger()
	return log
}

type onlineFlag struct{ v atomic.Bool }

func newOnline(v bool) *onlineFlag {
	f := &onlineFlag{}
	f.v.Store(v)
	return f
}

func (f *onlineFlag) Online() bool { return f.v.Load() }
func (f *onlineFlag) Set(v bool)   { f.v.Store(v) }

// flakyRemote wraps a memory store and fails chosen write attempts
type flakyRemote struct {
	*remote.MemoryBillStore

	mu       sync.Mutex
	attempts int
	failOn   map[int]bool
	failAll  bool
	writes   []int64
	watchErr error
	block    chan struct{}
}

func newFlakyRemote() *flakyRemote {
	return &flakyRemote{MemoryBillStore: remote.NewMemoryBillStore(), failOn: map[int]bool{}}
}

func (f *flakyRemote) Write(ctx context.Context, bill *entity.Bill) (string, error) {
	f.mu.Lock()
	f.attempts++
	n := f.attempts
	fail := f.failAll || f.failOn[n]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail {
		return "", errUnreachable
	}

	f.mu.Lock()
	f.writes = append(f.writes, bill.LocalID)
	f.mu.Unlock()
	return f.MemoryBillStore.Write(ctx, bill)
}

func (f *flakyRemote) Watch(ctx context.Context) (repository.BillFeed, error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	return f.MemoryBillStore.Watch(ctx)
}

func (f *flakyRemote) written() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64{}, f.writes...)
}

func newQueue() *OfflineQueue {
	return NewOfflineQueue(local.NewMemoryStore(), "")
}

func makeBill(t *testing.T, localID int64, customer string) entity.Bill {
	t.Helper()
	item, err := entity.NewLineItem("Pen", decimal.NewFromInt(2), decimal.NewFromInt(10))
	require.NoError(t, err)
	items := []entity.LineItem{item}
	totals := entity.ComputeTotals(items, entity.DefaultTaxRate)
	return entity.Bill{
		LocalID:      localID,
		DeviceID:     "till-1",
		CustomerName: customer,
		Items:        items,
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		TotalAmount:  totals.TotalAmount,
		Timestamp:    time.UnixMilli(1_700_000_000_000 + localID),
		CreatedBy:    "staff",
	}
}

func billingConfig() config.BillingConfig {
	return config.BillingConfig{
		TaxRate:     entity.DefaultTaxRate,
		PhoneRegion: "IN",
		DeviceID:    "till-1",
	}
}

func localIDs(bills []entity.Bill) []int64 {
	out := make([]int64, 0, len(bills))
	for _, b := range bills {
		out = append(out, b.LocalID)
	}
	return out
}
