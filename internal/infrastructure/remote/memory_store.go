package remote

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
)

// ErrStoreClosed is returned by a closed MemoryBillStore
var ErrStoreClosed = errors.New("remote store closed")

type deviceKey struct {
	device string
	local  int64
}

// MemoryBillStore keeps bills in process memory. It honours the same
// idempotency and ordering contract as the hosted stores.
type MemoryBillStore struct {
	mu       sync.RWMutex
	bills    []entity.Bill
	byDevice map[deviceKey]int
	version  uint64
	notifier *LocalNotifier
	interval time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func NewMemoryBillStore() *MemoryBillStore {
	return &MemoryBillStore{
		byDevice: make(map[deviceKey]int),
		notifier: NewLocalNotifier(),
		interval: time.Second,
		closed:   make(chan struct{}),
	}
}

func (s *MemoryBillStore) Write(ctx context.Context, bill *entity.Bill) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case <-s.closed:
		return "", ErrStoreClosed
	default:
	}

	s.mu.Lock()
	key := deviceKey{device: bill.DeviceID, local: bill.LocalID}
	if i, ok := s.byDevice[key]; ok {
		id := s.bills[i].RemoteID
		s.mu.Unlock()
		return id, nil
	}

	row := *bill
	row.Items = slices.Clone(bill.Items)
	row.RemoteID = uuid.NewString()
	row.CreatedAt = time.Now()
	s.byDevice[key] = len(s.bills)
	s.bills = append(s.bills, row)
	s.version++
	s.mu.Unlock()

	s.notifier.Notify(ctx)
	return row.RemoteID, nil
}

func (s *MemoryBillStore) snapshot(_ context.Context) ([]entity.Bill, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Bill, len(s.bills))
	copy(out, s.bills)
	return out, strconv.FormatUint(s.version, 10), nil
}

// Watch returns a feed over the collection in insertion order. Ordering by
// timestamp is the subscriber's job.
func (s *MemoryBillStore) Watch(ctx context.Context) (repository.BillFeed, error) {
	select {
	case <-s.closed:
		return nil, ErrStoreClosed
	default:
	}
	wake, release := s.notifier.Subscribe(ctx)
	return newPollingFeed(s.snapshot, wake, release, s.closed, s.interval), nil
}

func (s *MemoryBillStore) Ping(_ context.Context) error {
	select {
	case <-s.closed:
		return ErrStoreClosed
	default:
		return nil
	}
}

// Len returns the number of stored bills
func (s *MemoryBillStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bills)
}

func (s *MemoryBillStore) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
