package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sangkips/smartbill/internal/domain/analytics"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/sirupsen/logrus"
)

// BillSnapshot is one delivery of the live bill stream, newest first. A
// degraded snapshot is read-only data assembled from the last known remote
// state and the offline queue after the stream failed.
type BillSnapshot struct {
	Bills      []entity.Bill `json:"bills"`
	Degraded   bool          `json:"degraded"`
	Err        error         `json:"-"`
	ReceivedAt time.Time     `json:"received_at"`
}

// LiveBillService mirrors the remote bill collection
type LiveBillService struct {
	remote repository.RemoteBillStore
	queue  *OfflineQueue
	log    logrus.FieldLogger
}

func NewLiveBillService(remote repository.RemoteBillStore, queue *OfflineQueue, log logrus.FieldLogger) *LiveBillService {
	return &LiveBillService{remote: remote, queue: queue, log: log}
}

// Subscription is an open live stream. Stop it with Unsubscribe.
type Subscription struct {
	cancel     context.CancelFunc
	feed       repository.BillFeed
	done       chan struct{}
	once       sync.Once
	inCallback atomic.Bool
}

// Unsubscribe stops delivery. It may be called any number of times, also from
// inside the update callback. Unless a delivery is in progress it returns only
// after the delivery loop has exited.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.feed.Stop()
	})
	if !s.inCallback.Load() {
		<-s.done
	}
}

// Done is closed when the subscription has stopped for any reason
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe opens the remote feed and calls onUpdate with the full ordered
// bill set on every change. If the feed fails, onUpdate receives one degraded
// snapshot carrying a RemoteSubscriptionError and the subscription ends.
func (l *LiveBillService) Subscribe(ctx context.Context, onUpdate func(BillSnapshot)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	feed, err := l.remote.Watch(ctx)
	if err != nil {
		cancel()
		return nil, apperror.NewRemoteSubscriptionError(err)
	}

	sub := &Subscription{cancel: cancel, feed: feed, done: make(chan struct{})}
	go l.loop(ctx, sub, onUpdate)
	return sub, nil
}

func (l *LiveBillService) loop(ctx context.Context, sub *Subscription, onUpdate func(BillSnapshot)) {
	defer close(sub.done)
	logger := l.log.WithFields(logrus.Fields{"module": "live"})

	deliver := func(snap BillSnapshot) {
		sub.inCallback.Store(true)
		defer sub.inCallback.Store(false)
		onUpdate(snap)
	}

	var lastKnown []entity.Bill
	for {
		bills, err := sub.feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, repository.ErrFeedClosed) {
				return
			}
			serr := apperror.NewRemoteSubscriptionError(err)
			logger.WithField("kind", serr.Kind).Warn(serr.Error() + "; serving last known bills")
			deliver(BillSnapshot{
				Bills:      l.fallback(ctx, lastKnown),
				Degraded:   true,
				Err:        serr,
				ReceivedAt: time.Now(),
			})
			return
		}

		lastKnown = l.sanitize(bills)
		if ctx.Err() != nil {
			return
		}
		deliver(BillSnapshot{Bills: lastKnown, ReceivedAt: time.Now()})
	}
}

// sanitize drops records that do not satisfy the bill schema and orders the
// rest newest first
func (l *LiveBillService) sanitize(bills []entity.Bill) []entity.Bill {
	valid := make([]entity.Bill, 0, len(bills))
	for i := range bills {
		if err := bills[i].Validate(); err != nil {
			l.log.WithFields(logrus.Fields{
				"module":    "live",
				"remote_id": bills[i].RemoteID,
			}).Warn("dropping invalid bill record: " + err.Error())
			continue
		}
		valid = append(valid, bills[i])
	}
	return analytics.SortNewestFirst(valid)
}

func (l *LiveBillService) fallback(ctx context.Context, lastKnown []entity.Bill) []entity.Bill {
	queued, err := l.queue.Snapshot(context.WithoutCancel(ctx))
	if err != nil {
		l.log.WithFields(logrus.Fields{"module": "live", "kind": apperror.KindLocalStorage}).Error(err.Error())
		queued = nil
	}
	return mergeBills(lastKnown, queued)
}

type billKey struct {
	device string
	local  int64
}

// mergeBills returns remote bills plus queued bills not yet present remotely,
// newest first
func mergeBills(remote, queued []entity.Bill) []entity.Bill {
	seen := make(map[billKey]struct{}, len(remote))
	out := make([]entity.Bill, 0, len(remote)+len(queued))
	for _, b := range remote {
		seen[billKey{b.DeviceID, b.LocalID}] = struct{}{}
		out = append(out, b)
	}
	for _, b := range queued {
		k := billKey{b.DeviceID, b.LocalID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, b)
	}
	return analytics.SortNewestFirst(out)
}

// BillMirror keeps the latest snapshot in memory for request handlers and
// fans it out to stream listeners
type BillMirror struct {
	live  *LiveBillService
	queue *OfflineQueue
	log   logrus.FieldLogger

	mu        sync.RWMutex
	current   BillSnapshot
	started   bool
	listeners map[chan BillSnapshot]struct{}
	sub       *Subscription
}

func NewBillMirror(live *LiveBillService, queue *OfflineQueue, log logrus.FieldLogger) *BillMirror {
	return &BillMirror{live: live, queue: queue, log: log, listeners: make(map[chan BillSnapshot]struct{})}
}

// Start subscribes to the live stream. Calling it again after the stream
// degraded opens a fresh subscription.
func (m *BillMirror) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.sub != nil {
		select {
		case <-m.sub.Done():
		default:
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()

	sub, err := m.live.Subscribe(ctx, m.publish)
	if err != nil {
		m.log.WithFields(logrus.Fields{"module": "live", "kind": apperror.KindRemoteSubscription}).Warn(err.Error())
		m.publish(BillSnapshot{
			Bills:      m.live.fallback(ctx, nil),
			Degraded:   true,
			Err:        err,
			ReceivedAt: time.Now(),
		})
		return err
	}

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
	return nil
}

// Stop ends the subscription and closes every listener
func (m *BillMirror) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.listeners {
		close(ch)
		delete(m.listeners, ch)
	}
}

func (m *BillMirror) publish(snap BillSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = snap
	m.started = true
	for ch := range m.listeners {
		select {
		case ch <- snap:
		default:
			// slow listener; it will catch up on the next change
		}
	}
}

// Snapshot returns the latest delivery and whether one has arrived yet
func (m *BillMirror) Snapshot() (BillSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.started
}

// Bills returns every known bill: the mirrored remote set plus queued bills
// the remote store does not have yet
func (m *BillMirror) Bills(ctx context.Context) ([]entity.Bill, error) {
	snap, _ := m.Snapshot()
	queued, err := m.queue.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return mergeBills(snap.Bills, queued), nil
}

// Listen registers a listener that receives the current snapshot first and
// then every later one. Call the returned func to stop listening.
func (m *BillMirror) Listen() (<-chan BillSnapshot, func()) {
	ch := make(chan BillSnapshot, 4)

	m.mu.Lock()
	m.listeners[ch] = struct{}{}
	if m.started {
		ch <- m.current
	}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.listeners[ch]; ok {
				delete(m.listeners, ch)
				close(ch)
			}
		})
	}
}
