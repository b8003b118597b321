package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/sangkips/smartbill/internal/application/service")

// DrainLock excludes concurrent drains running in other processes that share
// the same queue
type DrainLock interface {
	TryLock(ctx context.Context) (release func(context.Context), ok bool, err error)
}

// SyncProgress is the fraction of the current batch confirmed remotely
type SyncProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

func newProgress(completed, total int) SyncProgress {
	if total == 0 {
		return SyncProgress{Percent: 100}
	}
	return SyncProgress{Completed: completed, Total: total, Percent: completed * 100 / total}
}

// SyncStatus is what the UI shows about reconciliation
type SyncStatus struct {
	State         enum.SyncState `json:"state"`
	Online        bool           `json:"online"`
	Pending       int            `json:"pending"`
	Progress      SyncProgress   `json:"progress"`
	LastError     string         `json:"last_error,omitempty"`
	LastSyncedAt  *time.Time     `json:"last_synced_at,omitempty"`
	LastHeartbeat *time.Time     `json:"last_heartbeat,omitempty"`
}

// DrainReport describes one drain call
type DrainReport struct {
	Coalesced bool `json:"coalesced"`
	Total     int  `json:"total"`
	Completed int  `json:"completed"`
}

// SyncService drains the offline queue into the remote store. Only one drain
// runs at a time; triggers arriving meanwhile are dropped.
type SyncService struct {
	queue        *OfflineQueue
	remote       repository.RemoteBillStore
	online       OnlineChecker
	lock         DrainLock
	writeTimeout time.Duration
	heartbeat    time.Duration
	log          logrus.FieldLogger

	draining atomic.Bool

	mu            sync.RWMutex
	progress      SyncProgress
	lastError     string
	lastSyncedAt  time.Time
	lastHeartbeat time.Time
	listeners     []func(SyncProgress)
}

// NewSyncService creates the reconciler. lock may be nil.
func NewSyncService(
	queue *OfflineQueue,
	remote repository.RemoteBillStore,
	online OnlineChecker,
	lock DrainLock,
	writeTimeout, heartbeat time.Duration,
	log logrus.FieldLogger,
) *SyncService {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &SyncService{
		queue:        queue,
		remote:       remote,
		online:       online,
		lock:         lock,
		writeTimeout: writeTimeout,
		heartbeat:    heartbeat,
		log:          log,
		progress:     newProgress(0, 0),
	}
}

// OnProgress registers fn to receive progress after every write attempt
func (s *SyncService) OnProgress(fn func(SyncProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *SyncService) report(p SyncProgress) {
	s.mu.Lock()
	s.progress = p
	listeners := append([]func(SyncProgress){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
}

// Status returns the reconciler state along with the current queue length
func (s *SyncService) Status(ctx context.Context) (SyncStatus, error) {
	pending, err := s.queue.Len(ctx)
	if err != nil {
		return SyncStatus{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SyncStatus{
		State:     enum.SyncStateIdle,
		Online:    s.online.Online(),
		Pending:   pending,
		Progress:  s.progress,
		LastError: s.lastError,
	}
	switch {
	case s.draining.Load():
		st.State = enum.SyncStateDraining
	case s.lastError != "":
		st.State = enum.SyncStateError
	}
	if !s.lastSyncedAt.IsZero() {
		t := s.lastSyncedAt
		st.LastSyncedAt = &t
	}
	if !s.lastHeartbeat.IsZero() {
		t := s.lastHeartbeat
		st.LastHeartbeat = &t
	}
	return st, nil
}

// Drain writes every queued bill in enqueue order, removing each one from
// the queue once the store confirms it. It stops at the first failed write
// and leaves that bill and everything after it queued. Cancelling ctx does
// not interrupt a batch that has started.
func (s *SyncService) Drain(ctx context.Context) (DrainReport, error) {
	if !s.draining.CompareAndSwap(false, true) {
		return DrainReport{Coalesced: true}, nil
	}
	defer s.draining.Store(false)

	ctx = context.WithoutCancel(ctx)
	logger := s.log.WithFields(logrus.Fields{"module": "sync", "func": "Drain"})

	if s.lock != nil {
		release, ok, err := s.lock.TryLock(ctx)
		switch {
		case err != nil:
			logger.Warn("drain lock unavailable, draining without it: " + err.Error())
		case !ok:
			return DrainReport{Coalesced: true}, nil
		default:
			defer release(ctx)
		}
	}

	ctx, span := tracer.Start(ctx, "sync.drain")
	defer span.End()

	bills, err := s.queue.Snapshot(ctx)
	if err != nil {
		s.fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read queue")
		return DrainReport{}, err
	}

	total := len(bills)
	span.SetAttributes(attribute.Int("sync.total", total))
	report := DrainReport{Total: total}
	s.report(newProgress(0, total))

	for i := range bills {
		if err := s.writeOne(ctx, bills[i]); err != nil {
			werr := apperror.NewRemoteWriteError(err)
			s.fail(werr)
			logger.WithFields(logrus.Fields{
				"kind":      werr.Kind,
				"bill":      bills[i].Number(),
				"completed": report.Completed,
				"total":     total,
			}).Warn("drain stopped: " + werr.Error())
			span.SetAttributes(attribute.Int("sync.completed", report.Completed))
			span.SetStatus(codes.Error, "remote write failed")
			return report, werr
		}

		if err := s.queue.Ack(ctx, bills[i].DeviceID, bills[i].LocalID); err != nil {
			s.fail(err)
			logger.WithField("kind", apperror.KindLocalStorage).Error(err.Error())
			span.SetStatus(codes.Error, "ack failed")
			return report, err
		}
		report.Completed++
		s.report(newProgress(report.Completed, total))
	}

	s.mu.Lock()
	s.lastError = ""
	s.lastSyncedAt = time.Now()
	s.mu.Unlock()
	if total == 0 {
		s.report(newProgress(0, 0))
	}

	span.SetAttributes(attribute.Int("sync.completed", report.Completed))
	if total > 0 {
		logger.WithField("count", total).Info("offline bills synced")
	}
	return report, nil
}

func (s *SyncService) writeOne(ctx context.Context, bill entity.Bill) error {
	ctx, span := tracer.Start(ctx, "remote.write",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("bill.device_id", bill.DeviceID), attribute.Int64("bill.local_id", bill.LocalID)),
	)
	defer span.End()

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	bill.Synced = true
	if _, err := s.remote.Write(wctx, &bill); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return err
	}
	return nil
}

func (s *SyncService) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err.Error()
}

// HandleConnectivity drains when the remote store becomes reachable
func (s *SyncService) HandleConnectivity(ctx context.Context, online bool) {
	if !online {
		return
	}
	_, _ = s.Drain(ctx)
}

// Run ticks the heartbeat until ctx is done. Each tick while online records
// the heartbeat and drains anything still queued.
func (s *SyncService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *SyncService) tick(ctx context.Context) {
	if !s.online.Online() {
		return
	}
	s.mu.Lock()
	s.lastHeartbeat = time.Now()
	s.mu.Unlock()

	pending, err := s.queue.Len(ctx)
	if err != nil {
		s.log.WithFields(logrus.Fields{"module": "sync", "kind": apperror.KindLocalStorage}).Error(err.Error())
		return
	}
	if pending > 0 {
		_, _ = s.Drain(ctx)
	}
}
