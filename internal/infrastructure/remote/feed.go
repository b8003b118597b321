package remote

import (
	"context"
	"sync"
	"time"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
)

// maxConsecutiveFailures is how many failed loads in a row a feed absorbs
// before surfacing the error
const maxConsecutiveFailures = 3

// snapshotLoader reads the whole collection and a version that changes
// whenever the collection does
type snapshotLoader func(ctx context.Context) ([]entity.Bill, string, error)

// pollingFeed turns a loader into a BillFeed. It reloads on every wake-up
// signal or poll tick and only emits when the version moved.
type pollingFeed struct {
	load     snapshotLoader
	wake     <-chan struct{}
	release  func()
	closed   <-chan struct{}
	interval time.Duration

	primed   bool
	version  string
	failures int

	stopOnce sync.Once
	stopped  chan struct{}
}

func newPollingFeed(load snapshotLoader, wake <-chan struct{}, release func(), closed <-chan struct{}, interval time.Duration) *pollingFeed {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &pollingFeed{
		load:     load,
		wake:     wake,
		release:  release,
		closed:   closed,
		interval: interval,
		stopped:  make(chan struct{}),
	}
}

func (f *pollingFeed) Next(ctx context.Context) ([]entity.Bill, error) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	first := !f.primed && f.failures == 0
	for {
		if !first {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-f.stopped:
				return nil, repository.ErrFeedClosed
			case <-f.closed:
				return nil, repository.ErrFeedClosed
			case <-f.wake:
			case <-ticker.C:
			}
		}
		first = false

		bills, version, err := f.load(ctx)
		if err != nil {
			f.failures++
			if f.failures >= maxConsecutiveFailures {
				f.failures = 0
				return nil, err
			}
			continue
		}
		f.failures = 0

		if f.primed && version == f.version {
			continue
		}
		f.primed = true
		f.version = version
		return bills, nil
	}
}

func (f *pollingFeed) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopped)
		if f.release != nil {
			f.release()
		}
	})
}
