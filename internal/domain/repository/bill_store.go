package repository

import (
	"context"
	"errors"

	"github.com/sangkips/smartbill/internal/domain/entity"
)

// ErrFeedClosed is returned by BillFeed.Next after Stop or when the store shuts down
var ErrFeedClosed = errors.New("bill feed closed")

// RemoteBillStore is the hosted store bills are reconciled into.
type RemoteBillStore interface {
	// Write persists a bill and returns its store identity. Writing the same
	// (DeviceID, LocalID) twice returns the identity of the first write.
	Write(ctx context.Context, bill *entity.Bill) (string, error)
	// Watch opens a live feed of the whole bill collection.
	Watch(ctx context.Context) (BillFeed, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// BillFeed delivers full snapshots of the bill collection, one per change.
type BillFeed interface {
	// Next blocks until the next snapshot is available. The first call returns
	// the current contents. Records are not yet validated.
	Next(ctx context.Context) ([]entity.Bill, error)
	Stop()
}
