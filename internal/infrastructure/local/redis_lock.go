package local

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// RedisDrainLock keeps two processes sharing a queue from draining it at once
type RedisDrainLock struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
}

func NewRedisDrainLock(locker *redislock.Client, key string, ttl time.Duration) *RedisDrainLock {
	return &RedisDrainLock{locker: locker, key: key, ttl: ttl}
}

// TryLock returns ok=false without error when another holder has the lock
func (l *RedisDrainLock) TryLock(ctx context.Context) (func(context.Context), bool, error) {
	lock, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return func(ctx context.Context) {
		_ = lock.Release(ctx)
	}, true, nil
}
