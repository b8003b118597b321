// Package remote implements the hosted bill stores the reconciler writes to
// and the live feed reads from.
package remote

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ChangeNotifier wakes feeds when the bill collection changes
type ChangeNotifier interface {
	Notify(ctx context.Context)
	// Subscribe returns a channel that receives at least one value after each
	// Notify, and a func that releases the subscription.
	Subscribe(ctx context.Context) (<-chan struct{}, func())
}

// LocalNotifier fans changes out to subscribers in the same process
type LocalNotifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[int]chan struct{})}
}

func (n *LocalNotifier) Notify(_ context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *LocalNotifier) Subscribe(_ context.Context) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// RedisNotifier publishes change events on a redis channel so feeds in other
// processes see writes made here
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	log     logrus.FieldLogger
}

func NewRedisNotifier(rdb *redis.Client, channel string, log logrus.FieldLogger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context) {
	if err := n.rdb.Publish(ctx, n.channel, "changed").Err(); err != nil {
		n.log.WithFields(logrus.Fields{"module": "remote", "channel": n.channel}).
			Warn("failed to publish bill change: " + err.Error())
	}
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	ps := n.rdb.Subscribe(ctx, n.channel)
	out := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
}
