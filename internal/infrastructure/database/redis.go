package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sangkips/smartbill/internal/config"
	"github.com/sirupsen/logrus"
)

// ConnectRedis dials redis, retrying with exponential backoff capped at 30s
// until attempts run out or ctx is done.
func ConnectRedis(ctx context.Context, cfg *config.RedisConfig, attempts int, log logrus.FieldLogger) (*redis.Client, *redislock.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: 20,
		})
		if lastErr = rdb.Ping(ctx).Err(); lastErr == nil {
			log.WithFields(logrus.Fields{"attempt": attempt, "addr": cfg.Address}).Info("connected to redis")
			return rdb, redislock.New(rdb), nil
		}
		_ = rdb.Close()

		if attempt == attempts {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.WithFields(logrus.Fields{"attempt": attempt, "addr": cfg.Address, "retry_in": sleep.String()}).
			Warn("failed to connect redis: " + lastErr.Error())

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Address, lastErr)
}
