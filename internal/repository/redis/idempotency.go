package redisrepo

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLock      = "LOCK"
	idemResPrefix = "RES:"
)

// IdempotencyStore lets a client retry order placement with the same
// Idempotency-Key and get the first response back instead of a second
// order.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
}

// SaveResult replaces the lock with the response to replay.
func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, jsonPayload string) error {
	val := idemResPrefix + jsonPayload
	return s.rdb.Set(ctx, key, val, s.ttl).Err()
}

func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if payload, ok := strings.CutPrefix(v, idemResPrefix); ok {
		return payload, true, nil
	}

	return "", false, nil
}

type IdemState int

const (
	// IdemFresh means the caller holds the lock and must run the request.
	IdemFresh IdemState = iota
	// IdemReplay means a saved response is available.
	IdemReplay
	// IdemBusy means another request with the same key is still running.
	IdemBusy
)

// Begin resolves an incoming request against key: replay a saved result,
// take the lock, or report that someone else holds it.
func (s *IdempotencyStore) Begin(ctx context.Context, key string, lockTTL time.Duration) (IdemState, string, error) {
	if payload, ok, err := s.GetResult(ctx, key); err != nil {
		return IdemFresh, "", err
	} else if ok {
		return IdemReplay, payload, nil
	}

	locked, err := s.AcquireLock(ctx, key, lockTTL)
	if err != nil {
		return IdemFresh, "", err
	}
	if locked {
		return IdemFresh, "", nil
	}

	// lost the race; the winner may have finished in between
	if payload, ok, _ := s.GetResult(ctx, key); ok {
		return IdemReplay, payload, nil
	}

	return IdemBusy, "", nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
