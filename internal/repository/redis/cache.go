package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ErrCacheUnavailable marks failures of the cache itself, as opposed to
// errors returned by a loader.
var ErrCacheUnavailable = errors.New("catalog cache unavailable")

// Cache stores upstream catalog responses (actions, seat schemas) as JSON
// strings shared by every session.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	s, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return s, true, nil
}

func (c *Cache) SetString(
	ctx context.Context,
	key string,
	val string,
	ttl time.Duration,
) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return c.rdb.Del(ctx, keys...).Err()
}

func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	s, ok, err := c.GetString(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}

	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return zero, false, err
	}

	return out, true, nil
}

func SetJSON(
	ctx context.Context,
	c *Cache,
	key string,
	val any,
	ttl time.Duration,
) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.SetString(ctx, key, string(b), ttl)
}

// GetOrSetJSON returns the cached value under key or runs loader once per
// key across concurrent callers and caches its result for ttl. Loader
// errors are never cached and are returned as is; cache failures wrap
// ErrCacheUnavailable.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if v, ok, err := GetJSON[T](ctx, c, key); err != nil {
		return v, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	} else if ok {
		return v, nil
	}

	vAny, err, _ := c.sf.Do(key, func() (any, error) {
		if v2, ok2, err2 := GetJSON[T](ctx, c, key); err2 != nil {
			return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err2)
		} else if ok2 {
			return v2, nil
		}
		v3, err3 := loader(ctx)
		if err3 != nil {
			return nil, err3
		}
		_ = SetJSON(ctx, c, key, v3, ttl)
		return v3, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := vAny.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: unexpected %T for %s", ErrCacheUnavailable, vAny, key)
	}

	return v, nil
}

// Track adds key to the index set so InvalidateIndex can find it later.
func (c *Cache) Track(ctx context.Context, index, key string, ttl time.Duration) error {
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, index, key)
	pipe.Expire(ctx, index, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateAction drops every cached view of the action.
func (c *Cache) InvalidateAction(ctx context.Context, actionID int64) error {
	index := KeyActionIndex(actionID)

	keys, err := c.rdb.SMembers(ctx, index).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	return c.Del(ctx, append(keys, index)...)
}
