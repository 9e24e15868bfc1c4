package redisrepo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// luaCommitWindow keeps one sorted-set member per commit attempt, scored by
// its time in ms, and drops members older than the window.
//
// KEYS[1] attempts key
// ARGV[1] now, ms
// ARGV[2] window, ms
// ARGV[3] attempts allowed per window
// ARGV[4] attempt id
//
// Returns {allowed, attempts, retry_ms}.
const luaCommitWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
redis.call('ZADD', key, 'NX', now, ARGV[4])
local attempts = redis.call('ZCARD', key)
redis.call('PEXPIRE', key, window)

if attempts <= limit then
  return {1, attempts, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local since = tonumber(oldest[2]) or (now - window)
local retry = window - (now - since)
if retry < 0 then retry = 0 end
return {0, attempts, retry}
`

// CommitAllowance is the verdict on one commit attempt of a session.
type CommitAllowance struct {
	Allowed bool
	// Attempts counts this one and every other attempt inside the window.
	Attempts int64
	// RetryAfter is zero when Allowed.
	RetryAfter time.Duration
}

// CommitLimiter caps how often a session may push its cart to the upstream
// reservation endpoint, over a sliding window shared by every instance.
type CommitLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	script *redis.Script
	now    func() time.Time
}

func NewCommitLimiter(rdb *redis.Client, limit int, window time.Duration) *CommitLimiter {
	return &CommitLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		script: redis.NewScript(luaCommitWindow),
		now:    time.Now,
	}
}

// AllowCommit records a commit attempt of sessionID.
func (l *CommitLimiter) AllowCommit(ctx context.Context, sessionID string) (CommitAllowance, error) {
	const op = "redisrepo.CommitLimiter.AllowCommit"

	res, err := l.script.Run(ctx, l.rdb,
		[]string{KeyRateLimit("commit", sessionID)},
		l.now().UnixMilli(), l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Result()
	if err != nil {
		return CommitAllowance{}, fmt.Errorf("%s:%w", op, err)
	}

	a, err := parseAllowance(res)
	if err != nil {
		return CommitAllowance{}, fmt.Errorf("%s:%w", op, err)
	}

	return a, nil
}

func parseAllowance(res any) (CommitAllowance, error) {
	arr, ok := res.([]any)
	if !ok || len(arr) != 3 {
		return CommitAllowance{}, fmt.Errorf("unexpected script reply %v", res)
	}

	var n [3]int64
	for i, v := range arr {
		x, err := scriptInt(v)
		if err != nil {
			return CommitAllowance{}, err
		}
		n[i] = x
	}

	return CommitAllowance{
		Allowed:    n[0] == 1,
		Attempts:   n[1],
		RetryAfter: time.Duration(n[2]) * time.Millisecond,
	}, nil
}

// scriptInt reads a Lua number as go-redis decodes it.
func scriptInt(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected script value %T", v)
	}
}
