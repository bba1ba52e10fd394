package fork

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackstop is a cross-process backstop on top of the in-process
// semaphore in Manager: it bounds the total number of active forks across
// every instance of this service sharing one Redis, using an atomic
// Lua script the same way the teacher's token-bucket limiter does.
// A nil *RedisBackstop (no Redis configured) always allows.
type RedisBackstop struct {
	redis  *redis.Client
	cap    int64
	ttl    time.Duration
	script *redis.Script
}

// NewRedisBackstop builds a backstop bounding the given cap. ttl bounds how
// long a slot is held if a process dies without releasing (crash recovery).
func NewRedisBackstop(rdb *redis.Client, cap int64, ttl time.Duration) *RedisBackstop {
	if rdb == nil || cap <= 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisBackstop{redis: rdb, cap: cap, ttl: ttl, script: redis.NewScript(luaTryAcquireScript)}
}

const luaTryAcquireScript = `
local key = KEYS[1]
local member = ARGV[1]
local cap = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - ttl)

local count = redis.call("ZCARD", key)
if count >= cap then
  return 0
end

redis.call("ZADD", key, now, member)
redis.call("EXPIRE", key, math.ceil(ttl))
return 1
`

const redisBackstopKey = "fork:active_members"

// TryAcquire attempts to reserve one cross-process fork slot for forkID.
// It fails open (returns true) on Redis errors: the in-process semaphore in
// Manager is the authoritative bound, this is only a backstop against
// multiple replicas jointly overrunning the primary store's capacity.
func (b *RedisBackstop) TryAcquire(ctx context.Context, forkID string) bool {
	if b == nil {
		return true
	}
	now := float64(time.Now().UnixNano()) / 1e9
	res, err := b.script.Run(ctx, b.redis, []string{redisBackstopKey}, forkID, b.cap, now, b.ttl.Seconds()).Result()
	if err != nil {
		slog.Error("redis fork backstop script error", slog.String("fork_id", forkID), slog.Any("error", err))
		return true
	}
	allowed, ok := res.(int64)
	return !ok || allowed == 1
}

// Release frees forkID's cross-process slot. A no-op if never acquired.
func (b *RedisBackstop) Release(ctx context.Context, forkID string) {
	if b == nil {
		return
	}
	if err := b.redis.ZRem(ctx, redisBackstopKey, forkID).Err(); err != nil {
		slog.Warn("redis fork backstop release failed", slog.String("fork_id", forkID), slog.Any("error", err))
	}
}
