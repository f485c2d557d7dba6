package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// windowScript trims the sorted set to the window, then admits the request
// when the remaining count is below the limit.
//
// KEYS[1] key, ARGV: cutoff ms, now ms, limit, member, window ms.
var windowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1`)

// Redis is a sliding-window limiter shared by every replica using the same
// redis. Each key is a sorted set of request timestamps.
type Redis struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedis allows limit requests per key within window across processes.
func NewRedis(client redis.UniversalClient, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: "fleetcompliance:ratelimit:",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now()
	allowed, err := windowScript.Run(ctx, r.client, []string{r.prefix + key},
		now.Add(-r.window).UnixMilli(),
		now.UnixMilli(),
		r.limit,
		uuid.NewString(),
		r.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return allowed == 1, nil
}
