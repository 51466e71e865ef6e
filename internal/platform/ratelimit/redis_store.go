package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implements Store using Redis INCR/PEXPIRE and PTTL.
type redisStore struct{ rc *redis.Client }

// NewRedisStore creates a Store backed by the shared Redis client.
func NewRedisStore(rc *redis.Client) Store {
	return &redisStore{rc: rc}
}

var luaFixedWindow = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then redis.call('PEXPIRE', KEYS[1], ARGV[1]) end
local ttl = redis.call('PTTL', KEYS[1])
return {current, ttl}
`)

func (s *redisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	res, err := luaFixedWindow.Run(ctx, s.rc, []string{"rl:" + key}, window.Milliseconds()).Result()
	if err != nil {
		return false, 0, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return false, 0, nil
	}
	current := toInt64(arr[0])
	ttlms := toInt64(arr[1])
	if current <= int64(limit) {
		return true, 0, nil
	}
	if ttlms <= 0 {
		return false, 0, nil
	}
	// ceil(ttl/1000)
	return false, int((ttlms + 999) / 1000), nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		return 0
	}
}
