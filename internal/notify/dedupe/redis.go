package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisGuard implements Guard with SET NX PX: the key is written only when no
// emission was accepted within the window, and expires with it.
type RedisGuard struct {
	rc     *redis.Client
	prefix string
	window time.Duration
	log    zerolog.Logger
}

// NewRedis creates a Redis-backed guard. keyPrefix defaults to "notify:dedupe:".
func NewRedis(rc *redis.Client, keyPrefix string, window time.Duration) *RedisGuard {
	if keyPrefix == "" {
		keyPrefix = "notify:dedupe:"
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisGuard{rc: rc, prefix: keyPrefix, window: window, log: zerolog.Nop()}
}

// SetLogger injects a logger for store errors.
func (g *RedisGuard) SetLogger(l zerolog.Logger) { g.log = l }

// ShouldSkip fails open: a Redis error lets the emission proceed.
func (g *RedisGuard) ShouldSkip(ctx context.Context, scopeKey string) bool {
	ok, err := g.rc.SetNX(ctx, g.prefix+scopeKey, time.Now().UnixMilli(), g.window).Result()
	if err != nil {
		g.log.Warn().Err(err).Str("scope_key", scopeKey).Msg("dedupe: redis unavailable, not suppressing")
		return false
	}
	return !ok
}
