package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// LiveFeed reads and writes feeds in Postgres and serves push subscriptions
// from Redis change signals.
type LiveFeed struct {
	*Postgres
	*RedisFeed
}

// NewLiveFeed wires Postgres commits to Redis change signals and Redis
// subscriptions back to Postgres snapshot reads.
func NewLiveFeed(pool *pgxpool.Pool, rc *redis.Client) LiveFeed {
	pg := NewPostgres(pool)
	rf := NewRedisFeed(rc, pg)
	pg.WithNotifier(rf)
	return LiveFeed{Postgres: pg, RedisFeed: rf}
}
