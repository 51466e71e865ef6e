package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/corvusHold/notify/internal/config"
	ddomain "github.com/corvusHold/notify/internal/directory/domain"
	drepo "github.com/corvusHold/notify/internal/directory/repository"
	fdomain "github.com/corvusHold/notify/internal/feed/domain"
	"github.com/corvusHold/notify/internal/notify/dedupe"
	ndomain "github.com/corvusHold/notify/internal/notify/domain"
	"github.com/corvusHold/notify/internal/notify/handoff"
	nrepo "github.com/corvusHold/notify/internal/notify/repository"
	rl "github.com/corvusHold/notify/internal/platform/ratelimit"
	rdomain "github.com/corvusHold/notify/internal/reporting/domain"
	rsvc "github.com/corvusHold/notify/internal/reporting/service"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
	srepo "github.com/corvusHold/notify/internal/settings/repository"
)

// backends holds the storage-facing dependencies selected by configuration.
type backends struct {
	pool      *pgxpool.Pool // nil with NOTIFY_STORE=memory
	redis     *redis.Client
	store     ndomain.Store
	feed      fdomain.Repository
	directory ddomain.Repository
	settings  sdomain.Repository
	guard     dedupe.Guard
	rlStore   rl.Store
	reporter  rdomain.Reporter
	handoff   *handoff.Producer // nil unless server mode with brokers
}

func (b *backends) Close() {
	if b.handoff != nil {
		_ = b.handoff.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func openBackends(ctx context.Context, cfg config.Config, log zerolog.Logger) (*backends, error) {
	b := &backends{}
	b.redis = redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	logReporter := rsvc.NewLogger(log)
	switch cfg.Store {
	case config.StoreMemory:
		mem := nrepo.NewMemory()
		b.store = mem
		b.feed = mem
		b.directory = drepo.NewMemory()
		b.settings = srepo.NewMemory()
		b.rlStore = rl.NewMemoryStore()
		b.reporter = logReporter
		log.Warn().Msg("NOTIFY_STORE=memory: data is lost on restart")
	default:
		pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		b.pool, err = pgxpool.NewWithConfig(ctx, pgCfg)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("create pg pool: %w", err)
		}
		live := nrepo.NewLiveFeed(b.pool, b.redis)
		live.SetLogger(log)
		b.store = live
		b.feed = live
		b.directory = drepo.New(b.pool)
		b.settings = srepo.New(b.pool)
		b.rlStore = rl.NewRedisStore(b.redis)
		b.reporter = rsvc.Multi{logReporter, rsvc.NewLedger(b.pool)}
	}

	switch cfg.DedupeBackend {
	case config.DedupeRedis:
		g := dedupe.NewRedis(b.redis, "notify:dedupe:", cfg.DedupeWindow)
		g.SetLogger(log)
		b.guard = g
	default:
		b.guard = dedupe.NewMemory(cfg.DedupeWindow)
	}

	if cfg.ServerDispatch() {
		if len(cfg.KafkaBrokers) == 0 {
			log.Warn().Msg("server dispatch mode without KAFKA_BROKERS: pending events are only persisted")
		} else {
			b.handoff = handoff.NewProducer(handoff.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaHandoffTopic})
			log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", b.handoff.Topic()).Msg("kafka hand-off enabled")
		}
	}
	return b, nil
}
