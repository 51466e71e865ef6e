package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/corvusHold/notify/internal/notify/domain"
)

// ErrSubscriptionClosed is delivered when the change stream ends unexpectedly.
var ErrSubscriptionClosed = errors.New("feed change stream closed")

// FeedReader loads the current result set of a feed.
type FeedReader interface {
	ListRecent(ctx context.Context, ref domain.FeedRef, limit int) ([]domain.RecipientNotification, error)
}

// channelName is the pub/sub channel carrying change signals for one feed.
func channelName(prefix string, ref domain.FeedRef) string { return prefix + ref.Path() }

// RedisFeed publishes feed change signals and turns them into snapshot
// subscriptions. Payloads carry no data; every signal triggers a re-read.
type RedisFeed struct {
	rc     *redis.Client
	reader FeedReader
	prefix string
	log    zerolog.Logger
}

func NewRedisFeed(rc *redis.Client, reader FeedReader) *RedisFeed {
	return &RedisFeed{rc: rc, reader: reader, prefix: "notify:feed:", log: zerolog.Nop()}
}

func (f *RedisFeed) SetLogger(l zerolog.Logger) { f.log = l }

// FeedChanged implements Notifier. Publish failures are logged only; the
// write they follow is already committed.
func (f *RedisFeed) FeedChanged(ctx context.Context, ref domain.FeedRef) {
	if err := f.rc.Publish(ctx, channelName(f.prefix, ref), "changed").Err(); err != nil {
		f.log.Warn().Err(err).Str("feed", ref.Path()).Msg("feed change publish failed")
	}
}

// Watch implements domain.FeedWatcher.
func (f *RedisFeed) Watch(ctx context.Context, ref domain.FeedRef, limit int) (<-chan domain.Snapshot, error) {
	sub := f.rc.Subscribe(ctx, channelName(f.prefix, ref))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan domain.Snapshot, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		f.deliver(ctx, out, ref, limit)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					offer(out, domain.Snapshot{Err: ErrSubscriptionClosed})
					return
				}
				f.deliver(ctx, out, ref, limit)
			}
		}
	}()
	return out, nil
}

func (f *RedisFeed) deliver(ctx context.Context, out chan domain.Snapshot, ref domain.FeedRef, limit int) {
	items, err := f.reader.ListRecent(ctx, ref, limit)
	if err != nil && ctx.Err() != nil {
		return
	}
	offer(out, domain.Snapshot{Items: items, Err: err})
}
