package domain

import (
	"context"
	"time"
)

// MaxBatchOps is the most writes a store accepts in one atomic batch.
const MaxBatchOps = 500

// DefaultChunkSize is how many notifications are committed per fan-out batch.
const DefaultChunkSize = 400

// EventRepository persists EventRecords.
type EventRepository interface {
	CreateEvent(ctx context.Context, rec EventRecord) error
}

// QueueRepository persists QueueRecords.
type QueueRepository interface {
	CreateQueue(ctx context.Context, rec QueueRecord) error
}

// FeedRepository stores recipient feeds.
type FeedRepository interface {
	// WriteBatch commits all notifications atomically; len(items) <= MaxBatchOps.
	WriteBatch(ctx context.Context, items []RecipientNotification) error
	// ListRecent returns the newest notifications of a feed, newest first.
	ListRecent(ctx context.Context, ref FeedRef, limit int) ([]RecipientNotification, error)
	// CountUnread counts unread notifications in a feed.
	CountUnread(ctx context.Context, ref FeedRef) (int, error)
	// MarkRead atomically sets read=true, read_at=at on the unread subset of ids
	// and returns how many changed; len(ids) <= MaxBatchOps.
	MarkRead(ctx context.Context, ref FeedRef, ids []string, at time.Time) (int, error)
}

// Snapshot is one full delivery of a feed subscription.
type Snapshot struct {
	Items []RecipientNotification
	Err   error
}

// FeedWatcher opens push subscriptions. The returned channel delivers the
// current result set first and again after every change; it is closed once
// ctx is done.
type FeedWatcher interface {
	Watch(ctx context.Context, ref FeedRef, limit int) (<-chan Snapshot, error)
}

// Directory answers role queries against a tenant's user directory.
type Directory interface {
	ListIDsByRoles(ctx context.Context, tenant TenantContext, roles []string) ([]string, error)
}

// Handoff passes pending_dispatch records to the server-side consumer.
type Handoff interface {
	Publish(ctx context.Context, rec EventRecord) error
}
