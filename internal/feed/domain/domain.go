package domain

import (
	"errors"

	ndomain "github.com/corvusHold/notify/internal/notify/domain"
)

var (
	// ErrFeedUnavailable is surfaced when a subscription fails. The cached
	// list is kept.
	ErrFeedUnavailable = errors.New("unable to load notifications")
	// ErrNotConnected is returned by operations that need a live subscription.
	ErrNotConnected = errors.New("feed store is not connected")
)

// Repository is what the feed needs from storage: reads, read-marking and
// push subscriptions.
type Repository interface {
	ndomain.FeedRepository
	ndomain.FeedWatcher
}

// View is the observable state of a connected feed.
type View struct {
	Items     []ndomain.RecipientNotification
	Unread    int
	Err       error
	Connected bool
}
