package domain

import (
	"errors"

	idomain "github.com/corvusHold/notify/internal/identity/domain"
)

var (
	// ErrUnknownEventType is returned for event types absent from the catalog.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrInvalidAudience is returned when an audience scope cannot be parsed.
	ErrInvalidAudience = errors.New("invalid audience scope")
	// ErrBatchTooLarge is returned by stores when a batch exceeds MaxBatchOps.
	ErrBatchTooLarge = errors.New("batch exceeds store operation limit")
	// ErrNotificationNotFound is returned when a feed document does not exist.
	ErrNotificationNotFound = errors.New("notification not found")

	// Identity errors, re-exported so producers need not import identity.
	ErrIdentityUnavailable  = idomain.ErrIdentityUnavailable
	ErrTenantContextMissing = idomain.ErrTenantContextMissing
)
