package domain

import (
	"context"
	"time"
)

// Service provides typed access to application/tenant settings with override.
// A nil tenantKey reads the global value only.
type Service interface {
	GetString(ctx context.Context, key string, tenantKey *string, def string) (string, error)
	GetDuration(ctx context.Context, key string, tenantKey *string, def time.Duration) (time.Duration, error)
	GetInt(ctx context.Context, key string, tenantKey *string, def int) (int, error)
}

// Repository abstracts storage of app settings.
type Repository interface {
	// Get returns (value, found, err) for an exact key and optional tenant,
	// falling back to the global row.
	Get(ctx context.Context, key string, tenantKey *string) (string, bool, error)
	// Upsert stores a key for an optional tenant.
	Upsert(ctx context.Context, key string, tenantKey *string, value string, secret bool) error
}

// Notify keys. All support tenant overrides; windows use Go duration strings.
const (
	KeyRLEmitLimit  = "notify.ratelimit.emit.limit"
	KeyRLEmitWindow = "notify.ratelimit.emit.window"
	KeyFeedLimit    = "notify.feed.limit"
)

// Settings API rate limiting keys.
const (
	// GET /api/v1/settings
	KeyRLSettingsGetLimit  = "settings.ratelimit.get.limit"
	KeyRLSettingsGetWindow = "settings.ratelimit.get.window"
	// PUT /api/v1/settings
	KeyRLSettingsPutLimit  = "settings.ratelimit.put.limit"
	KeyRLSettingsPutWindow = "settings.ratelimit.put.window"
)
