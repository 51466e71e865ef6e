package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	metrics "github.com/corvusHold/notify/internal/metrics"
)

// Policy defines a fixed-window rate limit: Limit requests within Window per key.
type Policy struct {
	// Name identifies the limited endpoint in logs and metrics (e.g. "notify:emit").
	Name   string
	Window time.Duration
	Limit  int
	// Optional per-request overrides, used for tenant settings.
	WindowFunc func(echo.Context) time.Duration
	LimitFunc  func(echo.Context) int
	// Key builds the bucket key for this request.
	Key func(echo.Context) string
}

// Store is a shared counter store for fixed-window limiting.
type Store interface {
	// Allow increments the counter for key and reports whether the request fits.
	// When it does not, retryAfterSec is the time left in the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfterSec int, err error)
}

// memoryStore is a process-local Store.
type memoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	start time.Time
	count int
}

// NewMemoryStore returns a process-local Store. Multi-instance deployments
// should use NewRedisStore.
func NewMemoryStore() Store {
	return &memoryStore{buckets: make(map[string]*bucket), now: time.Now}
}

func (s *memoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok || now.Sub(b.start) >= window {
		s.buckets[key] = &bucket{start: now, count: 1}
		return true, 0, nil
	}
	if b.count < limit {
		b.count++
		return true, 0, nil
	}
	left := window - now.Sub(b.start)
	return false, int((left + time.Second - 1) / time.Second), nil
}

// Middleware enforces p with a process-local store.
func Middleware(p Policy) echo.MiddlewareFunc {
	return MiddlewareWithStore(p, NewMemoryStore())
}

// MiddlewareWithStore enforces p against a shared Store. Store errors fail open.
func MiddlewareWithStore(p Policy, s Store) echo.MiddlewareFunc {
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	if p.Limit <= 0 {
		p.Limit = 60
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "global"
			if p.Key != nil {
				key = p.Key(c)
			}
			win := p.Window
			lim := p.Limit
			if p.WindowFunc != nil {
				if w := p.WindowFunc(c); w > 0 {
					win = w
				}
			}
			if p.LimitFunc != nil {
				if l := p.LimitFunc(c); l > 0 {
					lim = l
				}
			}
			allowed, retryAfter, err := s.Allow(c.Request().Context(), key, lim, win)
			if err != nil || allowed {
				return next(c)
			}
			src := "ip"
			if strings.Contains(key, ":ten:") {
				src = "tenant"
			}
			metrics.IncRateLimitExceeded(p.Name, src)
			c.Logger().Warnf("rate limit exceeded: endpoint=%s key=%s limit=%d window=%s retry_after=%ds", p.Name, key, lim, win.String(), retryAfter)
			if retryAfter > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
			}
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
	}
}

// KeyTenantOrIP keys buckets by the tenant tenantOf extracts, falling back to
// the request's real IP. Prefix separates endpoints.
func KeyTenantOrIP(prefix string, tenantOf func(echo.Context) string) func(echo.Context) string {
	return func(c echo.Context) string {
		ten := ""
		if tenantOf != nil {
			ten = tenantOf(c)
		}
		if ten == "" {
			return prefix + ":ip:" + c.RealIP()
		}
		return prefix + ":ten:" + ten
	}
}
