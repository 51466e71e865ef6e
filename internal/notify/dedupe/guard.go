// Package dedupe suppresses repeated emissions of the same logical event
// within a short window.
//
// MemoryGuard is process-local and best-effort: two instances of the service
// do not see each other's emissions. RedisGuard shares the window across
// instances through a single conditional write per key.
package dedupe

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the suppression window applied when none is configured.
const DefaultWindow = 15 * time.Second

// Guard decides whether an emission identified by scopeKey must be skipped.
// Implementations never fail: on internal errors they let the emission through.
type Guard interface {
	ShouldSkip(ctx context.Context, scopeKey string) bool
}

// MemoryGuard keeps the last accepted time per scope key.
type MemoryGuard struct {
	window time.Duration
	nowFn  func() time.Time

	mu        sync.Mutex
	accepted  map[string]time.Time
	lastSweep time.Time
}

// NewMemory returns a MemoryGuard using window (DefaultWindow when <= 0).
func NewMemory(window time.Duration) *MemoryGuard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryGuard{
		window:   window,
		nowFn:    time.Now,
		accepted: make(map[string]time.Time),
	}
}

// WithClock replaces the time source; used by tests.
func (g *MemoryGuard) WithClock(now func() time.Time) *MemoryGuard {
	g.nowFn = now
	return g
}

// Window returns the configured suppression window.
func (g *MemoryGuard) Window() time.Duration { return g.window }

// ShouldSkip reports true when scopeKey was accepted less than one window ago.
// A skipped call does not extend the window.
func (g *MemoryGuard) ShouldSkip(_ context.Context, scopeKey string) bool {
	now := g.nowFn()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(now)
	if last, ok := g.accepted[scopeKey]; ok && now.Sub(last) < g.window {
		return true
	}
	g.accepted[scopeKey] = now
	return false
}

// Len returns the number of tracked keys.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.accepted)
}

// sweepLocked drops expired keys at most once per window.
func (g *MemoryGuard) sweepLocked(now time.Time) {
	if now.Sub(g.lastSweep) < g.window {
		return
	}
	for k, t := range g.accepted {
		if now.Sub(t) >= g.window {
			delete(g.accepted, k)
		}
	}
	g.lastSweep = now
}
