package service

import (
	"context"
	"sync"
	"time"

	"github.com/corvusHold/notify/internal/identity/domain"
)

// Session holds an identity that may be established after callers start
// waiting for it (e.g. while a login completes).
type Session struct {
	mu    sync.Mutex
	id    *domain.Identity
	ready chan struct{}
}

func NewSession() *Session { return &Session{ready: make(chan struct{})} }

// Established returns a session that already carries id.
func Established(id domain.Identity) *Session {
	s := NewSession()
	s.Set(id)
	return s
}

// Set establishes the identity and wakes every waiter.
func (s *Session) Set(id domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = &id
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
}

// Clear drops the identity; later Await calls block again.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = nil
	select {
	case <-s.ready:
		s.ready = make(chan struct{})
	default:
	}
}

// Current returns the identity without waiting.
func (s *Session) Current() (domain.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		return domain.Identity{}, false
	}
	return *s.id, true
}

// Await blocks until an identity is set or ctx is done.
func (s *Session) Await(ctx context.Context) (domain.Identity, error) {
	for {
		s.mu.Lock()
		if s.id != nil {
			id := *s.id
			s.mu.Unlock()
			return id, nil
		}
		ready := s.ready
		s.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return domain.Identity{}, domain.ErrIdentityUnavailable
		}
	}
}

type sessionKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session attached to ctx, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// ContextProvider implements domain.Provider over the session found in the
// context, falling back to Default. Waiting is bounded by Timeout.
type ContextProvider struct {
	Timeout time.Duration
	Default *Session
}

func NewContextProvider(timeout time.Duration) *ContextProvider {
	return &ContextProvider{Timeout: timeout}
}

func (p *ContextProvider) Await(ctx context.Context) (domain.Identity, error) {
	s, ok := SessionFrom(ctx)
	if !ok {
		s = p.Default
	}
	if s == nil {
		return domain.Identity{}, domain.ErrIdentityUnavailable
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	id, err := s.Await(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	if id.UserID == "" {
		return domain.Identity{}, domain.ErrIdentityUnavailable
	}
	if !id.Tenant.Valid() {
		return domain.Identity{}, domain.ErrTenantContextMissing
	}
	return id, nil
}
