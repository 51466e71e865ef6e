package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	fdomain "github.com/corvusHold/notify/internal/feed/domain"
	metrics "github.com/corvusHold/notify/internal/metrics"
	ndomain "github.com/corvusHold/notify/internal/notify/domain"
	rdomain "github.com/corvusHold/notify/internal/reporting/domain"
)

// Subscription is the live handle of a connected feed. Close releases it and
// waits for its delivery goroutine to exit.
type Subscription struct {
	ref    ndomain.FeedRef
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Ref() ndomain.FeedRef { return s.ref }

// Done is closed once the subscription stops delivering.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

func (s *Subscription) live() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Store keeps the recent notifications of one recipient feed in sync with
// storage. At most one subscription is live per Store.
type Store struct {
	repo     fdomain.Repository
	limit    int
	chunk    int
	now      func() time.Time
	log      zerolog.Logger
	reporter rdomain.Reporter

	// connMu serialises Connect and Disconnect.
	connMu sync.Mutex

	mu      sync.Mutex
	sub     *Subscription
	items   []ndomain.RecipientNotification
	err     error
	changes chan struct{}
}

// NewStore returns a disconnected Store delivering the newest limit
// notifications (100 when limit <= 0).
func NewStore(repo fdomain.Repository, limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{
		repo:    repo,
		limit:   limit,
		chunk:   ndomain.MaxBatchOps,
		now:     time.Now,
		log:     zerolog.Nop(),
		changes: make(chan struct{}, 1),
	}
}

func (s *Store) SetLogger(l zerolog.Logger)     { s.log = l }
func (s *Store) SetReporter(r rdomain.Reporter) { s.reporter = r }
func (s *Store) SetClock(now func() time.Time)  { s.now = now }

// Connect subscribes to ref. Connecting to the feed already subscribed returns
// the live subscription; a different feed, or a subscription that has stopped,
// is replaced.
func (s *Store) Connect(ctx context.Context, ref ndomain.FeedRef) (*Subscription, error) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.mu.Lock()
	old := s.sub
	if old != nil && old.ref.Path() == ref.Path() && old.live() {
		s.mu.Unlock()
		return old, nil
	}
	s.sub = nil
	s.items = nil
	s.err = nil
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ch, err := s.repo.Watch(subCtx, ref, s.limit)
	if err != nil {
		cancel()
		s.fail(ctx, ref, err)
		s.signal()
		return nil, fmt.Errorf("%w: %v", fdomain.ErrFeedUnavailable, err)
	}
	sub := &Subscription{ref: ref, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	metrics.FeedSubscribed()

	go func() {
		defer close(sub.done)
		defer metrics.FeedUnsubscribed()
		for snap := range ch {
			s.apply(subCtx, sub, snap)
		}
		// The stream ended, either closed through the handle or by the
		// repository. The cached list and error stay visible.
		s.mu.Lock()
		ended := s.sub == sub
		if ended {
			s.sub = nil
		}
		s.mu.Unlock()
		if ended {
			s.signal()
		}
	}()
	return sub, nil
}

func (s *Store) apply(ctx context.Context, sub *Subscription, snap ndomain.Snapshot) {
	s.mu.Lock()
	if s.sub != sub {
		s.mu.Unlock()
		return
	}
	if snap.Err != nil {
		s.err = fdomain.ErrFeedUnavailable
	} else {
		s.items = snap.Items
		s.err = nil
	}
	s.mu.Unlock()
	if snap.Err != nil {
		s.fail(ctx, sub.ref, snap.Err)
	}
	s.signal()
}

func (s *Store) fail(ctx context.Context, ref ndomain.FeedRef, err error) {
	s.mu.Lock()
	s.err = fdomain.ErrFeedUnavailable
	s.mu.Unlock()
	metrics.IncFailure(string(rdomain.KindFeedSubscription))
	f := rdomain.Failure{
		Kind:          rdomain.KindFeedSubscription,
		Stage:         rdomain.StageFeed,
		ClientID:      ref.Tenant.ClientID,
		CondominiumID: ref.Tenant.CondominiumID,
		ChunkIndex:    -1,
		Recipients:    []string{ref.RecipientID},
		Err:           err,
		Time:          s.now(),
	}
	if s.reporter != nil {
		if rerr := s.reporter.Report(ctx, f); rerr == nil {
			return
		}
	}
	s.log.Error().Err(err).Str("feed", ref.Path()).Msg("feed subscription failed")
}

func (s *Store) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Disconnect releases the live subscription, if any, and clears the cache.
func (s *Store) Disconnect() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.mu.Lock()
	old := s.sub
	s.sub = nil
	s.items = nil
	s.err = nil
	s.mu.Unlock()
	if old != nil {
		old.Close()
		s.signal()
	}
}

// Changes signals after every state change. Signals coalesce.
func (s *Store) Changes() <-chan struct{} { return s.changes }

// View returns a copy of the current state.
func (s *Store) View() fdomain.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := fdomain.View{Err: s.err, Connected: s.sub != nil}
	v.Items = make([]ndomain.RecipientNotification, len(s.items))
	copy(v.Items, s.items)
	for _, n := range s.items {
		if !n.Read {
			v.Unread++
		}
	}
	return v
}

func (s *Store) current() (ndomain.FeedRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return ndomain.FeedRef{}, false
	}
	return s.sub.ref, true
}

// MarkAsRead marks one notification read. Already-read notifications keep
// their original read time.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	ref, ok := s.current()
	if !ok {
		return fdomain.ErrNotConnected
	}
	at := s.now()
	n, err := s.repo.MarkRead(ctx, ref, []string{id}, at)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	s.markCached(ref, []string{id}, at)
	metrics.AddMarkedRead(n)
	return nil
}

// MarkAllAsRead marks every unread notification of the cached list read,
// committing in atomic batches. It returns how many changed.
func (s *Store) MarkAllAsRead(ctx context.Context) (int, error) {
	ref, ok := s.current()
	if !ok {
		return 0, fdomain.ErrNotConnected
	}
	s.mu.Lock()
	var unread []string
	for _, n := range s.items {
		if !n.Read {
			unread = append(unread, n.ID)
		}
	}
	s.mu.Unlock()
	if len(unread) == 0 {
		return 0, nil
	}

	at := s.now()
	total := 0
	for i := 0; i < len(unread); i += s.chunk {
		end := i + s.chunk
		if end > len(unread) {
			end = len(unread)
		}
		n, err := s.repo.MarkRead(ctx, ref, unread[i:end], at)
		if err != nil {
			metrics.AddMarkedRead(total)
			return total, fmt.Errorf("mark all read: %w", err)
		}
		s.markCached(ref, unread[i:end], at)
		total += n
	}
	metrics.AddMarkedRead(total)
	return total, nil
}

func (s *Store) markCached(ref ndomain.FeedRef, ids []string, at time.Time) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	s.mu.Lock()
	if s.sub == nil || s.sub.ref.Path() != ref.Path() {
		s.mu.Unlock()
		return
	}
	items := make([]ndomain.RecipientNotification, len(s.items))
	copy(items, s.items)
	changed := false
	for i := range items {
		if _, ok := want[items[i].ID]; ok && items[i].MarkRead(at) {
			changed = true
		}
	}
	if changed {
		s.items = items
	}
	s.mu.Unlock()
	if changed {
		s.signal()
	}
}
