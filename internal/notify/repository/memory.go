package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/corvusHold/notify/internal/notify/domain"
)

// Memory is an in-process store implementing every notify port. It backs
// NOTIFY_STORE=memory and the package tests.
type Memory struct {
	mu     sync.Mutex
	seq    int64
	events map[string]domain.EventRecord
	queues map[string]domain.QueueRecord
	feeds  map[string][]*memEntry // by FeedRef.Path()
	byID   map[string]*memEntry
	subs   map[string]map[*memSub]struct{}
}

type memEntry struct {
	seq int64
	n   domain.RecipientNotification
}

type memSub struct {
	ref   domain.FeedRef
	limit int
	ch    chan domain.Snapshot
}

func NewMemory() *Memory {
	return &Memory{
		events: map[string]domain.EventRecord{},
		queues: map[string]domain.QueueRecord{},
		feeds:  map[string][]*memEntry{},
		byID:   map[string]*memEntry{},
		subs:   map[string]map[*memSub]struct{}{},
	}
}

func (m *Memory) CreateEvent(_ context.Context, rec domain.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[rec.ID]; ok {
		return fmt.Errorf("event %s already exists", rec.ID)
	}
	m.events[rec.ID] = rec
	return nil
}

func (m *Memory) CreateQueue(_ context.Context, rec domain.QueueRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[rec.ID]; ok {
		return fmt.Errorf("queue record %s already exists", rec.ID)
	}
	m.queues[rec.ID] = rec
	return nil
}

func (m *Memory) WriteBatch(_ context.Context, items []domain.RecipientNotification) error {
	if len(items) > domain.MaxBatchOps {
		return domain.ErrBatchTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range items {
		if _, ok := m.byID[n.ID]; ok {
			return fmt.Errorf("notification %s already exists", n.ID)
		}
	}
	touched := map[string]domain.FeedRef{}
	for _, n := range items {
		m.seq++
		e := &memEntry{seq: m.seq, n: n}
		path := n.Ref().Path()
		m.feeds[path] = append(m.feeds[path], e)
		m.byID[n.ID] = e
		touched[path] = n.Ref()
	}
	for path := range touched {
		m.publishLocked(path)
	}
	return nil
}

func (m *Memory) ListRecent(_ context.Context, ref domain.FeedRef, limit int) ([]domain.RecipientNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(ref.Path(), limit), nil
}

func (m *Memory) CountUnread(_ context.Context, ref domain.FeedRef) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.feeds[ref.Path()] {
		if !e.n.Read {
			n++
		}
	}
	return n, nil
}

func (m *Memory) MarkRead(_ context.Context, ref domain.FeedRef, ids []string, at time.Time) (int, error) {
	if len(ids) > domain.MaxBatchOps {
		return 0, domain.ErrBatchTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := ref.Path()
	changed := 0
	for _, id := range ids {
		e, ok := m.byID[id]
		if !ok || e.n.Ref().Path() != path {
			continue
		}
		if e.n.MarkRead(at) {
			changed++
		}
	}
	if changed > 0 {
		m.publishLocked(path)
	}
	return changed, nil
}

// Watch implements domain.FeedWatcher. Snapshots coalesce: a slow reader only
// sees the latest one.
func (m *Memory) Watch(ctx context.Context, ref domain.FeedRef, limit int) (<-chan domain.Snapshot, error) {
	sub := &memSub{ref: ref, limit: limit, ch: make(chan domain.Snapshot, 1)}
	path := ref.Path()

	m.mu.Lock()
	if m.subs[path] == nil {
		m.subs[path] = map[*memSub]struct{}{}
	}
	m.subs[path][sub] = struct{}{}
	offer(sub.ch, domain.Snapshot{Items: m.listLocked(path, limit)})
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[path], sub)
		if len(m.subs[path]) == 0 {
			delete(m.subs, path)
		}
		close(sub.ch)
		m.mu.Unlock()
	}()
	return sub.ch, nil
}

// Events returns a copy of all stored event records.
func (m *Memory) Events() []domain.EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventRecord, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Queues returns a copy of all stored queue records.
func (m *Memory) Queues() []domain.QueueRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.QueueRecord, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Subscribers reports live watchers of ref.
func (m *Memory) Subscribers(ref domain.FeedRef) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[ref.Path()])
}

func (m *Memory) listLocked(path string, limit int) []domain.RecipientNotification {
	entries := make([]*memEntry, len(m.feeds[path]))
	copy(entries, m.feeds[path])
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.n.CreatedAt.Equal(b.n.CreatedAt) {
			return a.n.CreatedAt.After(b.n.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.RecipientNotification, len(entries))
	for i, e := range entries {
		out[i] = cloneNotification(e.n)
	}
	return out
}

func (m *Memory) publishLocked(path string) {
	for sub := range m.subs[path] {
		offer(sub.ch, domain.Snapshot{Items: m.listLocked(path, sub.limit)})
	}
}

// offer replaces any undelivered snapshot with s. Callers are the only senders.
func offer(ch chan domain.Snapshot, s domain.Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- s
}

func cloneNotification(n domain.RecipientNotification) domain.RecipientNotification {
	if n.ReadAt != nil {
		t := *n.ReadAt
		n.ReadAt = &t
	}
	if n.Metadata != nil {
		md := make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			md[k] = v
		}
		n.Metadata = md
	}
	return n
}
