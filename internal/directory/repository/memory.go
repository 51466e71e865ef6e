package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/corvusHold/notify/internal/directory/domain"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
)

// Memory is an in-process directory used with NOTIFY_STORE=memory and tests.
type Memory struct {
	mu      sync.RWMutex
	members map[string]domain.Member // by tenant key + "/" + user id
}

func NewMemory() *Memory { return &Memory{members: map[string]domain.Member{}} }

func memberKey(t idomain.Tenant, uid string) string { return t.Key() + "/" + uid }

func (r *Memory) Create(_ context.Context, m domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memberKey(m.Tenant, m.UserID)
	if _, ok := r.members[k]; ok {
		return domain.ErrMemberExists
	}
	now := time.Now()
	m.Active = true
	m.CreatedAt, m.UpdatedAt = now, now
	r.members[k] = m
	return nil
}

func (r *Memory) Get(_ context.Context, tenant idomain.Tenant, userID string) (domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberKey(tenant, userID)]
	if !ok {
		return domain.Member{}, domain.ErrMemberNotFound
	}
	return m, nil
}

func (r *Memory) Deactivate(_ context.Context, tenant idomain.Tenant, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memberKey(tenant, userID)
	m, ok := r.members[k]
	if !ok {
		return domain.ErrMemberNotFound
	}
	m.Active = false
	m.UpdatedAt = time.Now()
	r.members[k] = m
	return nil
}

func (r *Memory) List(_ context.Context, tenant idomain.Tenant, query, role string, active int, limit, offset int32) ([]domain.Member, int64, error) {
	r.mu.RLock()
	var matched []domain.Member
	q := strings.ToLower(query)
	for _, m := range r.members {
		if m.Tenant != tenant {
			continue
		}
		if role != "" && m.Role != role {
			continue
		}
		if active != -1 && m.Active != (active == 1) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.DisplayName), q) &&
			!strings.Contains(strings.ToLower(m.Email), q) && m.UserID != query {
			continue
		}
		matched = append(matched, m)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].UserID < matched[j].UserID
	})
	total := int64(len(matched))
	start := int(offset)
	if start > len(matched) {
		start = len(matched)
	}
	end := start + int(limit)
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *Memory) ListIDsByRoles(_ context.Context, tenant idomain.Tenant, roles []string) ([]string, error) {
	want := map[string]bool{}
	for _, role := range roles {
		want[role] = true
	}
	r.mu.RLock()
	var ids []string
	for _, m := range r.members {
		if m.Tenant == tenant && m.Active && want[m.Role] {
			ids = append(ids, m.UserID)
		}
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}
