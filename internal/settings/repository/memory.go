package repository

import (
	"context"
	"sync"
)

// Memory keeps settings in process for NOTIFY_STORE=memory and tests.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]string
}

func NewMemory() *Memory { return &Memory{rows: map[string]string{}} }

func rowKey(key string, tenantKey *string) string {
	if tenantKey == nil {
		return "\x00" + key
	}
	return *tenantKey + "\x00" + key
}

func (r *Memory) Get(_ context.Context, key string, tenantKey *string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tenantKey != nil {
		if v, ok := r.rows[rowKey(key, tenantKey)]; ok {
			return v, true, nil
		}
	}
	v, ok := r.rows[rowKey(key, nil)]
	return v, ok, nil
}

func (r *Memory) Upsert(_ context.Context, key string, tenantKey *string, value string, _ bool) error {
	r.mu.Lock()
	r.rows[rowKey(key, tenantKey)] = value
	r.mu.Unlock()
	return nil
}
