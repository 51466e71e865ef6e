// Package audience turns an abstract audience into concrete recipient ids.
package audience

import (
	"context"
	"fmt"
	"strings"

	idomain "github.com/corvusHold/notify/internal/identity/domain"
	"github.com/corvusHold/notify/internal/notify/domain"
)

// Resolver queries the tenant directory for role-based audiences.
type Resolver struct {
	dir domain.Directory
}

func New(dir domain.Directory) *Resolver { return &Resolver{dir: dir} }

// Resolve returns a non-empty, duplicate-free list of recipient ids.
// Whenever the audience yields nobody, the result is exactly {fallback}.
func (r *Resolver) Resolve(ctx context.Context, tenant domain.TenantContext, fallback string, a domain.Audience) ([]string, error) {
	var ids []string
	switch v := a.(type) {
	case domain.SpecificUsers:
		ids = v.UserIDs
	case domain.Admins:
		found, err := r.dir.ListIDsByRoles(ctx, tenant, []string{idomain.RoleAdmin})
		if err != nil {
			return nil, fmt.Errorf("resolve admins: %w", err)
		}
		ids = found
	case domain.AdminsAndAssistants:
		found, err := r.dir.ListIDsByRoles(ctx, tenant, []string{idomain.RoleAdmin, idomain.RoleAdminAssistant})
		if err != nil {
			return nil, fmt.Errorf("resolve admins and assistants: %w", err)
		}
		ids = found
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrInvalidAudience, a)
	}
	out := Unique(ids)
	if len(out) == 0 {
		return []string{fallback}, nil
	}
	return out, nil
}

// Unique trims ids, drops blanks and removes duplicates keeping first-seen order.
func Unique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
