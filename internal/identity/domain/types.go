package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIdentityUnavailable is returned when no authenticated session exists
	// (or none was established before the wait timed out).
	ErrIdentityUnavailable = errors.New("no authenticated session")
	// ErrTenantContextMissing is returned when the session carries no client or
	// condominium scope.
	ErrTenantContextMissing = errors.New("tenant context missing")
)

// Tenant scopes all data: a client (property-management company) and one of
// its condominiums.
type Tenant struct {
	ClientID      string `json:"client_id"`
	CondominiumID string `json:"condominium_id"`
}

// Valid reports whether both scope identifiers are present and usable in
// keys and paths.
func (t Tenant) Valid() bool {
	return ValidID(t.ClientID) && ValidID(t.CondominiumID)
}

// ValidID reports whether id is non-blank and free of the separators used by
// scope keys, dedupe keys and feed paths.
func ValidID(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.ContainsAny(id, "/:")
}

// Key is the compact scope key, e.g. "c1/cond9". Valid tenants never collide.
func (t Tenant) Key() string { return t.ClientID + "/" + t.CondominiumID }

// Path is the hierarchical store prefix for this scope.
func (t Tenant) Path() string {
	return fmt.Sprintf("clients/%s/condominiums/%s", t.ClientID, t.CondominiumID)
}

// Identity is the acting user behind a request or session.
type Identity struct {
	UserID      string
	DisplayName string
	Role        string
	Tenant      Tenant
}

// Provider resolves the acting identity, waiting for a session to be
// established when necessary.
type Provider interface {
	Await(ctx context.Context) (Identity, error)
}

// Directory roles.
const (
	RoleAdmin          = "admin"
	RoleAdminAssistant = "admin-assistant"
	RoleStaff          = "staff"
	RoleResident       = "resident"
)

// KnownRole reports whether r is one of the directory roles.
func KnownRole(r string) bool {
	switch r {
	case RoleAdmin, RoleAdminAssistant, RoleStaff, RoleResident:
		return true
	}
	return false
}
