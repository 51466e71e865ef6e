package domain

import (
	"context"
	"errors"
	"time"

	idomain "github.com/corvusHold/notify/internal/identity/domain"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrMemberExists   = errors.New("member already exists")
	ErrInvalidRole    = errors.New("invalid role")
	ErrUserIDRequired = errors.New("user id is required")
	ErrInvalidUserID  = errors.New("user id must not contain '/' or ':'")
)

// Member is a user of one condominium together with its directory role.
type Member struct {
	Tenant      idomain.Tenant
	UserID      string
	DisplayName string
	Email       string
	Role        string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListOptions for member listing
type ListOptions struct {
	Query    string
	Role     string
	Active   int // -1 any, 1 active, 0 inactive
	Page     int
	PageSize int
}

// ListResult holds items and pagination metadata
type ListResult struct {
	Items      []Member
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// Repository abstracts persistence for directory members.
type Repository interface {
	Create(ctx context.Context, m Member) error
	Get(ctx context.Context, tenant idomain.Tenant, userID string) (Member, error)
	Deactivate(ctx context.Context, tenant idomain.Tenant, userID string) error
	List(ctx context.Context, tenant idomain.Tenant, query, role string, active int, limit, offset int32) ([]Member, int64, error)
	// ListIDsByRoles returns ids of active members holding any of roles.
	ListIDsByRoles(ctx context.Context, tenant idomain.Tenant, roles []string) ([]string, error)
}

// Service encapsulates business logic for the directory.
type Service interface {
	Create(ctx context.Context, tenant idomain.Tenant, userID, displayName, email, role string) (Member, error)
	Get(ctx context.Context, tenant idomain.Tenant, userID string) (Member, error)
	Deactivate(ctx context.Context, tenant idomain.Tenant, userID string) error
	List(ctx context.Context, tenant idomain.Tenant, opts ListOptions) (ListResult, error)
	ListIDsByRoles(ctx context.Context, tenant idomain.Tenant, roles []string) ([]string, error)
}
