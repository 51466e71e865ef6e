package service

import (
	"context"
	"strings"

	domain "github.com/corvusHold/notify/internal/directory/domain"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
)

type service struct {
	repo domain.Repository
}

func New(repo domain.Repository) domain.Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, tenant idomain.Tenant, userID, displayName, email, role string) (domain.Member, error) {
	userID = strings.TrimSpace(userID)
	role = strings.ToLower(strings.TrimSpace(role))
	if userID == "" {
		return domain.Member{}, domain.ErrUserIDRequired
	}
	if !idomain.ValidID(userID) {
		return domain.Member{}, domain.ErrInvalidUserID
	}
	if !idomain.KnownRole(role) {
		return domain.Member{}, domain.ErrInvalidRole
	}
	m := domain.Member{
		Tenant:      tenant,
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Role:        role,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return domain.Member{}, err
	}
	return s.repo.Get(ctx, tenant, userID)
}

func (s *service) Get(ctx context.Context, tenant idomain.Tenant, userID string) (domain.Member, error) {
	return s.repo.Get(ctx, tenant, userID)
}

func (s *service) Deactivate(ctx context.Context, tenant idomain.Tenant, userID string) error {
	return s.repo.Deactivate(ctx, tenant, userID)
}

func (s *service) List(ctx context.Context, tenant idomain.Tenant, opts domain.ListOptions) (domain.ListResult, error) {
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 20
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Active != -1 && opts.Active != 0 && opts.Active != 1 {
		opts.Active = -1
	}
	limit := int32(opts.PageSize)
	offset := int32((opts.Page - 1) * opts.PageSize)

	items, total, err := s.repo.List(ctx, tenant, strings.TrimSpace(opts.Query), opts.Role, opts.Active, limit, offset)
	if err != nil {
		return domain.ListResult{}, err
	}
	totalPages := int(total) / opts.PageSize
	if int(total)%opts.PageSize != 0 {
		totalPages++
	}
	return domain.ListResult{
		Items:      items,
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *service) ListIDsByRoles(ctx context.Context, tenant idomain.Tenant, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	return s.repo.ListIDsByRoles(ctx, tenant, roles)
}
