package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	metrics "github.com/corvusHold/notify/internal/metrics"
	ndomain "github.com/corvusHold/notify/internal/notify/domain"
)

// Service serves a recipient's feed without holding a subscription.
type Service struct {
	repo  ndomain.FeedRepository
	limit int
	now   func() time.Time
	log   zerolog.Logger
}

func New(repo ndomain.FeedRepository, limit int) *Service {
	if limit <= 0 {
		limit = 100
	}
	return &Service{repo: repo, limit: limit, now: time.Now, log: zerolog.Nop()}
}

// SetLogger allows injection of a structured logger.
func (s *Service) SetLogger(l zerolog.Logger) { s.log = l }

// Limit is the default page size of List.
func (s *Service) Limit() int { return s.limit }

// List returns the newest notifications of ref and its unread count. Limits
// outside (0, default] use the default.
func (s *Service) List(ctx context.Context, ref ndomain.FeedRef, limit int) ([]ndomain.RecipientNotification, int, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	items, err := s.repo.ListRecent(ctx, ref, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list feed: %w", err)
	}
	unread, err := s.repo.CountUnread(ctx, ref)
	if err != nil {
		return nil, 0, fmt.Errorf("count unread: %w", err)
	}
	return items, unread, nil
}

func (s *Service) UnreadCount(ctx context.Context, ref ndomain.FeedRef) (int, error) {
	return s.repo.CountUnread(ctx, ref)
}

// MarkRead marks id read and reports whether it changed.
func (s *Service) MarkRead(ctx context.Context, ref ndomain.FeedRef, id string) (bool, error) {
	n, err := s.repo.MarkRead(ctx, ref, []string{id}, s.now())
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	metrics.AddMarkedRead(n)
	return n > 0, nil
}

// MarkAllRead marks the unread subset of the newest notifications read.
func (s *Service) MarkAllRead(ctx context.Context, ref ndomain.FeedRef) (int, error) {
	items, err := s.repo.ListRecent(ctx, ref, s.limit)
	if err != nil {
		return 0, fmt.Errorf("list feed: %w", err)
	}
	var unread []string
	for _, n := range items {
		if !n.Read {
			unread = append(unread, n.ID)
		}
	}
	at := s.now()
	total := 0
	for i := 0; i < len(unread); i += ndomain.MaxBatchOps {
		end := i + ndomain.MaxBatchOps
		if end > len(unread) {
			end = len(unread)
		}
		n, err := s.repo.MarkRead(ctx, ref, unread[i:end], at)
		total += n
		if err != nil {
			metrics.AddMarkedRead(total)
			return total, fmt.Errorf("mark all read: %w", err)
		}
	}
	metrics.AddMarkedRead(total)
	s.log.Debug().Str("feed", ref.Path()).Int("marked", total).Msg("feed marked read")
	return total, nil
}
