package service

import (
	"context"
	"errors"

	"github.com/corvusHold/notify/internal/reporting/domain"
)

// Multi fans a failure out to every reporter and joins their errors.
type Multi []domain.Reporter

func (m Multi) Report(ctx context.Context, f domain.Failure) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
