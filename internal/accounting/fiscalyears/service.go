package fiscalyears

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medledger-hq/medledger/internal/accounting/shared"
)

// Service owns the financial year lifecycle: creation, overlap checks, the
// single current-year flag, and the temporal close/reopen ordering.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (FinancialYear, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]FinancialYear, error) {
	return s.repo.List(ctx)
}

// Current resolves the single current financial year. Callers use this
// instead of hardcoding period ids.
func (s *Service) Current(ctx context.Context) (FinancialYear, error) {
	return s.repo.Current(ctx)
}

func (s *Service) FindByDate(ctx context.Context, date time.Time) (FinancialYear, error) {
	return s.repo.FindByDate(ctx, date)
}

func (s *Service) Create(ctx context.Context, req CreateFinancialYearRequest) (FinancialYear, error) {
	if !req.StartDate.Before(req.EndDate) {
		return FinancialYear{}, fmt.Errorf("%w: %s >= %s", shared.ErrInvalidRange,
			req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"))
	}
	if _, err := s.repo.GetByName(ctx, req.YearName); err == nil {
		return FinancialYear{}, fmt.Errorf("%w: %s", shared.ErrDuplicateYearName, req.YearName)
	} else if !errors.Is(err, shared.ErrYearNotFound) {
		return FinancialYear{}, err
	}
	if conflict, found, err := s.repo.FirstOverlapping(ctx, req.StartDate, req.EndDate, 0); err != nil {
		return FinancialYear{}, err
	} else if found {
		return FinancialYear{}, fmt.Errorf("%w: conflicts with %s", shared.ErrOverlappingPeriod, conflict.YearName)
	}

	year := FinancialYear{
		YearName:  req.YearName,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    YearStatusActive,
		IsCurrent: req.IsCurrent,
	}
	// The current flag moves atomically: the old flag is cleared and the new
	// one set inside the same transaction as the insert.
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if req.IsCurrent {
			if err := repo.ClearCurrent(ctx); err != nil {
				return err
			}
		}
		id, err := repo.Insert(ctx, year)
		if err != nil {
			return err
		}
		year.ID = id
		return nil
	})
	if err != nil {
		return FinancialYear{}, err
	}
	return year, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateFinancialYearRequest) (FinancialYear, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return FinancialYear{}, err
	}
	updated := existing

	if req.YearName != nil && *req.YearName != existing.YearName {
		if _, err := s.repo.GetByName(ctx, *req.YearName); err == nil {
			return FinancialYear{}, fmt.Errorf("%w: %s", shared.ErrDuplicateYearName, *req.YearName)
		} else if !errors.Is(err, shared.ErrYearNotFound) {
			return FinancialYear{}, err
		}
		updated.YearName = *req.YearName
	}
	if req.StartDate != nil {
		updated.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		updated.EndDate = *req.EndDate
	}
	if req.StartDate != nil || req.EndDate != nil {
		if !updated.StartDate.Before(updated.EndDate) {
			return FinancialYear{}, fmt.Errorf("%w: %s >= %s", shared.ErrInvalidRange,
				updated.StartDate.Format("2006-01-02"), updated.EndDate.Format("2006-01-02"))
		}
		if conflict, found, err := s.repo.FirstOverlapping(ctx, updated.StartDate, updated.EndDate, id); err != nil {
			return FinancialYear{}, err
		} else if found {
			return FinancialYear{}, fmt.Errorf("%w: conflicts with %s", shared.ErrOverlappingPeriod, conflict.YearName)
		}
	}

	closing := false
	if req.Status != nil && *req.Status != existing.Status {
		switch *req.Status {
		case YearStatusClosed:
			// The zero-draft check runs inside the close transaction, under
			// the year row lock. Checking here would leave a window for a
			// draft committed between the count and the status flip.
			closing = true
			now := s.now()
			updated.Status = YearStatusClosed
			updated.ClosedAt = &now
			if req.ActorID != 0 {
				actor := req.ActorID
				updated.ClosedBy = &actor
			}
		case YearStatusActive:
			// Periods close in temporal order, so they reopen in reverse
			// order: a year stays closed while any later year is closed.
			later, found, err := s.repo.LatestClosedAfter(ctx, existing.EndDate)
			if err != nil {
				return FinancialYear{}, err
			}
			if found {
				return FinancialYear{}, fmt.Errorf("%w: %s", shared.ErrNewerYearClosed, later.YearName)
			}
			updated.Status = YearStatusActive
			updated.ClosedBy = nil
			updated.ClosedAt = nil
		default:
			return FinancialYear{}, fmt.Errorf("accounting: unknown year status %q", *req.Status)
		}
	}

	makeCurrent := req.IsCurrent != nil && *req.IsCurrent && !existing.IsCurrent
	if req.IsCurrent != nil {
		updated.IsCurrent = *req.IsCurrent
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if closing {
			// Draft creation locks the same year row, so a count taken after
			// this lock cannot miss a concurrent draft.
			if _, err := repo.GetForUpdate(ctx, id); err != nil {
				return err
			}
			drafts, err := repo.CountDraftEntries(ctx, id)
			if err != nil {
				return err
			}
			if drafts > 0 {
				return fmt.Errorf("%w: %d draft entries", shared.ErrOpenDraftEntries, drafts)
			}
		}
		if makeCurrent {
			if err := repo.ClearCurrent(ctx); err != nil {
				return err
			}
		}
		return repo.Update(ctx, updated)
	})
	if err != nil {
		return FinancialYear{}, err
	}
	return updated, nil
}

// SetCurrent moves the current flag to the given year as one clear-then-set
// transaction.
func (s *Service) SetCurrent(ctx context.Context, id int64) (FinancialYear, error) {
	year, err := s.repo.Get(ctx, id)
	if err != nil {
		return FinancialYear{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.ClearCurrent(ctx); err != nil {
			return err
		}
		return repo.SetCurrent(ctx, id)
	})
	if err != nil {
		return FinancialYear{}, err
	}
	year.IsCurrent = true
	return year, nil
}

// Delete removes a financial year that has never been posted to.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	entries, err := s.repo.CountEntries(ctx, id)
	if err != nil {
		return err
	}
	if entries > 0 {
		return fmt.Errorf("%w: %d entries", shared.ErrHasEntries, entries)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
}
