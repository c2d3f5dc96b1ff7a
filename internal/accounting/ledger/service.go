package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/medledger-hq/medledger/internal/accounting/fiscalyears"
	"github.com/medledger-hq/medledger/internal/accounting/shared"
)

// YearSource resolves financial years for statement scoping.
type YearSource interface {
	Get(ctx context.Context, id int64) (fiscalyears.FinancialYear, error)
}

// Service reconstructs account statements from posted journal activity.
// Balances are derived, never read from the accounts table, so the view
// stays consistent even while balances are being repaired.
type Service struct {
	logger *slog.Logger
	repo   Repository
	years  YearSource
}

func NewService(logger *slog.Logger, repo Repository, years YearSource) *Service {
	return &Service{logger: logger, repo: repo, years: years}
}

// Statement builds one page of an account's ledger. The first page
// starts with a synthetic opening row carrying the balance brought
// forward from before the range. When a financial year is given, its
// bounds fill in any missing From/To date and explicit dates must fall
// inside the year.
func (s *Service) Statement(ctx context.Context, req StatementRequest) (Statement, error) {
	req.normalize()
	if req.FinancialYearID != 0 {
		year, err := s.years.Get(ctx, req.FinancialYearID)
		if err != nil {
			return Statement{}, err
		}
		if req.From.IsZero() {
			req.From = year.StartDate
		}
		if req.To.IsZero() {
			req.To = year.EndDate
		}
		if !year.Contains(req.From) || !year.Contains(req.To) {
			return Statement{}, fmt.Errorf("%w: %s..%s outside %s", shared.ErrDateOutOfPeriod,
				req.From.Format("2006-01-02"), req.To.Format("2006-01-02"), year.YearName)
		}
	}
	if req.From.IsZero() || req.To.IsZero() {
		return Statement{}, fmt.Errorf("%w: a date window or financial year is required", shared.ErrInvalidRange)
	}
	if req.To.Before(req.From) {
		return Statement{}, fmt.Errorf("%w: from %s after to %s", shared.ErrInvalidRange,
			req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))
	}

	account, err := s.repo.Account(ctx, req.AccountID)
	if err != nil {
		return Statement{}, err
	}

	carryDebit, carryCredit, err := s.repo.CarrySums(ctx, req.AccountID, req.From)
	if err != nil {
		return Statement{}, err
	}
	opening := account.OpeningBalance.Add(account.Type.Delta(carryDebit, carryCredit))

	totalDebit, totalCredit, total, err := s.repo.RangeTotals(ctx, req.AccountID, req.From, req.To)
	if err != nil {
		return Statement{}, err
	}
	closing := opening.Add(account.Type.Delta(totalDebit, totalCredit))

	running := opening
	if req.Offset > 0 {
		prefixDebit, prefixCredit, err := s.repo.PrefixSums(ctx, req.AccountID, req.From, req.To, req.Offset)
		if err != nil {
			return Statement{}, err
		}
		running = running.Add(account.Type.Delta(prefixDebit, prefixCredit))
	}

	pageRows, err := s.repo.PageRows(ctx, req.AccountID, req.From, req.To, req.Limit, req.Offset)
	if err != nil {
		return Statement{}, err
	}

	rows := make([]Row, 0, len(pageRows)+1)
	if req.Offset == 0 {
		rows = append(rows, Row{
			Kind:        RowKindOpening,
			EntryDate:   req.From,
			Description: "Opening balance",
			Balance:     opening,
		})
	}
	for _, row := range pageRows {
		running = running.Add(account.Type.Delta(row.Debit, row.Credit))
		row.Balance = running
		rows = append(rows, row)
	}

	return Statement{
		AccountID:       account.ID,
		AccountCode:     account.Code,
		AccountName:     account.Name,
		FinancialYearID: req.FinancialYearID,
		From:            req.From,
		To:              req.To,
		OpeningBalance:  opening,
		ClosingBalance:  closing,
		TotalDebit:      totalDebit,
		TotalCredit:     totalCredit,
		Rows:            rows,
		Total:           total,
		Limit:           req.Limit,
		Offset:          req.Offset,
	}, nil
}
