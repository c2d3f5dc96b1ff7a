package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/medledger-hq/medledger/internal/accounting/accounts"
	"github.com/medledger-hq/medledger/internal/accounting/shared"
	"github.com/medledger-hq/medledger/internal/platform/db"
)

// Repository reads posted journal activity for statement building. Draft
// entries never appear in a ledger view.
type Repository interface {
	Account(ctx context.Context, id int64) (accounts.Account, error)
	// CarrySums returns summed debits and credits for posted items dated
	// strictly before the given date.
	CarrySums(ctx context.Context, accountID int64, before time.Time) (debit, credit decimal.Decimal, err error)
	// RangeTotals returns summed debits, credits and the row count for
	// posted items within [from, to].
	RangeTotals(ctx context.Context, accountID int64, from, to time.Time) (debit, credit decimal.Decimal, count int, err error)
	// PrefixSums returns summed debits and credits for the first offset
	// rows of the statement ordering, so later pages can seed their
	// running balance without walking earlier pages.
	PrefixSums(ctx context.Context, accountID int64, from, to time.Time, offset int) (debit, credit decimal.Decimal, err error)
	PageRows(ctx context.Context, accountID int64, from, to time.Time, limit, offset int) ([]Row, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Account(ctx context.Context, id int64) (accounts.Account, error) {
	var a accounts.Account
	var opening, current pgtype.Numeric
	err := r.db.QueryRow(ctx, `SELECT id, code, name, type, parent_id, department_id, is_active, opening_balance, current_balance, created_at, updated_at
FROM accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.DepartmentID, &a.IsActive, &opening, &current, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	if a.OpeningBalance, err = db.NumericToDecimal(opening); err != nil {
		return accounts.Account{}, err
	}
	if a.CurrentBalance, err = db.NumericToDecimal(current); err != nil {
		return accounts.Account{}, err
	}
	return a, nil
}

func (r *repository) CarrySums(ctx context.Context, accountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit pgtype.Numeric
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(i.debit), 0), COALESCE(SUM(i.credit), 0)
FROM journal_items i
JOIN journal_entries e ON e.id = i.entry_id
WHERE i.account_id = $1 AND e.status = 'POSTED' AND e.entry_date < $2`, accountID, before).
		Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	d, err := db.NumericToDecimal(debit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	c, err := db.NumericToDecimal(credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return d, c, nil
}

func (r *repository) RangeTotals(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, decimal.Decimal, int, error) {
	var debit, credit pgtype.Numeric
	var count int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(i.debit), 0), COALESCE(SUM(i.credit), 0), COUNT(*)
FROM journal_items i
JOIN journal_entries e ON e.id = i.entry_id
WHERE i.account_id = $1 AND e.status = 'POSTED' AND e.entry_date BETWEEN $2 AND $3`, accountID, from, to).
		Scan(&debit, &credit, &count)
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	d, err := db.NumericToDecimal(debit)
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	c, err := db.NumericToDecimal(credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	return d, c, count, nil
}

func (r *repository) PrefixSums(ctx context.Context, accountID int64, from, to time.Time, offset int) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit pgtype.Numeric
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0) FROM (
SELECT i.debit, i.credit
FROM journal_items i
JOIN journal_entries e ON e.id = i.entry_id
WHERE i.account_id = $1 AND e.status = 'POSTED' AND e.entry_date BETWEEN $2 AND $3
ORDER BY e.entry_date ASC, e.entry_number ASC, i.id ASC
LIMIT $4) prefix`, accountID, from, to, offset).
		Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	d, err := db.NumericToDecimal(debit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	c, err := db.NumericToDecimal(credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return d, c, nil
}

func (r *repository) PageRows(ctx context.Context, accountID int64, from, to time.Time, limit, offset int) ([]Row, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.entry_number, e.entry_date, e.memo, i.description, i.debit, i.credit
FROM journal_items i
JOIN journal_entries e ON e.id = i.entry_id
WHERE i.account_id = $1 AND e.status = 'POSTED' AND e.entry_date BETWEEN $2 AND $3
ORDER BY e.entry_date ASC, e.entry_number ASC, i.id ASC
LIMIT $4 OFFSET $5`, accountID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var debit, credit pgtype.Numeric
		if err := rows.Scan(&row.EntryID, &row.EntryNumber, &row.EntryDate, &row.Memo, &row.Description, &debit, &credit); err != nil {
			return nil, err
		}
		row.Kind = RowKindEntry
		if row.Debit, err = db.NumericToDecimal(debit); err != nil {
			return nil, err
		}
		if row.Credit, err = db.NumericToDecimal(credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
