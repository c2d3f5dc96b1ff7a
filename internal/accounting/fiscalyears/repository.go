package fiscalyears

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger-hq/medledger/internal/accounting/shared"
	"github.com/medledger-hq/medledger/internal/platform/db"
)

// Repository encapsulates DB operations for financial years.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (FinancialYear, error)
	// GetForUpdate locks the year row for the rest of the transaction,
	// serializing against journal writers that hold the same lock.
	GetForUpdate(ctx context.Context, id int64) (FinancialYear, error)
	GetByName(ctx context.Context, name string) (FinancialYear, error)
	List(ctx context.Context) ([]FinancialYear, error)
	Current(ctx context.Context) (FinancialYear, error)
	FindByDate(ctx context.Context, date time.Time) (FinancialYear, error)
	// FirstOverlapping returns the first year whose range conflicts with
	// [start, end], ignoring excludeID.
	FirstOverlapping(ctx context.Context, start, end time.Time, excludeID int64) (FinancialYear, bool, error)
	Insert(ctx context.Context, y FinancialYear) (int64, error)
	Update(ctx context.Context, y FinancialYear) error
	Delete(ctx context.Context, id int64) error
	// ClearCurrent unsets the current flag on every year. Always paired with
	// a SetCurrent inside one transaction.
	ClearCurrent(ctx context.Context) error
	SetCurrent(ctx context.Context, id int64) error
	CountEntries(ctx context.Context, yearID int64) (int, error)
	CountDraftEntries(ctx context.Context, yearID int64) (int, error)
	// LatestClosedAfter reports whether any year starting after the given end
	// date is already closed.
	LatestClosedAfter(ctx context.Context, end time.Time) (FinancialYear, bool, error)
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const yearColumns = `id, year_name, start_date, end_date, status, is_current, closed_by, closed_at, created_at, updated_at`

func scanYear(row pgx.Row) (FinancialYear, error) {
	var y FinancialYear
	err := row.Scan(&y.ID, &y.YearName, &y.StartDate, &y.EndDate, &y.Status, &y.IsCurrent, &y.ClosedBy, &y.ClosedAt, &y.CreatedAt, &y.UpdatedAt)
	return y, err
}

func (r *repository) Get(ctx context.Context, id int64) (FinancialYear, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `SELECT `+yearColumns+` FROM financial_years WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, shared.ErrYearNotFound
		}
		return FinancialYear{}, err
	}
	return y, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (FinancialYear, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `SELECT `+yearColumns+` FROM financial_years WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, shared.ErrYearNotFound
		}
		return FinancialYear{}, err
	}
	return y, nil
}

func (r *repository) GetByName(ctx context.Context, name string) (FinancialYear, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `SELECT `+yearColumns+` FROM financial_years WHERE year_name=$1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, shared.ErrYearNotFound
		}
		return FinancialYear{}, err
	}
	return y, nil
}

func (r *repository) List(ctx context.Context) ([]FinancialYear, error) {
	rows, err := r.db.Query(ctx, `SELECT `+yearColumns+` FROM financial_years ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []FinancialYear
	for rows.Next() {
		y, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func (r *repository) Current(ctx context.Context) (FinancialYear, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `SELECT `+yearColumns+` FROM financial_years WHERE is_current LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, shared.ErrYearNotFound
		}
		return FinancialYear{}, err
	}
	return y, nil
}

func (r *repository) FindByDate(ctx context.Context, date time.Time) (FinancialYear, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `SELECT `+yearColumns+` FROM financial_years WHERE $1 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, shared.ErrYearNotFound
		}
		return FinancialYear{}, err
	}
	return y, nil
}

func (r *repository) FirstOverlapping(ctx context.Context, start, end time.Time, excludeID int64) (FinancialYear, bool, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `SELECT `+yearColumns+` FROM financial_years
WHERE id <> $3 AND start_date <= $2 AND end_date >= $1
ORDER BY start_date LIMIT 1`, start, end, excludeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, false, nil
		}
		return FinancialYear{}, false, err
	}
	return y, true, nil
}

func (r *repository) Insert(ctx context.Context, y FinancialYear) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO financial_years (year_name, start_date, end_date, status, is_current)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, y.YearName, y.StartDate, y.EndDate, y.Status, y.IsCurrent).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.ErrDuplicateYearName
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, y FinancialYear) error {
	cmd, err := r.db.Exec(ctx, `UPDATE financial_years
SET year_name=$2, start_date=$3, end_date=$4, status=$5, is_current=$6, closed_by=$7, closed_at=$8, updated_at=NOW()
WHERE id=$1`, y.ID, y.YearName, y.StartDate, y.EndDate, y.Status, y.IsCurrent, y.ClosedBy, y.ClosedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicateYearName
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrYearNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM financial_years WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrYearNotFound
	}
	return nil
}

func (r *repository) ClearCurrent(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `UPDATE financial_years SET is_current=FALSE, updated_at=NOW() WHERE is_current`)
	return err
}

func (r *repository) SetCurrent(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE financial_years SET is_current=TRUE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrYearNotFound
	}
	return nil
}

func (r *repository) CountEntries(ctx context.Context, yearID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE financial_year_id=$1`, yearID).Scan(&count)
	return count, err
}

func (r *repository) CountDraftEntries(ctx context.Context, yearID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE financial_year_id=$1 AND status='DRAFT'`, yearID).Scan(&count)
	return count, err
}

func (r *repository) LatestClosedAfter(ctx context.Context, end time.Time) (FinancialYear, bool, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `SELECT `+yearColumns+` FROM financial_years
WHERE start_date > $1 AND status='CLOSED' ORDER BY start_date DESC LIMIT 1`, end))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, false, nil
		}
		return FinancialYear{}, false, err
	}
	return y, true, nil
}
