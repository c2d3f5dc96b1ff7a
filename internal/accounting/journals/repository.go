package journals

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger-hq/medledger/internal/accounting/accounts"
	"github.com/medledger-hq/medledger/internal/accounting/fiscalyears"
	"github.com/medledger-hq/medledger/internal/accounting/shared"
	"github.com/medledger-hq/medledger/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	List(ctx context.Context, req ListJournalsRequest) ([]JournalEntry, int, error)
	Get(ctx context.Context, id int64) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations available inside a posting transaction.
// Year and account reads lock their rows so concurrent postings serialize on
// the records they touch.
type TxRepository interface {
	GetYearForUpdate(ctx context.Context, yearID int64) (fiscalyears.FinancialYear, error)
	// LockAccounts locks the given accounts in ascending id order and
	// returns them keyed by id. Ascending order keeps lock acquisition
	// deadlock-free when postings share accounts.
	LockAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error)
	InsertItems(ctx context.Context, entryID int64, items []JournalItem) error
	LinkSource(ctx context.Context, refType string, refID uuid.UUID, entryID int64) error
	ApplyBalanceDelta(ctx context.Context, accountID int64, delta string) error
	GetEntryWithItems(ctx context.Context, id int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, id int64, postedBy int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const entryColumns = `id, entry_number, entry_date, financial_year_id, reference_type, reference_id, memo, status, reversal_of_id, COALESCE(posted_by, 0), posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.EntryNumber, &e.EntryDate, &e.FinancialYearID, &e.ReferenceType, &e.ReferenceID,
		&e.Memo, &e.Status, &e.ReversalOfID, &e.PostedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) List(ctx context.Context, req ListJournalsRequest) ([]JournalEntry, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argPos := 1

	if req.FinancialYearID != nil {
		conditions = append(conditions, fmt.Sprintf("financial_year_id = $%d", argPos))
		args = append(args, *req.FinancialYearID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.AccountID != nil {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM journal_items i WHERE i.entry_id = journal_entries.id AND i.account_id = $%d)", argPos))
		args = append(args, *req.AccountID)
		argPos++
	}
	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("entry_date >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("entry_date <= $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM journal_entries "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT "+entryColumns+" FROM journal_entries %s ORDER BY entry_number DESC LIMIT $%d OFFSET $%d", whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	items, err := fetchItems(ctx, r.db, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Items = items
	return entry, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type queryer interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

func fetchItems(ctx context.Context, q queryer, entryID int64) ([]JournalItem, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, description, created_at, updated_at
FROM journal_items WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []JournalItem
	for rows.Next() {
		var item JournalItem
		var debit, credit pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.EntryID, &item.AccountID, &debit, &credit, &item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		if item.Debit, err = db.NumericToDecimal(debit); err != nil {
			return nil, err
		}
		if item.Credit, err = db.NumericToDecimal(credit); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetYearForUpdate(ctx context.Context, yearID int64) (fiscalyears.FinancialYear, error) {
	var y fiscalyears.FinancialYear
	err := r.tx.QueryRow(ctx, `SELECT id, year_name, start_date, end_date, status, is_current, closed_by, closed_at, created_at, updated_at
FROM financial_years WHERE id=$1 FOR UPDATE`, yearID).
		Scan(&y.ID, &y.YearName, &y.StartDate, &y.EndDate, &y.Status, &y.IsCurrent, &y.ClosedBy, &y.ClosedAt, &y.CreatedAt, &y.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fiscalyears.FinancialYear{}, shared.ErrYearNotFound
		}
		return fiscalyears.FinancialYear{}, err
	}
	return y, nil
}

func (r *txRepository) LockAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked := make(map[int64]accounts.Account, len(sorted))
	for _, id := range sorted {
		if _, ok := locked[id]; ok {
			continue
		}
		var a accounts.Account
		var opening, current pgtype.Numeric
		err := r.tx.QueryRow(ctx, `SELECT id, code, name, type, parent_id, department_id, is_active, opening_balance, current_balance, created_at, updated_at
FROM accounts WHERE id=$1 FOR UPDATE`, id).
			Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.DepartmentID, &a.IsActive, &opening, &current, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: id %d", shared.ErrAccountNotFound, id)
			}
			return nil, err
		}
		if a.OpeningBalance, err = db.NumericToDecimal(opening); err != nil {
			return nil, err
		}
		if a.CurrentBalance, err = db.NumericToDecimal(current); err != nil {
			return nil, err
		}
		locked[id] = a
	}
	return locked, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_date, financial_year_id, reference_type, reference_id, memo, status, reversal_of_id, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8, CASE WHEN $6='POSTED' THEN NOW() END)
RETURNING id, entry_number, posted_at, created_at, updated_at`,
		e.EntryDate, e.FinancialYearID, e.ReferenceType, e.ReferenceID, e.Memo, e.Status, e.ReversalOfID, nullInt(e.PostedBy))
	if err := row.Scan(&e.ID, &e.EntryNumber, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertItems(ctx context.Context, entryID int64, items []JournalItem) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_items (entry_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5)`, entryID, item.AccountID, db.DecimalParam(item.Debit), db.DecimalParam(item.Credit), item.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, refType string, refID uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_source_links (reference_type, reference_id, entry_id) VALUES ($1,$2,$3)`, refType, refID, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) ApplyBalanceDelta(ctx context.Context, accountID int64, delta string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", shared.ErrAccountNotFound, accountID)
	}
	return nil
}

func (r *txRepository) GetEntryWithItems(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	items, err := fetchItems(ctx, r.tx, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Items = items
	return entry, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, postedBy int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_by=$2, posted_at=NOW(), updated_at=NOW() WHERE id=$1`, id, nullInt(postedBy))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
