package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger-hq/medledger/internal/accounting/shared"
	"github.com/medledger-hq/medledger/internal/platform/db"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context, req ListAccountsRequest) ([]Account, int, error)
	ListAll(ctx context.Context) ([]Account, error)
	Create(ctx context.Context, a Account) (int64, error)
	// Update rewrites account metadata and shifts current_balance by
	// balanceShift in the same statement.
	Update(ctx context.Context, a Account, balanceShift string) error
	SetActive(ctx context.Context, id int64, active bool) error
	// ChildIDs returns ids of accounts whose parent is any of parentIDs.
	// Drives the iterative descendant walk.
	ChildIDs(ctx context.Context, parentIDs []int64) ([]int64, error)
	ActiveChildren(ctx context.Context, id int64) ([]Account, error)
	HasPostings(ctx context.Context, id int64) (bool, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const accountColumns = `id, code, name, type, parent_id, department_id, is_active, opening_balance, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var opening, current pgtype.Numeric
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.DepartmentID, &a.IsActive, &opening, &current, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	if a.OpeningBalance, err = db.NumericToDecimal(opening); err != nil {
		return Account{}, err
	}
	if a.CurrentBalance, err = db.NumericToDecimal(current); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, req ListAccountsRequest) ([]Account, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argPos := 1

	if req.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, *req.Type)
		argPos++
	}
	if req.ParentID != nil {
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", argPos))
		args = append(args, *req.ParentID)
		argPos++
	}
	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+*req.Search+"%")
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM accounts "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT "+accountColumns+" FROM accounts %s ORDER BY code LIMIT $%d OFFSET $%d", whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	return accounts, total, rows.Err()
}

func (r *repository) ListAll(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Create(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_id, department_id, is_active, opening_balance, current_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		a.Code, a.Name, a.Type, a.ParentID, a.DepartmentID, a.IsActive,
		db.DecimalParam(a.OpeningBalance), db.DecimalParam(a.CurrentBalance)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "uq_accounts_code") {
			return 0, shared.ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, a Account, balanceShift string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts
SET code=$2, name=$3, type=$4, parent_id=$5, department_id=$6, opening_balance=$7,
    current_balance = current_balance + $8, updated_at=NOW()
WHERE id=$1`,
		a.ID, a.Code, a.Name, a.Type, a.ParentID, a.DepartmentID,
		db.DecimalParam(a.OpeningBalance), balanceShift)
	if err != nil {
		if isUniqueViolation(err, "uq_accounts_code") {
			return shared.ErrDuplicateCode
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) ChildIDs(ctx context.Context, parentIDs []int64) ([]int64, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM accounts WHERE parent_id = ANY($1)`, parentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) ActiveChildren(ctx context.Context, id int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE parent_id=$1 AND is_active`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) HasPostings(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_items WHERE account_id=$1)`, id).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}
