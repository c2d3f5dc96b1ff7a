package trialbalance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger-hq/medledger/internal/platform/db"
)

// Repository aggregates posted journal activity per account.
type Repository interface {
	// Activities returns every account with its opening balance and the
	// summed posted movement between from and asOf inclusive.
	Activities(ctx context.Context, from, asOf time.Time) ([]AccountActivity, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Activities(ctx context.Context, from, asOf time.Time) ([]AccountActivity, error) {
	rows, err := r.db.Query(ctx, `SELECT a.code, a.name, a.type, a.opening_balance,
	COALESCE(m.debit, 0) AS debit,
	COALESCE(m.credit, 0) AS credit
FROM accounts a
LEFT JOIN (
	SELECT i.account_id, SUM(i.debit) AS debit, SUM(i.credit) AS credit
	FROM journal_items i
	JOIN journal_entries e ON e.id = i.entry_id
	WHERE e.status = 'POSTED' AND e.entry_date BETWEEN $1 AND $2
	GROUP BY i.account_id
) m ON m.account_id = a.id
WHERE a.is_active
ORDER BY a.code ASC`, from, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountActivity
	for rows.Next() {
		var act AccountActivity
		var opening, debit, credit pgtype.Numeric
		if err := rows.Scan(&act.Code, &act.Name, &act.Type, &opening, &debit, &credit); err != nil {
			return nil, err
		}
		if act.Opening, err = db.NumericToDecimal(opening); err != nil {
			return nil, err
		}
		if act.Debit, err = db.NumericToDecimal(debit); err != nil {
			return nil, err
		}
		if act.Credit, err = db.NumericToDecimal(credit); err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	return out, rows.Err()
}
