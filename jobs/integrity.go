package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/medledger-hq/medledger/internal/observability"
)

// IntegrityScanner verifies double-entry invariants across the ledger.
// Violations are reported, never repaired: an imbalance means a bug or
// manual data intervention and needs a human.
type IntegrityScanner struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func NewIntegrityScanner(logger *slog.Logger, pool *pgxpool.Pool) *IntegrityScanner {
	return &IntegrityScanner{logger: logger, pool: pool}
}

// Handle processes TaskLedgerIntegrity tasks.
func (s *IntegrityScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	return s.Run(ctx, payload.FinancialYearID)
}

// Run executes both checks concurrently and logs every violation.
func (s *IntegrityScanner) Run(ctx context.Context, yearID int64) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.checkEntries(ctx, yearID) })
	g.Go(func() error { return s.checkBalances(ctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("ledger integrity scan completed", slog.Int64("financial_year_id", yearID))
	return nil
}

// checkEntries flags posted entries whose item sums differ.
func (s *IntegrityScanner) checkEntries(ctx context.Context, yearID int64) error {
	query := `SELECT e.id, e.entry_number, SUM(i.debit) AS debit, SUM(i.credit) AS credit
FROM journal_entries e
JOIN journal_items i ON i.entry_id = e.id
WHERE e.status = 'POSTED' AND ($1 = 0 OR e.financial_year_id = $1)
GROUP BY e.id, e.entry_number
HAVING SUM(i.debit) <> SUM(i.credit)`

	rows, err := s.pool.Query(ctx, query, yearID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, number int64
		var debit, credit string
		if err := rows.Scan(&id, &number, &debit, &credit); err != nil {
			return err
		}
		observability.IntegrityFailures.Inc()
		s.logger.Error("unbalanced posted entry",
			slog.Int64("entry_id", id),
			slog.Int64("entry_number", number),
			slog.String("debit", debit),
			slog.String("credit", credit))
	}
	return rows.Err()
}

// checkBalances flags accounts whose stored balance drifted from the
// balance derivable from posted activity.
func (s *IntegrityScanner) checkBalances(ctx context.Context) error {
	query := `SELECT a.id, a.code, a.current_balance, a.opening_balance + COALESCE(CASE
	WHEN a.type IN ('ASSET','EXPENSE') THEN m.debit - m.credit
	ELSE m.credit - m.debit
END, 0) AS derived
FROM accounts a
LEFT JOIN (
	SELECT i.account_id, SUM(i.debit) AS debit, SUM(i.credit) AS credit
	FROM journal_items i
	JOIN journal_entries e ON e.id = i.entry_id
	WHERE e.status = 'POSTED'
	GROUP BY i.account_id
) m ON m.account_id = a.id
WHERE a.current_balance <> a.opening_balance + COALESCE(CASE
	WHEN a.type IN ('ASSET','EXPENSE') THEN m.debit - m.credit
	ELSE m.credit - m.debit
END, 0)`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var code, stored, derived string
		if err := rows.Scan(&id, &code, &stored, &derived); err != nil {
			return err
		}
		observability.IntegrityFailures.Inc()
		s.logger.Error("account balance drift",
			slog.Int64("account_id", id),
			slog.String("code", code),
			slog.String("stored", stored),
			slog.String("derived", derived))
	}
	return rows.Err()
}
