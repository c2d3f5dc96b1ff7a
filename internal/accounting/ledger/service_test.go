package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/medledger-hq/medledger/internal/accounting/accounts"
	"github.com/medledger-hq/medledger/internal/accounting/fiscalyears"
	"github.com/medledger-hq/medledger/internal/accounting/shared"
)

type mockRepository struct {
	account     accounts.Account
	carryDebit  decimal.Decimal
	carryCredit decimal.Decimal
	rows        []Row
}

func (m *mockRepository) Account(_ context.Context, id int64) (accounts.Account, error) {
	if id != m.account.ID {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return m.account, nil
}

func (m *mockRepository) CarrySums(_ context.Context, _ int64, _ time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return m.carryDebit, m.carryCredit, nil
}

func (m *mockRepository) RangeTotals(_ context.Context, _ int64, _, _ time.Time) (decimal.Decimal, decimal.Decimal, int, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, r := range m.rows {
		debit = debit.Add(r.Debit)
		credit = credit.Add(r.Credit)
	}
	return debit, credit, len(m.rows), nil
}

func (m *mockRepository) PrefixSums(_ context.Context, _ int64, _, _ time.Time, offset int) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for i := 0; i < offset && i < len(m.rows); i++ {
		debit = debit.Add(m.rows[i].Debit)
		credit = credit.Add(m.rows[i].Credit)
	}
	return debit, credit, nil
}

func (m *mockRepository) PageRows(_ context.Context, _ int64, _, _ time.Time, limit, offset int) ([]Row, error) {
	if offset >= len(m.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.rows) {
		end = len(m.rows)
	}
	page := make([]Row, end-offset)
	copy(page, m.rows[offset:end])
	return page, nil
}

type mockYearSource struct {
	year fiscalyears.FinancialYear
}

func (m *mockYearSource) Get(_ context.Context, id int64) (fiscalyears.FinancialYear, error) {
	if id != m.year.ID {
		return fiscalyears.FinancialYear{}, shared.ErrYearNotFound
	}
	return m.year, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func date(y, mo, d int) time.Time {
	return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
}

func entryRow(day int, debit, credit int64) Row {
	return Row{
		Kind:      RowKindEntry,
		EntryDate: date(2024, 3, day),
		Debit:     decimal.NewFromInt(debit),
		Credit:    decimal.NewFromInt(credit),
	}
}

func TestStatementRunningBalance(t *testing.T) {
	repo := &mockRepository{
		account: accounts.Account{
			ID: 10, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset,
			OpeningBalance: decimal.NewFromInt(500), IsActive: true,
		},
		carryDebit:  decimal.NewFromInt(300),
		carryCredit: decimal.NewFromInt(100),
		rows: []Row{
			entryRow(1, 1000, 0),
			entryRow(2, 0, 250),
		},
	}
	svc := NewService(testLogger(), repo, nil)

	st, err := svc.Statement(context.Background(), StatementRequest{
		AccountID: 10, From: date(2024, 3, 1), To: date(2024, 3, 31),
	})
	require.NoError(t, err)

	// Opening: 500 + (300 - 100) carried forward.
	require.True(t, st.OpeningBalance.Equal(decimal.NewFromInt(700)))
	require.Len(t, st.Rows, 3)
	require.Equal(t, RowKindOpening, st.Rows[0].Kind)
	require.True(t, st.Rows[0].Balance.Equal(decimal.NewFromInt(700)))
	require.True(t, st.Rows[1].Balance.Equal(decimal.NewFromInt(1700)))
	require.True(t, st.Rows[2].Balance.Equal(decimal.NewFromInt(1450)))
	require.True(t, st.ClosingBalance.Equal(decimal.NewFromInt(1450)))
	require.Equal(t, 2, st.Total)
}

func TestStatementCreditNormalAccount(t *testing.T) {
	repo := &mockRepository{
		account: accounts.Account{
			ID: 40, Code: "4000", Name: "Service Revenue", Type: accounts.AccountTypeRevenue,
			OpeningBalance: decimal.Zero, IsActive: true,
		},
		rows: []Row{entryRow(5, 0, 900)},
	}
	svc := NewService(testLogger(), repo, nil)

	st, err := svc.Statement(context.Background(), StatementRequest{
		AccountID: 40, From: date(2024, 3, 1), To: date(2024, 3, 31),
	})
	require.NoError(t, err)
	// Revenue grows with credits.
	require.True(t, st.ClosingBalance.Equal(decimal.NewFromInt(900)))
}

func TestStatementSecondPageSeedsFromPrefix(t *testing.T) {
	repo := &mockRepository{
		account: accounts.Account{
			ID: 10, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, IsActive: true,
		},
		rows: []Row{
			entryRow(1, 100, 0),
			entryRow(2, 200, 0),
			entryRow(3, 0, 50),
		},
	}
	svc := NewService(testLogger(), repo, nil)

	st, err := svc.Statement(context.Background(), StatementRequest{
		AccountID: 10, From: date(2024, 3, 1), To: date(2024, 3, 31), Limit: 2, Offset: 2,
	})
	require.NoError(t, err)

	// No synthetic opening row past page one.
	require.Len(t, st.Rows, 1)
	require.Equal(t, RowKindEntry, st.Rows[0].Kind)
	// Running balance resumes at 100+200 before applying the credit.
	require.True(t, st.Rows[0].Balance.Equal(decimal.NewFromInt(250)))
}

func TestStatementInvalidRange(t *testing.T) {
	repo := &mockRepository{account: accounts.Account{ID: 10, Type: accounts.AccountTypeAsset}}
	svc := NewService(testLogger(), repo, nil)

	_, err := svc.Statement(context.Background(), StatementRequest{
		AccountID: 10, From: date(2024, 3, 31), To: date(2024, 3, 1),
	})
	require.ErrorIs(t, err, shared.ErrInvalidRange)
}

func TestStatementYearScopedDefaultsWindow(t *testing.T) {
	repo := &mockRepository{
		account: accounts.Account{
			ID: 10, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset,
			OpeningBalance: decimal.NewFromInt(500), IsActive: true,
		},
		rows: []Row{entryRow(1, 1000, 0)},
	}
	years := &mockYearSource{year: fiscalyears.FinancialYear{
		ID: 1, YearName: "FY2024", StartDate: date(2024, 1, 1), EndDate: date(2024, 12, 31),
		Status: fiscalyears.YearStatusActive,
	}}
	svc := NewService(testLogger(), repo, years)

	st, err := svc.Statement(context.Background(), StatementRequest{AccountID: 10, FinancialYearID: 1})
	require.NoError(t, err)
	require.True(t, st.From.Equal(date(2024, 1, 1)))
	require.True(t, st.To.Equal(date(2024, 12, 31)))
	require.Equal(t, int64(1), st.FinancialYearID)
	require.True(t, st.ClosingBalance.Equal(decimal.NewFromInt(1500)))
}

func TestStatementYearScopedPartialWindow(t *testing.T) {
	repo := &mockRepository{
		account: accounts.Account{ID: 10, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, IsActive: true},
	}
	years := &mockYearSource{year: fiscalyears.FinancialYear{
		ID: 1, YearName: "FY2024", StartDate: date(2024, 1, 1), EndDate: date(2024, 12, 31),
		Status: fiscalyears.YearStatusActive,
	}}
	svc := NewService(testLogger(), repo, years)

	st, err := svc.Statement(context.Background(), StatementRequest{
		AccountID: 10, FinancialYearID: 1, From: date(2024, 7, 1),
	})
	require.NoError(t, err)
	require.True(t, st.From.Equal(date(2024, 7, 1)))
	require.True(t, st.To.Equal(date(2024, 12, 31)))
}

func TestStatementYearScopedDateOutsideYear(t *testing.T) {
	years := &mockYearSource{year: fiscalyears.FinancialYear{
		ID: 1, YearName: "FY2024", StartDate: date(2024, 1, 1), EndDate: date(2024, 12, 31),
		Status: fiscalyears.YearStatusActive,
	}}
	svc := NewService(testLogger(), &mockRepository{}, years)

	_, err := svc.Statement(context.Background(), StatementRequest{
		AccountID: 10, FinancialYearID: 1, From: date(2023, 12, 1),
	})
	require.ErrorIs(t, err, shared.ErrDateOutOfPeriod)
}

func TestStatementRequiresWindowOrYear(t *testing.T) {
	svc := NewService(testLogger(), &mockRepository{}, nil)

	_, err := svc.Statement(context.Background(), StatementRequest{AccountID: 10})
	require.ErrorIs(t, err, shared.ErrInvalidRange)
}

func TestStatementUnknownYear(t *testing.T) {
	years := &mockYearSource{year: fiscalyears.FinancialYear{ID: 1}}
	svc := NewService(testLogger(), &mockRepository{}, years)

	_, err := svc.Statement(context.Background(), StatementRequest{AccountID: 10, FinancialYearID: 7})
	require.ErrorIs(t, err, shared.ErrYearNotFound)
}

func TestStatementUnknownAccount(t *testing.T) {
	repo := &mockRepository{account: accounts.Account{ID: 10}}
	svc := NewService(testLogger(), repo, nil)

	_, err := svc.Statement(context.Background(), StatementRequest{
		AccountID: 99, From: date(2024, 3, 1), To: date(2024, 3, 31),
	})
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}
