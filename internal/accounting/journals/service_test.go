package journals

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/medledger-hq/medledger/internal/accounting/accounts"
	"github.com/medledger-hq/medledger/internal/accounting/fiscalyears"
	"github.com/medledger-hq/medledger/internal/accounting/shared"
)

type mockTxRepository struct {
	years    map[int64]fiscalyears.FinancialYear
	accounts map[int64]accounts.Account
	entries  map[int64]JournalEntry
	links    map[string]bool

	nextID      int64
	nextNumber  int64
	inserted    []JournalEntry
	itemWrites  map[int64][]JournalItem
	deltas      map[int64]decimal.Decimal
	lockedIDs   []int64
	markedIDs   []int64
	rolledBack  bool
	commitCount int
}

func newMockTxRepository() *mockTxRepository {
	return &mockTxRepository{
		years:      make(map[int64]fiscalyears.FinancialYear),
		accounts:   make(map[int64]accounts.Account),
		entries:    make(map[int64]JournalEntry),
		links:      make(map[string]bool),
		itemWrites: make(map[int64][]JournalItem),
		deltas:     make(map[int64]decimal.Decimal),
		nextID:     100,
		nextNumber: 1000,
	}
}

// WithTx snapshots mutable state and restores it when fn fails, matching
// transactional rollback.
func (m *mockTxRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	savedDeltas := make(map[int64]decimal.Decimal, len(m.deltas))
	for k, v := range m.deltas {
		savedDeltas[k] = v
	}
	savedInserted := len(m.inserted)
	savedLinks := make(map[string]bool, len(m.links))
	for k, v := range m.links {
		savedLinks[k] = v
	}
	if err := fn(ctx, m); err != nil {
		m.deltas = savedDeltas
		m.inserted = m.inserted[:savedInserted]
		m.links = savedLinks
		m.rolledBack = true
		return err
	}
	m.commitCount++
	return nil
}

func (m *mockTxRepository) List(_ context.Context, _ ListJournalsRequest) ([]JournalEntry, int, error) {
	return nil, 0, nil
}

func (m *mockTxRepository) Get(_ context.Context, id int64) (JournalEntry, error) {
	e, ok := m.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrEntryNotFound
	}
	return e, nil
}

func (m *mockTxRepository) GetYearForUpdate(_ context.Context, yearID int64) (fiscalyears.FinancialYear, error) {
	y, ok := m.years[yearID]
	if !ok {
		return fiscalyears.FinancialYear{}, shared.ErrYearNotFound
	}
	return y, nil
}

func (m *mockTxRepository) LockAccounts(_ context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account)
	for _, id := range ids {
		a, ok := m.accounts[id]
		if !ok {
			return nil, shared.ErrAccountNotFound
		}
		out[id] = a
		m.lockedIDs = append(m.lockedIDs, id)
	}
	return out, nil
}

func (m *mockTxRepository) InsertEntry(_ context.Context, e JournalEntry) (JournalEntry, error) {
	m.nextID++
	m.nextNumber++
	e.ID = m.nextID
	e.EntryNumber = m.nextNumber
	m.entries[e.ID] = e
	m.inserted = append(m.inserted, e)
	return e, nil
}

func (m *mockTxRepository) InsertItems(_ context.Context, entryID int64, items []JournalItem) error {
	m.itemWrites[entryID] = items
	e := m.entries[entryID]
	e.Items = items
	m.entries[entryID] = e
	return nil
}

func (m *mockTxRepository) LinkSource(_ context.Context, refType string, refID uuid.UUID, _ int64) error {
	key := refType + ":" + refID.String()
	if m.links[key] {
		return shared.ErrSourceAlreadyLinked
	}
	m.links[key] = true
	return nil
}

func (m *mockTxRepository) ApplyBalanceDelta(_ context.Context, accountID int64, delta string) error {
	d, err := decimal.NewFromString(delta)
	if err != nil {
		return err
	}
	m.deltas[accountID] = m.deltas[accountID].Add(d)
	a := m.accounts[accountID]
	a.CurrentBalance = a.CurrentBalance.Add(d)
	m.accounts[accountID] = a
	return nil
}

func (m *mockTxRepository) GetEntryWithItems(_ context.Context, id int64) (JournalEntry, error) {
	return m.Get(context.Background(), id)
}

func (m *mockTxRepository) MarkPosted(_ context.Context, id int64, postedBy int64) error {
	e, ok := m.entries[id]
	if !ok {
		return shared.ErrEntryNotFound
	}
	e.Status = EntryStatusPosted
	e.PostedBy = postedBy
	m.entries[id] = e
	m.markedIDs = append(m.markedIDs, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func date(y, mo, d int) time.Time {
	return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
}

func activeYear(id int64) fiscalyears.FinancialYear {
	return fiscalyears.FinancialYear{
		ID:        id,
		YearName:  "FY2024",
		StartDate: date(2024, 1, 1),
		EndDate:   date(2024, 12, 31),
		Status:    fiscalyears.YearStatusActive,
	}
}

func cashAndSalesFixture() *mockTxRepository {
	repo := newMockTxRepository()
	repo.years[1] = activeYear(1)
	repo.accounts[10] = accounts.Account{ID: 10, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, IsActive: true}
	repo.accounts[40] = accounts.Account{ID: 40, Code: "4000", Name: "Service Revenue", Type: accounts.AccountTypeRevenue, IsActive: true}
	return repo
}

func balancedInput() PostingInput {
	return PostingInput{
		FinancialYearID: 1,
		EntryDate:       date(2024, 3, 15),
		ReferenceType:   "INVOICE",
		ReferenceID:     uuid.New(),
		Memo:            "Consultation fees",
		Items: []ItemInput{
			{AccountID: 10, Debit: decimal.NewFromInt(1000)},
			{AccountID: 40, Credit: decimal.NewFromInt(1000)},
		},
	}
}

func TestPostBalancedEntry(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	entry, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)
	require.Equal(t, EntryStatusPosted, entry.Status)
	require.NotZero(t, entry.EntryNumber)
	require.Len(t, entry.Items, 2)

	// Asset grows by the debit, revenue grows by the credit.
	require.True(t, repo.accounts[10].CurrentBalance.Equal(decimal.NewFromInt(1000)))
	require.True(t, repo.accounts[40].CurrentBalance.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, 1, repo.commitCount)
}

func TestPostUnbalancedEntryRejectedWithoutMutation(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	in := balancedInput()
	in.Items[1].Credit = decimal.NewFromInt(999)

	_, err := svc.Post(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Empty(t, repo.inserted)
	require.True(t, repo.accounts[10].CurrentBalance.IsZero())
	require.True(t, repo.accounts[40].CurrentBalance.IsZero())
}

func TestPostRejectsSingleItem(t *testing.T) {
	svc := NewService(testLogger(), cashAndSalesFixture())

	in := balancedInput()
	in.Items = in.Items[:1]

	_, err := svc.Post(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrTooFewItems)
}

func TestPostIntoClosedYear(t *testing.T) {
	repo := cashAndSalesFixture()
	year := repo.years[1]
	year.Status = fiscalyears.YearStatusClosed
	repo.years[1] = year
	svc := NewService(testLogger(), repo)

	_, err := svc.Post(context.Background(), balancedInput())
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
	require.True(t, repo.rolledBack)
}

func TestPostDateOutsideYear(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	in := balancedInput()
	in.EntryDate = date(2025, 1, 1)

	_, err := svc.Post(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrDateOutOfPeriod)
}

func TestPostInactiveAccount(t *testing.T) {
	repo := cashAndSalesFixture()
	cash := repo.accounts[10]
	cash.IsActive = false
	repo.accounts[10] = cash
	svc := NewService(testLogger(), repo)

	_, err := svc.Post(context.Background(), balancedInput())
	require.ErrorIs(t, err, shared.ErrInactiveAccount)
	require.True(t, repo.accounts[40].CurrentBalance.IsZero())
}

func TestPostDuplicateSourceRejected(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	in := balancedInput()
	_, err := svc.Post(context.Background(), in)
	require.NoError(t, err)

	// Same reference retried: rejected, balances applied exactly once.
	_, err = svc.Post(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)
	require.True(t, repo.accounts[10].CurrentBalance.Equal(decimal.NewFromInt(1000)))
}

func TestSaveDraftSkipsBalances(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	in := balancedInput()
	in.Items[1].Credit = decimal.NewFromInt(400) // drafts may be unbalanced

	entry, err := svc.SaveDraft(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, EntryStatusDraft, entry.Status)
	require.True(t, repo.accounts[10].CurrentBalance.IsZero())
	require.True(t, repo.accounts[40].CurrentBalance.IsZero())
}

func TestPostDraftAppliesBalances(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	draft, err := svc.SaveDraft(context.Background(), balancedInput())
	require.NoError(t, err)

	posted, err := svc.PostDraft(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	require.Equal(t, EntryStatusPosted, posted.Status)
	require.Equal(t, int64(7), posted.PostedBy)
	require.True(t, repo.accounts[10].CurrentBalance.Equal(decimal.NewFromInt(1000)))
	require.Contains(t, repo.markedIDs, draft.ID)
}

func TestPostDraftRejectsUnbalancedDraft(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	in := balancedInput()
	in.Items[1].Credit = decimal.NewFromInt(400)
	draft, err := svc.SaveDraft(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.PostDraft(context.Background(), draft.ID, 7)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.True(t, repo.accounts[10].CurrentBalance.IsZero())
}

func TestPostDraftRejectsAlreadyPosted(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	entry, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)

	_, err = svc.PostDraft(context.Background(), entry.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestReverseSwapsSides(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)
	svc.WithNow(func() time.Time { return date(2024, 6, 1) })

	original, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), ReverseInput{EntryID: original.ID, Reason: "billing error", ActorID: 3})
	require.NoError(t, err)
	require.Equal(t, EntryStatusPosted, reversal.Status)
	require.NotNil(t, reversal.ReversalOfID)
	require.Equal(t, original.ID, *reversal.ReversalOfID)
	require.Equal(t, ReferenceTypeReversal, reversal.ReferenceType)
	require.True(t, reversal.EntryDate.Equal(date(2024, 6, 1)))

	// Sides swapped line by line.
	require.True(t, reversal.Items[0].Credit.Equal(decimal.NewFromInt(1000)))
	require.True(t, reversal.Items[1].Debit.Equal(decimal.NewFromInt(1000)))

	// Net effect cancels.
	require.True(t, repo.accounts[10].CurrentBalance.IsZero())
	require.True(t, repo.accounts[40].CurrentBalance.IsZero())
}

func TestReverseDraftRejected(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	draft, err := svc.SaveDraft(context.Background(), balancedInput())
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), ReverseInput{EntryID: draft.ID})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestReverseInClosedYearRejected(t *testing.T) {
	repo := cashAndSalesFixture()
	svc := NewService(testLogger(), repo)

	original, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)

	year := repo.years[1]
	year.Status = fiscalyears.YearStatusClosed
	repo.years[1] = year

	_, err = svc.Reverse(context.Background(), ReverseInput{EntryID: original.ID})
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
}

func TestValidateRejectsBothSidesOnOneItem(t *testing.T) {
	in := balancedInput()
	in.Items[0].Credit = decimal.NewFromInt(5)

	err := in.Validate()
	require.Error(t, err)
}

func TestValidateDecimalExactness(t *testing.T) {
	in := balancedInput()
	in.Items[0].Debit = decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))
	in.Items[1].Credit = decimal.RequireFromString("0.3")

	// 0.1 + 0.2 == 0.3 exactly in decimal arithmetic.
	require.NoError(t, in.Validate())
}
