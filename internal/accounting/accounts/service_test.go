package accounts

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/medledger-hq/medledger/internal/accounting/shared"
)

type mockRepository struct {
	accounts map[int64]Account
	byCode   map[string]Account
	children map[int64][]int64
	postings map[int64]bool

	created     []Account
	updated     []Account
	updateShift string
	deactivated []int64
}

func newMockRepository(accs ...Account) *mockRepository {
	m := &mockRepository{
		accounts: make(map[int64]Account),
		byCode:   make(map[string]Account),
		children: make(map[int64][]int64),
		postings: make(map[int64]bool),
	}
	for _, a := range accs {
		m.accounts[a.ID] = a
		m.byCode[a.Code] = a
		if a.ParentID != nil {
			m.children[*a.ParentID] = append(m.children[*a.ParentID], a.ID)
		}
	}
	return m
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(_ context.Context, id int64) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (m *mockRepository) GetByCode(_ context.Context, code string) (Account, error) {
	a, ok := m.byCode[code]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (m *mockRepository) List(_ context.Context, _ ListAccountsRequest) ([]Account, int, error) {
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockRepository) ListAll(ctx context.Context) ([]Account, error) {
	out, _, err := m.List(ctx, ListAccountsRequest{})
	return out, err
}

func (m *mockRepository) Create(_ context.Context, a Account) (int64, error) {
	a.ID = int64(len(m.accounts) + 1)
	m.accounts[a.ID] = a
	m.byCode[a.Code] = a
	m.created = append(m.created, a)
	return a.ID, nil
}

func (m *mockRepository) Update(_ context.Context, a Account, balanceShift string) error {
	m.updated = append(m.updated, a)
	m.updateShift = balanceShift
	m.accounts[a.ID] = a
	return nil
}

func (m *mockRepository) SetActive(_ context.Context, id int64, active bool) error {
	a := m.accounts[id]
	a.IsActive = active
	m.accounts[id] = a
	if !active {
		m.deactivated = append(m.deactivated, id)
	}
	return nil
}

func (m *mockRepository) ChildIDs(_ context.Context, parentIDs []int64) ([]int64, error) {
	var out []int64
	for _, pid := range parentIDs {
		out = append(out, m.children[pid]...)
	}
	return out, nil
}

func (m *mockRepository) ActiveChildren(_ context.Context, id int64) ([]Account, error) {
	var out []Account
	for _, cid := range m.children[id] {
		if a := m.accounts[cid]; a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepository) HasPostings(_ context.Context, id int64) (bool, error) {
	return m.postings[id], nil
}

func ptrInt64(v int64) *int64 { return &v }

func TestCreateAccount(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	account, err := svc.Create(context.Background(), CreateAccountRequest{
		Code:           "1000",
		Name:           "Cash",
		Type:           AccountTypeAsset,
		OpeningBalance: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	require.True(t, account.IsActive)
	require.True(t, account.CurrentBalance.Equal(decimal.NewFromInt(500)))
	require.Len(t, repo.created, 1)
}

func TestCreateAccountDuplicateCode(t *testing.T) {
	repo := newMockRepository(Account{ID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset, IsActive: true})
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateAccountRequest{Code: "1000", Name: "Petty Cash", Type: AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateCode)
}

func TestCreateAccountParentTypeMismatch(t *testing.T) {
	repo := newMockRepository(Account{ID: 1, Code: "4000", Name: "Revenue", Type: AccountTypeRevenue, IsActive: true})
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Code: "1100", Name: "Receivables", Type: AccountTypeAsset, ParentID: ptrInt64(1),
	})
	require.ErrorIs(t, err, shared.ErrTypeMismatch)
}

func TestCreateAccountParentMissing(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Code: "1100", Name: "Receivables", Type: AccountTypeAsset, ParentID: ptrInt64(99),
	})
	require.ErrorIs(t, err, shared.ErrParentNotFound)
}

func TestUpdateAccountSelfParent(t *testing.T) {
	repo := newMockRepository(Account{ID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset, IsActive: true})
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), 1, UpdateAccountRequest{ParentID: ptrInt64(1)})
	require.ErrorIs(t, err, shared.ErrSelfParent)
}

func TestUpdateAccountCycleDetected(t *testing.T) {
	// 1 -> 2 -> 3; reparenting 1 under 3 would close the loop.
	repo := newMockRepository(
		Account{ID: 1, Code: "1000", Name: "Assets", Type: AccountTypeAsset, IsActive: true},
		Account{ID: 2, Code: "1100", Name: "Current", Type: AccountTypeAsset, ParentID: ptrInt64(1), IsActive: true},
		Account{ID: 3, Code: "1110", Name: "Cash", Type: AccountTypeAsset, ParentID: ptrInt64(2), IsActive: true},
	)
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), 1, UpdateAccountRequest{ParentID: ptrInt64(3)})
	require.ErrorIs(t, err, shared.ErrCycleDetected)
}

func TestUpdateOpeningBalanceShiftsCurrent(t *testing.T) {
	repo := newMockRepository(Account{
		ID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset, IsActive: true,
		OpeningBalance: decimal.NewFromInt(100),
		CurrentBalance: decimal.NewFromInt(250), // 150 of journal activity
	})
	svc := NewService(repo)

	opening := decimal.NewFromInt(400)
	updated, err := svc.Update(context.Background(), 1, UpdateAccountRequest{OpeningBalance: &opening})
	require.NoError(t, err)
	require.Equal(t, "300", repo.updateShift)
	// Journal activity survives the shift.
	require.True(t, updated.CurrentBalance.Equal(decimal.NewFromInt(550)))
}

func TestDeactivateBlockedByChildren(t *testing.T) {
	repo := newMockRepository(
		Account{ID: 1, Code: "1000", Name: "Assets", Type: AccountTypeAsset, IsActive: true},
		Account{ID: 2, Code: "1100", Name: "Cash", Type: AccountTypeAsset, ParentID: ptrInt64(1), IsActive: true},
	)
	svc := NewService(repo)

	err := svc.Deactivate(context.Background(), 1)
	require.ErrorIs(t, err, shared.ErrHasActiveChildren)
	require.Empty(t, repo.deactivated)
}

func TestDeactivateBlockedByPostings(t *testing.T) {
	repo := newMockRepository(Account{ID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset, IsActive: true})
	repo.postings[1] = true
	svc := NewService(repo)

	err := svc.Deactivate(context.Background(), 1)
	require.ErrorIs(t, err, shared.ErrHasPostings)
}

func TestDeactivateSoftDeletes(t *testing.T) {
	repo := newMockRepository(Account{ID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset, IsActive: true})
	svc := NewService(repo)

	require.NoError(t, svc.Deactivate(context.Background(), 1))
	require.Equal(t, []int64{1}, repo.deactivated)
	require.False(t, repo.accounts[1].IsActive)
}

func TestIsDescendantSurvivesExistingCycle(t *testing.T) {
	// Corrupt data: 1 -> 2 -> 1. The walk must terminate.
	repo := newMockRepository(
		Account{ID: 1, Code: "1000", Name: "A", Type: AccountTypeAsset, ParentID: ptrInt64(2), IsActive: true},
		Account{ID: 2, Code: "1100", Name: "B", Type: AccountTypeAsset, ParentID: ptrInt64(1), IsActive: true},
	)
	svc := NewService(repo)

	found, err := svc.IsDescendant(context.Background(), 1, 99)
	require.NoError(t, err)
	require.False(t, found)
}

func TestTreeOrdersByCode(t *testing.T) {
	repo := newMockRepository(
		Account{ID: 3, Code: "2000", Name: "Liabilities", Type: AccountTypeLiability, IsActive: true},
		Account{ID: 1, Code: "1000", Name: "Assets", Type: AccountTypeAsset, IsActive: true},
		Account{ID: 2, Code: "1100", Name: "Cash", Type: AccountTypeAsset, ParentID: ptrInt64(1), IsActive: true},
	)
	svc := NewService(repo)

	roots, err := svc.Tree(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 2)
	require.Equal(t, "1000", roots[0].Code)
	require.Equal(t, "2000", roots[1].Code)
	require.Len(t, roots[0].Children, 1)
	require.Equal(t, "1100", roots[0].Children[0].Code)
}

func TestAccountTypeDelta(t *testing.T) {
	debit := decimal.NewFromInt(100)
	credit := decimal.NewFromInt(40)

	require.True(t, AccountTypeAsset.Delta(debit, credit).Equal(decimal.NewFromInt(60)))
	require.True(t, AccountTypeExpense.Delta(debit, credit).Equal(decimal.NewFromInt(60)))
	require.True(t, AccountTypeLiability.Delta(debit, credit).Equal(decimal.NewFromInt(-60)))
	require.True(t, AccountTypeEquity.Delta(debit, credit).Equal(decimal.NewFromInt(-60)))
	require.True(t, AccountTypeRevenue.Delta(debit, credit).Equal(decimal.NewFromInt(-60)))
}
