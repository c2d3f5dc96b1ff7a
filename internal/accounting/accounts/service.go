package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/medledger-hq/medledger/internal/accounting/shared"
	"github.com/medledger-hq/medledger/internal/platform/db"
)

// Service owns the chart of accounts: creation, metadata updates, hierarchy
// validation and deactivation. Balances are mutated here only through the
// opening-balance shift; journal posting owns every other balance write.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) List(ctx context.Context, req ListAccountsRequest) ([]Account, int, error) {
	return s.repo.List(ctx, req)
}

// Balance returns the account's running balance, the system of record
// maintained by journal posting.
func (s *Service) Balance(ctx context.Context, id int64) (decimal.Decimal, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.CurrentBalance, nil
}

func (s *Service) Create(ctx context.Context, req CreateAccountRequest) (Account, error) {
	if !req.Type.Valid() {
		return Account{}, fmt.Errorf("accounting: unknown account type %q", req.Type)
	}
	if _, err := s.repo.GetByCode(ctx, req.Code); err == nil {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateCode, req.Code)
	} else if !errors.Is(err, shared.ErrAccountNotFound) {
		return Account{}, err
	}
	if req.ParentID != nil {
		parent, err := s.repo.Get(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, shared.ErrAccountNotFound) {
				return Account{}, fmt.Errorf("%w: id %d", shared.ErrParentNotFound, *req.ParentID)
			}
			return Account{}, err
		}
		if parent.Type != req.Type {
			return Account{}, fmt.Errorf("%w: parent %s is %s, child is %s", shared.ErrTypeMismatch, parent.Code, parent.Type, req.Type)
		}
	}

	account := Account{
		Code:           req.Code,
		Name:           req.Name,
		Type:           req.Type,
		ParentID:       req.ParentID,
		DepartmentID:   req.DepartmentID,
		IsActive:       true,
		OpeningBalance: req.OpeningBalance,
		CurrentBalance: req.OpeningBalance,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, account)
		if err != nil {
			return err
		}
		account.ID = id
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateAccountRequest) (Account, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	updated := existing

	if req.Code != nil && *req.Code != existing.Code {
		if _, err := s.repo.GetByCode(ctx, *req.Code); err == nil {
			return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateCode, *req.Code)
		} else if !errors.Is(err, shared.ErrAccountNotFound) {
			return Account{}, err
		}
		updated.Code = *req.Code
	}
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.Type != nil {
		updated.Type = *req.Type
	}
	if req.DepartmentID != nil {
		updated.DepartmentID = req.DepartmentID
	}
	switch {
	case req.ClearParent:
		updated.ParentID = nil
	case req.ParentID != nil:
		if *req.ParentID == id {
			return Account{}, shared.ErrSelfParent
		}
		descendant, err := s.IsDescendant(ctx, id, *req.ParentID)
		if err != nil {
			return Account{}, err
		}
		if descendant {
			return Account{}, fmt.Errorf("%w: account %d is a descendant of %d", shared.ErrCycleDetected, *req.ParentID, id)
		}
		updated.ParentID = req.ParentID
	}

	if updated.ParentID != nil {
		parent, err := s.repo.Get(ctx, *updated.ParentID)
		if err != nil {
			if errors.Is(err, shared.ErrAccountNotFound) {
				return Account{}, fmt.Errorf("%w: id %d", shared.ErrParentNotFound, *updated.ParentID)
			}
			return Account{}, err
		}
		if parent.Type != updated.Type {
			return Account{}, fmt.Errorf("%w: parent %s is %s, child is %s", shared.ErrTypeMismatch, parent.Code, parent.Type, updated.Type)
		}
	}
	if updated.Type != existing.Type {
		children, err := s.repo.ActiveChildren(ctx, id)
		if err != nil {
			return Account{}, err
		}
		for _, child := range children {
			if child.Type != updated.Type {
				return Account{}, fmt.Errorf("%w: child %s is %s", shared.ErrChildTypeConflict, child.Code, child.Type)
			}
		}
	}

	// Moving the opening balance shifts the running balance by the same
	// delta so accumulated journal activity is preserved.
	shift := decimal.Zero
	if req.OpeningBalance != nil {
		shift = req.OpeningBalance.Sub(existing.OpeningBalance)
		updated.OpeningBalance = *req.OpeningBalance
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, updated, db.DecimalParam(shift))
	})
	if err != nil {
		return Account{}, err
	}
	updated.CurrentBalance = existing.CurrentBalance.Add(shift)
	return updated, nil
}

// Deactivate soft-deletes an account. History is never removed: accounts
// with postings or active children stay active until those are resolved.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	children, err := s.repo.ActiveChildren(ctx, id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("%w: %d active", shared.ErrHasActiveChildren, len(children))
	}
	hasPostings, err := s.repo.HasPostings(ctx, id)
	if err != nil {
		return err
	}
	if hasPostings {
		return shared.ErrHasPostings
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.SetActive(ctx, id, false)
	})
}

// IsDescendant reports whether nodeID sits anywhere below candidateAncestorID.
// The walk is an iterative breadth-first traversal with a visited set, so it
// is bounded by the total node count and survives both deep trees and
// accidental pre-existing cycles.
func (s *Service) IsDescendant(ctx context.Context, candidateAncestorID, nodeID int64) (bool, error) {
	if candidateAncestorID == nodeID {
		return false, nil
	}
	visited := map[int64]bool{candidateAncestorID: true}
	frontier := []int64{candidateAncestorID}
	for len(frontier) > 0 {
		children, err := s.repo.ChildIDs(ctx, frontier)
		if err != nil {
			return false, err
		}
		frontier = frontier[:0]
		for _, child := range children {
			if child == nodeID {
				return true, nil
			}
			if visited[child] {
				continue
			}
			visited[child] = true
			frontier = append(frontier, child)
		}
	}
	return false, nil
}

// Tree returns the chart of accounts as a forest ordered by code.
func (s *Service) Tree(ctx context.Context) ([]*TreeNode, error) {
	accounts, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make(map[int64]*TreeNode, len(accounts))
	for _, a := range accounts {
		nodes[a.ID] = &TreeNode{Account: a}
	}
	var roots []*TreeNode
	for _, a := range accounts {
		node := nodes[a.ID]
		if a.ParentID != nil {
			if parent, ok := nodes[*a.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	var sortNodes func([]*TreeNode)
	sortNodes = func(ns []*TreeNode) {
		sort.Slice(ns, func(i, j int) bool { return ns[i].Code < ns[j].Code })
		for _, n := range ns {
			sortNodes(n.Children)
		}
	}
	sortNodes(roots)
	return roots, nil
}
