package accounts

import "github.com/shopspring/decimal"

// CreateAccountRequest carries a new chart of accounts node.
type CreateAccountRequest struct {
	Code           string          `json:"code" validate:"required,max=50"`
	Name           string          `json:"name" validate:"required,max=200"`
	Type           AccountType     `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID       *int64          `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	DepartmentID   *int64          `json:"department_id,omitempty" validate:"omitempty,gt=0"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// UpdateAccountRequest patches account metadata. Nil fields are left as is.
type UpdateAccountRequest struct {
	Code           *string          `json:"code,omitempty" validate:"omitempty,max=50"`
	Name           *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Type           *AccountType     `json:"type,omitempty" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID       *int64           `json:"parent_id,omitempty"`
	ClearParent    bool             `json:"clear_parent,omitempty"`
	DepartmentID   *int64           `json:"department_id,omitempty" validate:"omitempty,gt=0"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
}

// ListAccountsRequest filters the chart of accounts listing.
type ListAccountsRequest struct {
	Type     *AccountType `json:"type,omitempty" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID *int64       `json:"parent_id,omitempty"`
	IsActive *bool        `json:"is_active,omitempty"`
	Search   *string      `json:"search,omitempty"`
	Limit    int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int          `json:"offset" validate:"gte=0"`
}
