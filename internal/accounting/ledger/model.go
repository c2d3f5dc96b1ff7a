package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// RowKind distinguishes the synthetic opening row from real journal lines.
type RowKind string

const (
	RowKindOpening RowKind = "OPENING"
	RowKindEntry   RowKind = "ENTRY"
)

// Row is one line of an account statement. Balance carries the running
// balance after the line has been applied.
type Row struct {
	Kind        RowKind         `json:"kind"`
	EntryID     int64           `json:"entry_id,omitempty"`
	EntryNumber int64           `json:"entry_number,omitempty"`
	EntryDate   time.Time       `json:"entry_date"`
	Memo        string          `json:"memo,omitempty"`
	Description string          `json:"description,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// Statement is a paginated ledger view for one account.
type Statement struct {
	AccountID       int64           `json:"account_id"`
	AccountCode     string          `json:"account_code"`
	AccountName     string          `json:"account_name"`
	FinancialYearID int64           `json:"financial_year_id,omitempty"`
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	ClosingBalance  decimal.Decimal `json:"closing_balance"`
	TotalDebit      decimal.Decimal `json:"total_debit"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
	Rows            []Row           `json:"rows"`
	Total           int             `json:"total"`
	Limit           int             `json:"limit"`
	Offset          int             `json:"offset"`
}
