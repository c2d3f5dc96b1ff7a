package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus enumerates journal lifecycle values. A posted entry is
// immutable; corrections go through reversal entries.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "DRAFT"
	EntryStatusPosted EntryStatus = "POSTED"
)

// JournalEntry captures one balanced business transaction.
type JournalEntry struct {
	ID              int64         `json:"id"`
	EntryNumber     int64         `json:"entry_number"`
	EntryDate       time.Time     `json:"entry_date"`
	FinancialYearID int64         `json:"financial_year_id"`
	ReferenceType   string        `json:"reference_type"`
	ReferenceID     uuid.UUID     `json:"reference_id"`
	Memo            string        `json:"memo,omitempty"`
	Status          EntryStatus   `json:"status"`
	ReversalOfID    *int64        `json:"reversal_of_id,omitempty"`
	PostedBy        int64         `json:"posted_by"`
	PostedAt        *time.Time    `json:"posted_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Items           []JournalItem `json:"items,omitempty"`
}

// JournalItem stores the debit or credit amount for one account.
type JournalItem struct {
	ID          int64           `json:"id"`
	EntryID     int64           `json:"entry_id"`
	AccountID   int64           `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
