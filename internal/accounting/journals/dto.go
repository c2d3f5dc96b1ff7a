package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medledger-hq/medledger/internal/accounting/shared"
)

// ItemInput describes one journal line in a posting request.
type ItemInput struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description" validate:"max=500"`
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	FinancialYearID int64       `json:"financial_year_id" validate:"required,gt=0"`
	EntryDate       time.Time   `json:"entry_date" validate:"required"`
	ReferenceType   string      `json:"reference_type" validate:"required,max=50"`
	ReferenceID     uuid.UUID   `json:"reference_id" validate:"required"`
	Memo            string      `json:"memo" validate:"max=500"`
	PostedBy        int64       `json:"posted_by"`
	Items           []ItemInput `json:"items" validate:"required,dive"`
}

// validateItems enforces the structural rules shared by drafts and postings.
func (in PostingInput) validateItems() error {
	if in.FinancialYearID == 0 {
		return errors.New("accounting: financial year required")
	}
	if len(in.Items) < 2 {
		return shared.ErrTooFewItems
	}
	for idx, item := range in.Items {
		if item.AccountID == 0 {
			return fmt.Errorf("accounting: item %d missing account", idx)
		}
		if item.Debit.IsNegative() || item.Credit.IsNegative() {
			return fmt.Errorf("accounting: item %d negative amount", idx)
		}
		if item.Debit.IsPositive() && item.Credit.IsPositive() {
			return fmt.Errorf("accounting: item %d cannot be both debit and credit", idx)
		}
	}
	if in.ReferenceType == "" {
		return errors.New("accounting: reference type required")
	}
	if in.ReferenceID == uuid.Nil {
		return errors.New("accounting: reference id required")
	}
	return nil
}

// Validate ensures the input can be posted: structurally sound and exactly
// balanced. Balance equality is decimal-exact, never approximate.
func (in PostingInput) Validate() error {
	if err := in.validateItems(); err != nil {
		return err
	}
	debit, credit := in.Totals()
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debits %s, credits %s", shared.ErrUnbalanced,
			debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// Totals sums both sides of the input.
func (in PostingInput) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, item := range in.Items {
		debit = debit.Add(item.Debit)
		credit = credit.Add(item.Credit)
	}
	return debit, credit
}

// ReverseInput wraps parameters for reversing a posted entry.
type ReverseInput struct {
	EntryID int64  `json:"-"`
	Reason  string `json:"reason" validate:"required,max=500"`
	ActorID int64  `json:"actor_id"`
}

// ListJournalsRequest filters the journal listing.
type ListJournalsRequest struct {
	FinancialYearID *int64       `json:"financial_year_id,omitempty"`
	Status          *EntryStatus `json:"status,omitempty" validate:"omitempty,oneof=DRAFT POSTED"`
	AccountID       *int64       `json:"account_id,omitempty"`
	From            *time.Time   `json:"from,omitempty"`
	To              *time.Time   `json:"to,omitempty"`
	Limit           int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset          int          `json:"offset" validate:"gte=0"`
}
