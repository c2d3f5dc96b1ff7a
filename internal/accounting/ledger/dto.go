package ledger

import "time"

// StatementRequest scopes a ledger statement to one account. The window
// comes either from an explicit From/To pair or from a financial year,
// whose bounds fill in whichever dates are missing.
type StatementRequest struct {
	AccountID       int64 `validate:"required,gt=0"`
	FinancialYearID int64 `validate:"gte=0"`
	From            time.Time
	To              time.Time
	Limit           int `validate:"gte=0,lte=1000"`
	Offset          int `validate:"gte=0"`
}

func (r *StatementRequest) normalize() {
	if r.Limit <= 0 {
		r.Limit = 100
	}
}
