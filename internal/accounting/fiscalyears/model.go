package fiscalyears

import "time"

// YearStatus enumerates financial year lifecycle values.
type YearStatus string

const (
	YearStatusActive YearStatus = "ACTIVE"
	YearStatusClosed YearStatus = "CLOSED"
)

// FinancialYear represents a fiscal period window. At most one year carries
// IsCurrent at a time.
type FinancialYear struct {
	ID        int64      `json:"id"`
	YearName  string     `json:"year_name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Status    YearStatus `json:"status"`
	IsCurrent bool       `json:"is_current"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contains reports whether date falls inside [StartDate, EndDate].
func (y FinancialYear) Contains(date time.Time) bool {
	return !date.Before(y.StartDate) && !date.After(y.EndDate)
}

// Overlaps applies the three-way interval test against another range: either
// end of the new range inside the existing one, or the new range enclosing it.
func (y FinancialYear) Overlaps(start, end time.Time) bool {
	startInside := !start.Before(y.StartDate) && !start.After(y.EndDate)
	endInside := !end.Before(y.StartDate) && !end.After(y.EndDate)
	encloses := start.Before(y.StartDate) && end.After(y.EndDate)
	return startInside || endInside || encloses
}
