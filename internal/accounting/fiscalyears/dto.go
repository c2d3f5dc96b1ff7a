package fiscalyears

import "time"

// CreateFinancialYearRequest defines a new fiscal period.
type CreateFinancialYearRequest struct {
	YearName  string    `json:"year_name" validate:"required,max=100"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsCurrent bool      `json:"is_current"`
}

// UpdateFinancialYearRequest patches a fiscal period. Nil fields are left
// untouched. Status transitions follow the close ordering rules.
type UpdateFinancialYearRequest struct {
	YearName  *string     `json:"year_name,omitempty" validate:"omitempty,max=100"`
	StartDate *time.Time  `json:"start_date,omitempty"`
	EndDate   *time.Time  `json:"end_date,omitempty"`
	Status    *YearStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE CLOSED"`
	IsCurrent *bool       `json:"is_current,omitempty"`
	ActorID   int64       `json:"actor_id,omitempty"`
}
