package shared

import "errors"

// Chart of accounts errors.
var (
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrDuplicateCode indicates the account code is already taken.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
	// ErrParentNotFound indicates the referenced parent account is missing.
	ErrParentNotFound = errors.New("accounting: parent account not found")
	// ErrTypeMismatch indicates a child/parent account type conflict.
	ErrTypeMismatch = errors.New("accounting: account type must match parent type")
	// ErrSelfParent indicates an account referencing itself as parent.
	ErrSelfParent = errors.New("accounting: account cannot be its own parent")
	// ErrCycleDetected indicates a parent assignment that would create a cycle.
	ErrCycleDetected = errors.New("accounting: parent assignment would create a cycle")
	// ErrChildTypeConflict indicates a type change that orphans child types.
	ErrChildTypeConflict = errors.New("accounting: active children have a different account type")
	// ErrHasActiveChildren blocks deactivation while children are active.
	ErrHasActiveChildren = errors.New("accounting: account has active children")
	// ErrHasPostings blocks deactivation of accounts with journal activity.
	ErrHasPostings = errors.New("accounting: account has journal postings")
	// ErrInactiveAccount indicates posting against a deactivated account.
	ErrInactiveAccount = errors.New("accounting: account is not active")
)

// Financial year errors.
var (
	// ErrYearNotFound indicates a missing financial year.
	ErrYearNotFound = errors.New("accounting: financial year not found")
	// ErrDuplicateYearName indicates the year name is already taken.
	ErrDuplicateYearName = errors.New("accounting: financial year name already exists")
	// ErrInvalidRange indicates start date is not before end date.
	ErrInvalidRange = errors.New("accounting: start date must be before end date")
	// ErrOverlappingPeriod indicates the date range overlaps another year.
	ErrOverlappingPeriod = errors.New("accounting: date range overlaps an existing financial year")
	// ErrOpenDraftEntries blocks closing a year with draft journal entries.
	ErrOpenDraftEntries = errors.New("accounting: financial year has draft journal entries")
	// ErrNewerYearClosed blocks reopening while a later year is closed.
	ErrNewerYearClosed = errors.New("accounting: a later financial year is already closed")
	// ErrHasEntries blocks deleting a year with journal entries.
	ErrHasEntries = errors.New("accounting: financial year has journal entries")
	// ErrPeriodClosed indicates posting into a closed financial year.
	ErrPeriodClosed = errors.New("accounting: financial year is closed")
	// ErrDateOutOfPeriod indicates a date outside the financial year bounds.
	ErrDateOutOfPeriod = errors.New("accounting: date outside financial year")
)

// Journal errors.
var (
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("accounting: journal entry not found")
	// ErrUnbalanced indicates debits != credits.
	ErrUnbalanced = errors.New("accounting: journal items must balance")
	// ErrTooFewItems indicates fewer than two journal items.
	ErrTooFewItems = errors.New("accounting: journal requires at least two items")
	// ErrInvalidStatus indicates the entry lifecycle forbids the action.
	ErrInvalidStatus = errors.New("accounting: invalid entry status transition")
	// ErrSourceAlreadyLinked indicates an idempotency conflict on the source reference.
	ErrSourceAlreadyLinked = errors.New("accounting: source reference already posted")
	// ErrImbalanceDetected indicates books out of balance beyond rounding
	// tolerance. This is a data integrity failure, not a caller mistake.
	ErrImbalanceDetected = errors.New("accounting: ledger imbalance detected")
)

// Conflict reports whether err is a business-rule conflict the caller can
// resolve by changing the request.
func Conflict(err error) bool {
	for _, target := range []error{
		ErrDuplicateCode, ErrTypeMismatch, ErrSelfParent, ErrCycleDetected,
		ErrChildTypeConflict, ErrDuplicateYearName, ErrOverlappingPeriod,
		ErrSourceAlreadyLinked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// StateViolation reports whether err means the operation is not permitted in
// the current lifecycle state.
func StateViolation(err error) bool {
	for _, target := range []error{
		ErrHasActiveChildren, ErrHasPostings, ErrInactiveAccount,
		ErrOpenDraftEntries, ErrNewerYearClosed, ErrHasEntries,
		ErrPeriodClosed, ErrDateOutOfPeriod, ErrInvalidStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NotFound reports whether err identifies a missing resource.
func NotFound(err error) bool {
	for _, target := range []error{ErrAccountNotFound, ErrParentNotFound, ErrYearNotFound, ErrEntryNotFound} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Integrity reports whether err indicates corrupted books. These must be
// surfaced loudly and never coerced back into balance.
func Integrity(err error) bool {
	return errors.Is(err, ErrImbalanceDetected)
}
