// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	acctshared "github.com/medledger-hq/medledger/internal/accounting/shared"
)

// Sentinel errors for handlers outside the accounting taxonomy.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Conflicts are business-rule violations rejected before mutation; state
// violations are lifecycle rejections; integrity errors are bugs and map to
// 500 so they are never mistaken for caller mistakes.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		Problem(w, http.StatusBadRequest, "Validation Failed", verrs.Error())
	case acctshared.NotFound(err) || errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case acctshared.Conflict(err):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case acctshared.StateViolation(err):
		Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	case errors.Is(err, acctshared.ErrUnbalanced) || errors.Is(err, acctshared.ErrTooFewItems) ||
		errors.Is(err, acctshared.ErrInvalidRange) || errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case acctshared.Integrity(err):
		Problem(w, http.StatusInternalServerError, "Integrity Violation", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
