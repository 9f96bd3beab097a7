package domain

import "errors"

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Ledger errors
var (
	ErrStudentNotFound    = errors.New("student not found")
	ErrCourseNotFound     = errors.New("course not found")
	ErrPackageNotFound    = errors.New("credit package not found")
	ErrCreditNotFound     = errors.New("credit record not found")
	ErrAttendanceNotFound = errors.New("attendance record not found")

	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrCreditExpired       = errors.New("credit package has expired")
	ErrCreditNotActive     = errors.New("credit package is not active")

	// ErrTransactionConflict means another writer touched the same
	// CreditRecord between our read and our conditional update. Services
	// retry a bounded number of times before surfacing an error, so
	// callers should never see this raw.
	ErrTransactionConflict = errors.New("transaction conflict, please retry")
)

// ValidationError carries a human-readable message for rejected input.
// Distinct from ErrInvalidInput so handlers can echo the exact field
// problem back to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error with the given message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
