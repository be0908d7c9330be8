package core

import "errors"

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid entry type")

	// ErrNotFound is returned when a record does not exist or belongs to
	// another account.
	ErrNotFound = errors.New("not found")

	// ErrPaymentExceedsPrincipal rejects a paydown larger than the outstanding balance.
	ErrPaymentExceedsPrincipal = errors.New("payment exceeds current principal")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
