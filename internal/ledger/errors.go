package ledger

import (
	"errors"
	"fmt"
)

// Reason classifies a ValidationError.
type Reason string

const (
	ReasonBlank     Reason = "blank"
	ReasonDuplicate Reason = "duplicate"
	ReasonInvalid   Reason = "invalid"
)

// ValidationError reports user input that violates a ledger constraint.
// No state is mutated when one is returned.
type ValidationError struct {
	Field  string
	Reason Reason
	Msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

func blank(field string) error {
	return &ValidationError{Field: field, Reason: ReasonBlank, Msg: field + " is required"}
}

func duplicate(field, what string) error {
	return &ValidationError{Field: field, Reason: ReasonDuplicate, Msg: "a " + what + " with that name already exists"}
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Reason: ReasonInvalid, Msg: msg}
}
