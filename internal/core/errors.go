package core

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationInFlight rejects a second mutation against a fee record
	// while one is still outstanding.
	ErrOperationInFlight = errors.New("another operation is in progress for this fee record")

	// ErrDeleteDeclined is returned when the user answers "no" to a delete prompt.
	ErrDeleteDeclined = errors.New("delete not confirmed")

	ErrSessionClosed = errors.New("session closed")
)

// ValidationError is a client-side precondition failure. Nothing was sent to the server.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError means the id is absent from the local ledger.
type NotFoundError struct {
	Kind string
	ID   ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// RemoteError wraps a network or server failure of a single remote call.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// PaymentUncertainError is reported when the backend answered ambiguously and the
// refetched ledger does not prove the payment was stored.
type PaymentUncertainError struct {
	FeeRecordID   ID
	Amount        Money
	PendingBefore Money
	PendingAfter  Money
	Err           error
}

func (e *PaymentUncertainError) Error() string {
	return fmt.Sprintf("payment status uncertain, please verify (fee %s, amount %s, pending before %s, pending now %s)",
		e.FeeRecordID, e.Amount, e.PendingBefore, e.PendingAfter)
}

func (e *PaymentUncertainError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
