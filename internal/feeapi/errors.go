package feeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CodeStatusColumnTruncated is the structured code for the backend's known
// fault: the payment row is stored but updating the fee record's status
// column fails afterwards.
const CodeStatusColumnTruncated = "STATUS_COLUMN_TRUNCATED"

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unexpected response"
	}
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, msg)
}

// IsKnownStatusColumnBug reports whether err looks like the status column
// fault. A true result only means the payment may have been stored; callers
// must refetch and compare balances before deciding.
//
// The structured code wins when the backend sends one. Older deployments only
// send a message, so the heuristic falls back to matching it.
func IsKnownStatusColumnBug(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	if be.Code != "" {
		return be.Code == CodeStatusColumnTruncated
	}
	msg := strings.ToLower(be.Message)
	return strings.Contains(msg, "status") || strings.Contains(msg, "truncated")
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.StatusCode == http.StatusNotFound
}
