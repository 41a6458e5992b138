package feeapi

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKnownStatusColumnBug(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("status truncated"), false},
		{"structured code", &Error{StatusCode: 500, Code: CodeStatusColumnTruncated}, true},
		{"other code wins over message", &Error{StatusCode: 500, Code: "DB_DOWN", Message: "status unknown"}, false},
		{"message mentions status", &Error{StatusCode: 500, Message: "Data truncated for column 'Status' at row 1"}, true},
		{"message mentions truncated", &Error{StatusCode: 500, Message: "value truncated"}, true},
		{"unrelated message", &Error{StatusCode: 500, Message: "connection reset"}, false},
		{"wrapped", fmt.Errorf("record payment: %w", &Error{StatusCode: 500, Code: CodeStatusColumnTruncated}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKnownStatusColumnBug(tt.err); got != tt.want {
				t.Errorf("IsKnownStatusColumnBug(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	e := &Error{StatusCode: 404, Message: "Fee not found"}
	if e.Error() != "backend error 404: Fee not found" {
		t.Fatalf("unexpected message %q", e.Error())
	}
	e = &Error{StatusCode: 500, Code: "X"}
	if e.Error() != "backend error 500 (X): unexpected response" {
		t.Fatalf("unexpected message %q", e.Error())
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"404", &Error{StatusCode: 404, Message: "Fee not found"}, true},
		{"wrapped 404", fmt.Errorf("get fee record: %w", &Error{StatusCode: 404}), true},
		{"500", &Error{StatusCode: 500}, false},
		{"plain error", errors.New("not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
