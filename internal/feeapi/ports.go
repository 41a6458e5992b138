// Package feeapi describes the remote fee backend the ledger reconciles with.
// Adapters live in feeapi/rest (the HTTP service) and feeapi/memory (an
// in-process stand-in with the same semantics).
package feeapi

import (
	"context"

	"feeledger/internal/core"
)

// Ports for the remote backend.
type (
	FeeReader interface {
		ListFeeRecords(ctx context.Context) ([]core.FeeRecord, error)
		GetFeeRecord(ctx context.Context, id core.ID) (core.FeeRecord, error)
	}

	FeeWriter interface {
		CreateFeeRecord(ctx context.Context, in core.NewFeeRecord) (core.FeeRecord, error)
		// UpdatePaidAmount is the manual override of a record's paid amount.
		UpdatePaidAmount(ctx context.Context, id core.ID, paid core.Money) (core.FeeRecord, error)
		DeleteFeeRecord(ctx context.Context, id core.ID) error
	}

	PaymentWriter interface {
		RecordPayment(ctx context.Context, in core.NewPayment) (core.Payment, error)
		DeletePayment(ctx context.Context, id core.ID) error
	}

	// LookupReader feeds selection lists.
	LookupReader interface {
		ListFeeStructures(ctx context.Context) ([]core.FeeStructure, error)
		ListCourses(ctx context.Context) ([]core.Course, error)
		ListStudents(ctx context.Context) ([]core.Student, error)
		ListBranches(ctx context.Context) ([]core.Branch, error)
	}

	// API is the whole remote surface.
	API interface {
		FeeReader
		FeeWriter
		PaymentWriter
		LookupReader
	}
)
