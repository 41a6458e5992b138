// Package sheets exports the fee ledger as a flat table. Adapters live in
// sheets/google (a Google spreadsheet) and sheets/memory.
package sheets

import (
	"context"

	"feeledger/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter replaces the exported table with the given records.
	LedgerExporter interface {
		ExportLedger(ctx context.Context, records []core.FeeRecord) (rows int, err error)
	}
)

// Header is the first row of every export.
var Header = []string{
	"Record ID", "Admission No", "Student", "Course",
	"Total", "Paid", "Pending", "Status", "Due Date",
}

// Row renders one record in Header order. Amounts use two decimals.
func Row(r core.FeeRecord) []string {
	return []string{
		r.ID.String(),
		r.Student.AdmissionNumber,
		r.Student.FullName,
		r.CourseName,
		r.TotalFee.String(),
		r.PaidAmount.String(),
		r.PendingAmount.String(),
		string(r.Status),
		r.DueDate.String(),
	}
}

// Table renders the header followed by one row per record.
func Table(records []core.FeeRecord) [][]string {
	out := make([][]string, 0, len(records)+1)
	out = append(out, Header)
	for _, r := range records {
		out = append(out, Row(r))
	}
	return out
}
