package query

import (
	"time"

	"feeledger/internal/core"
)

// FeeRecords lists fee records by student, course and status.
var FeeRecords = Schema[core.FeeRecord]{
	Text: map[string]func(core.FeeRecord) string{
		"student_name":     func(r core.FeeRecord) string { return r.Student.FullName },
		"admission_number": func(r core.FeeRecord) string { return r.Student.AdmissionNumber },
		"course_name":      func(r core.FeeRecord) string { return r.CourseName },
		"status":           func(r core.FeeRecord) string { return string(r.Status) },
		"branch_id":        func(r core.FeeRecord) string { return string(r.Student.BranchID) },
	},
	Numbers: map[string]func(core.FeeRecord) int64{
		"total_fee":      func(r core.FeeRecord) int64 { return r.TotalFee.Cents },
		"paid_amount":    func(r core.FeeRecord) int64 { return r.PaidAmount.Cents },
		"pending_amount": func(r core.FeeRecord) int64 { return r.PendingAmount.Cents },
	},
	Dates: map[string]func(core.FeeRecord) time.Time{
		"due_date":          func(r core.FeeRecord) time.Time { return r.DueDate.Time },
		"last_payment_date": lastPaymentDate,
	},
	SearchFields: []string{"student_name", "admission_number"},
	DateField:    "due_date",
}

// Students is the student directory listing.
var Students = Schema[core.Student]{
	Text: map[string]func(core.Student) string{
		"full_name":        func(s core.Student) string { return s.FullName },
		"admission_number": func(s core.Student) string { return s.AdmissionNumber },
		"course_name":      func(s core.Student) string { return s.CourseName },
		"status":           func(s core.Student) string { return s.Status },
		"branch_id":        func(s core.Student) string { return string(s.BranchID) },
	},
	Dates: map[string]func(core.Student) time.Time{
		"admission_date": func(s core.Student) time.Time { return s.AdmissionDate.Time },
	},
	SearchFields: []string{"full_name", "admission_number"},
	DateField:    "admission_date",
}

// AssetTransfers lists stock moved between branches.
var AssetTransfers = Schema[core.AssetTransfer]{
	Text: map[string]func(core.AssetTransfer) string{
		"asset_name":     func(a core.AssetTransfer) string { return a.AssetName },
		"asset_code":     func(a core.AssetTransfer) string { return a.AssetCode },
		"status":         func(a core.AssetTransfer) string { return a.Status },
		"from_branch_id": func(a core.AssetTransfer) string { return string(a.FromBranchID) },
		"to_branch_id":   func(a core.AssetTransfer) string { return string(a.ToBranchID) },
	},
	Numbers: map[string]func(core.AssetTransfer) int64{
		"quantity": func(a core.AssetTransfer) int64 { return a.Quantity },
	},
	Dates: map[string]func(core.AssetTransfer) time.Time{
		"transfer_date": func(a core.AssetTransfer) time.Time { return a.TransferDate.Time },
	},
	SearchFields: []string{"asset_name", "asset_code"},
	DateField:    "transfer_date",
}

// lastPaymentDate is the latest payment date on the record, zero without payments.
func lastPaymentDate(r core.FeeRecord) time.Time {
	var last time.Time
	for _, p := range r.Payments {
		if p.PaymentDate.After(last) {
			last = p.PaymentDate.Time
		}
	}
	return last
}
