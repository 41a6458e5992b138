// Package ledger holds the fee ledger: pure balance calculations over a fee
// record snapshot and the in-memory store the controller mutates.
//
// Balances follow ledger order, which is the order payments were entered,
// never their payment date.
package ledger

import (
	"feeledger/internal/core"
)

// Totals are the derived values of a fee record.
type Totals struct {
	PaidAmount    core.Money
	PendingAmount core.Money
	Status        core.Status
}

// Receipt carries the values printed on a payment receipt.
type Receipt struct {
	FeeRecordID     core.ID
	Student         core.StudentRef
	CourseName      string
	TotalFee        core.Money
	Payment         core.Payment
	Position        int // 1-based installment number
	PreviousBalance core.Money
	CurrentBalance  core.Money
}

// ComputeStatus maps the sign of the pending amount. Zero is Paid.
func ComputeStatus(pending core.Money) core.Status {
	switch pending.Sign() {
	case 0:
		return core.StatusPaid
	case 1:
		return core.StatusPending
	default:
		return core.StatusAdvance
	}
}

// RecomputeTotals sums the payments and derives pending and status.
func RecomputeTotals(r core.FeeRecord) Totals {
	var paid core.Money
	for _, p := range r.Payments {
		paid = paid.Add(p.AmountPaid)
	}
	pending := r.TotalFee.Sub(paid)
	return Totals{
		PaidAmount:    paid,
		PendingAmount: pending,
		Status:        ComputeStatus(pending),
	}
}

// Apply writes t into r's derived fields.
func (t Totals) Apply(r *core.FeeRecord) {
	r.PaidAmount = t.PaidAmount
	r.PendingAmount = t.PendingAmount
	r.Status = t.Status
}

// RunningBalanceBefore is the total fee minus every payment that precedes
// paymentID in the payment list.
func RunningBalanceBefore(r core.FeeRecord, paymentID core.ID) (core.Money, error) {
	idx := r.PaymentIndex(paymentID)
	if idx < 0 {
		return core.Money{}, &core.NotFoundError{Kind: "payment", ID: paymentID}
	}
	balance := r.TotalFee
	for _, p := range r.Payments[:idx] {
		balance = balance.Sub(p.AmountPaid)
	}
	return balance, nil
}

// RunningBalanceAfter is RunningBalanceBefore minus the payment itself.
func RunningBalanceAfter(r core.FeeRecord, paymentID core.ID) (core.Money, error) {
	before, err := RunningBalanceBefore(r, paymentID)
	if err != nil {
		return core.Money{}, err
	}
	p := r.Payments[r.PaymentIndex(paymentID)]
	return before.Sub(p.AmountPaid), nil
}

// BuildReceipt assembles the receipt view for one payment.
func BuildReceipt(r core.FeeRecord, paymentID core.ID) (Receipt, error) {
	before, err := RunningBalanceBefore(r, paymentID)
	if err != nil {
		return Receipt{}, err
	}
	idx := r.PaymentIndex(paymentID)
	p := r.Payments[idx]
	return Receipt{
		FeeRecordID:     r.ID,
		Student:         r.Student,
		CourseName:      r.CourseName,
		TotalFee:        r.TotalFee,
		Payment:         p,
		Position:        idx + 1,
		PreviousBalance: before,
		CurrentBalance:  before.Sub(p.AmountPaid),
	}, nil
}

// Consistent reports whether r's stored totals match its payments.
func Consistent(r core.FeeRecord) bool {
	t := RecomputeTotals(r)
	return r.PaidAmount == t.PaidAmount && r.PendingAmount == t.PendingAmount && r.Status == t.Status
}
