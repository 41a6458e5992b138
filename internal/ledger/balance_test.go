package ledger

import (
	"testing"

	"feeledger/internal/core"
)

func rupees(n int64) core.Money { return core.Cents(n * 100) }

func TestComputeStatusBoundaries(t *testing.T) {
	cases := []struct {
		pending core.Money
		want    core.Status
	}{
		{core.Cents(0), core.StatusPaid},
		{core.Cents(1), core.StatusPending},
		{core.Cents(-1), core.StatusAdvance},
		{rupees(1000), core.StatusPending},
		{rupees(-200), core.StatusAdvance},
	}
	for _, tc := range cases {
		if got := ComputeStatus(tc.pending); got != tc.want {
			t.Errorf("ComputeStatus(%s) = %s, want %s", tc.pending, got, tc.want)
		}
	}
}

func TestRunningBalanceUsesLedgerOrderNotDate(t *testing.T) {
	r := core.FeeRecord{
		ID:       "fee-1",
		TotalFee: rupees(1000),
		Payments: []core.Payment{
			{ID: "p1", AmountPaid: rupees(500), PaymentDate: core.NewDate(2025, 5, 10)},
			// Backdated: entered second, dated earlier.
			{ID: "p2", AmountPaid: rupees(300), PaymentDate: core.NewDate(2025, 1, 2)},
		},
	}

	want := []struct {
		id            core.ID
		before, after core.Money
	}{
		{"p1", rupees(1000), rupees(500)},
		{"p2", rupees(500), rupees(200)},
	}
	for _, w := range want {
		before, err := RunningBalanceBefore(r, w.id)
		if err != nil {
			t.Fatalf("before %s: %v", w.id, err)
		}
		after, err := RunningBalanceAfter(r, w.id)
		if err != nil {
			t.Fatalf("after %s: %v", w.id, err)
		}
		if before != w.before || after != w.after {
			t.Fatalf("%s: got before=%s after=%s, want %s/%s", w.id, before, after, w.before, w.after)
		}
	}
}

func TestRunningBalanceUnknownPayment(t *testing.T) {
	r := core.FeeRecord{ID: "fee-1", TotalFee: rupees(10)}
	if _, err := RunningBalanceBefore(r, "missing"); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := RunningBalanceAfter(r, "missing"); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := BuildReceipt(r, "missing"); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRecomputeTotals(t *testing.T) {
	r := core.FeeRecord{
		TotalFee: rupees(1000),
		Payments: []core.Payment{
			{ID: "a", AmountPaid: rupees(600)},
			{ID: "b", AmountPaid: rupees(600)},
		},
	}
	got := RecomputeTotals(r)
	if got.PaidAmount != rupees(1200) || got.PendingAmount != rupees(-200) || got.Status != core.StatusAdvance {
		t.Fatalf("unexpected totals: %+v", got)
	}

	got.Apply(&r)
	if !Consistent(r) {
		t.Fatalf("record should be consistent after Apply")
	}
	r.PaidAmount = rupees(1)
	if Consistent(r) {
		t.Fatalf("tampered record reported consistent")
	}
}

func TestBuildReceipt(t *testing.T) {
	r := core.FeeRecord{
		ID:         "fee-9",
		Student:    core.StudentRef{ID: "s1", FullName: "Asha Rao"},
		CourseName: "Tally",
		TotalFee:   rupees(900),
		Payments: []core.Payment{
			{ID: "p1", AmountPaid: rupees(100)},
			{ID: "p2", AmountPaid: rupees(250)},
		},
	}
	rc, err := BuildReceipt(r, "p2")
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if rc.Position != 2 || rc.PreviousBalance != rupees(800) || rc.CurrentBalance != rupees(550) {
		t.Fatalf("unexpected receipt: %+v", rc)
	}
	if rc.Student.FullName != "Asha Rao" || rc.CourseName != "Tally" {
		t.Fatalf("receipt lost record context: %+v", rc)
	}
}
