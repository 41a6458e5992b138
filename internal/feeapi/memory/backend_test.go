package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"feeledger/internal/core"
	"feeledger/internal/feeapi"
	"feeledger/internal/ledger"
)

func rupees(n int64) core.Money { return core.Cents(n * 100) }

func newBackend() *Backend {
	return New(
		WithStudents(core.Student{ID: "s1", FullName: "John Smith", AdmissionNumber: "ADM-1", BranchID: "b1"}),
		WithCourses(core.Course{ID: "c1", Name: "Tally", Price: rupees(1000)}),
		WithClock(func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }),
	)
}

func TestCreateComputesTotalsAndOpeningPayment(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	r, err := b.CreateFeeRecord(ctx, core.NewFeeRecord{StudentID: "s1", CourseName: "Tally", Discount: rupees(100), Penalty: rupees(50), PaidAmount: rupees(200)})
	if err != nil {
		t.Fatalf("CreateFeeRecord: %v", err)
	}
	if r.TotalFee != rupees(950) {
		t.Fatalf("total fee = %s, want 950.00", r.TotalFee)
	}
	if len(r.Payments) != 1 || r.Payments[0].Note != noteOpening || r.PendingAmount != rupees(750) {
		t.Fatalf("unexpected opening state: %+v", r)
	}
	if r.Student.FullName != "John Smith" {
		t.Fatalf("student snapshot missing: %+v", r.Student)
	}
	if !ledger.Consistent(r) {
		t.Fatalf("created record inconsistent")
	}

	if _, err := b.CreateFeeRecord(ctx, core.NewFeeRecord{StudentID: "ghost"}); err == nil {
		t.Fatalf("expected unknown student to be rejected")
	}
}

func TestUpdatePaidAmountRecordsAdjustment(t *testing.T) {
	b := newBackend()
	ctx := context.Background()
	r, _ := b.CreateFeeRecord(ctx, core.NewFeeRecord{StudentID: "s1", TotalFee: rupees(1000)})

	r, err := b.UpdatePaidAmount(ctx, r.ID, rupees(1200))
	if err != nil {
		t.Fatalf("UpdatePaidAmount: %v", err)
	}
	if r.Status != core.StatusAdvance || r.PendingAmount != rupees(-200) {
		t.Fatalf("expected advance of 200, got %s %s", r.Status, r.PendingAmount)
	}

	r, err = b.UpdatePaidAmount(ctx, r.ID, rupees(1000))
	if err != nil {
		t.Fatalf("UpdatePaidAmount down: %v", err)
	}
	if r.Status != core.StatusPaid || len(r.Payments) != 2 || r.Payments[1].AmountPaid != rupees(-200) {
		t.Fatalf("unexpected state after lowering paid amount: %+v", r)
	}
}

func TestPaymentLifecycle(t *testing.T) {
	b := newBackend()
	ctx := context.Background()
	r, _ := b.CreateFeeRecord(ctx, core.NewFeeRecord{StudentID: "s1", TotalFee: rupees(1000)})

	p, err := b.RecordPayment(ctx, core.NewPayment{FeeRecordID: r.ID, AmountPaid: rupees(600), PaymentMode: "Bank Transfer"})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if p.PaymentMode != core.ModeBankTransfer || p.PaymentDate != core.NewDate(2025, 3, 10) {
		t.Fatalf("unexpected payment defaults: %+v", p)
	}

	got, _ := b.GetFeeRecord(ctx, r.ID)
	if got.PendingAmount != rupees(400) {
		t.Fatalf("pending = %s", got.PendingAmount)
	}

	if err := b.DeletePayment(ctx, p.ID); err != nil {
		t.Fatalf("DeletePayment: %v", err)
	}
	got, _ = b.GetFeeRecord(ctx, r.ID)
	if got.PendingAmount != rupees(1000) || len(got.Payments) != 0 {
		t.Fatalf("delete did not restore balance: %+v", got)
	}

	var be *feeapi.Error
	if err := b.DeletePayment(ctx, p.ID); !errors.As(err, &be) || be.StatusCode != 404 {
		t.Fatalf("expected 404 for missing payment, got %v", err)
	}
}

func TestFaultInjection(t *testing.T) {
	b := newBackend()
	ctx := context.Background()
	r, _ := b.CreateFeeRecord(ctx, core.NewFeeRecord{StudentID: "s1", TotalFee: rupees(1000)})

	boom := errors.New("boom")
	b.FailNext(OpRecordPayment, boom, false)
	if _, err := b.RecordPayment(ctx, core.NewPayment{FeeRecordID: r.ID, AmountPaid: rupees(10), PaymentMode: core.ModeCash}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	got, _ := b.GetFeeRecord(ctx, r.ID)
	if len(got.Payments) != 0 {
		t.Fatalf("non-persisting fault stored a payment")
	}

	b.FailNext(OpRecordPayment, StatusColumnError(), true)
	_, err := b.RecordPayment(ctx, core.NewPayment{FeeRecordID: r.ID, AmountPaid: rupees(10), PaymentMode: core.ModeCash})
	if !feeapi.IsKnownStatusColumnBug(err) {
		t.Fatalf("expected status column error, got %v", err)
	}
	got, _ = b.GetFeeRecord(ctx, r.ID)
	if len(got.Payments) != 1 {
		t.Fatalf("persisting fault did not store the payment")
	}

	// Faults fire once.
	if _, err := b.RecordPayment(ctx, core.NewPayment{FeeRecordID: r.ID, AmountPaid: rupees(10), PaymentMode: core.ModeCash}); err != nil {
		t.Fatalf("second call should succeed: %v", err)
	}
	if b.Calls(OpRecordPayment) != 3 {
		t.Fatalf("calls = %d", b.Calls(OpRecordPayment))
	}

	b.FailNext(OpListFees, boom, false)
	if _, err := b.ListFeeRecords(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected list fault, got %v", err)
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed_students.json"), []byte(`[{"id":7,"full_name":"Seeded","admission_number":"S-7","branch_id":1}]`), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	b, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("NewFromFiles: %v", err)
	}
	ctx := context.Background()
	students, _ := b.ListStudents(ctx)
	if len(students) != 1 || students[0].ID != "7" {
		t.Fatalf("unexpected students %+v", students)
	}
	courses, _ := b.ListCourses(ctx)
	if len(courses) == 0 {
		t.Fatalf("expected default courses")
	}

	if err := os.WriteFile(filepath.Join(dir, "seed_branches.json"), []byte(`{broken`), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFiles(dir); err == nil {
		t.Fatalf("expected malformed seed to fail")
	}
}
