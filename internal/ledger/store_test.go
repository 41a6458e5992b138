package ledger

import (
	"testing"

	"feeledger/internal/core"
)

func assertInvariant(t *testing.T, s *Store) {
	t.Helper()
	for _, r := range s.List() {
		var sum core.Money
		for _, p := range r.Payments {
			sum = sum.Add(p.AmountPaid)
		}
		if r.PaidAmount != sum {
			t.Fatalf("record %s: paid %s != sum %s", r.ID, r.PaidAmount, sum)
		}
		if r.PendingAmount != r.TotalFee.Sub(r.PaidAmount) {
			t.Fatalf("record %s: pending %s != total %s - paid %s", r.ID, r.PendingAmount, r.TotalFee, r.PaidAmount)
		}
		if r.Status != ComputeStatus(r.PendingAmount) {
			t.Fatalf("record %s: status %s does not match pending %s", r.ID, r.Status, r.PendingAmount)
		}
	}
}

func TestStoreBalanceInvariantAcrossMutations(t *testing.T) {
	s := NewStore()
	// Server-reported totals are ignored in favour of the payments.
	s.UpsertFeeRecord(core.FeeRecord{ID: "f1", TotalFee: rupees(1000), PaidAmount: rupees(7), Status: core.StatusPaid})
	s.UpsertFeeRecord(core.FeeRecord{ID: "f2", TotalFee: rupees(500)})
	assertInvariant(t, s)

	steps := []func() error{
		func() error { return s.AppendPayment("f1", core.Payment{ID: "p1", AmountPaid: rupees(600)}) },
		func() error { return s.AppendPayment("f1", core.Payment{ID: "p2", AmountPaid: rupees(400)}) },
		func() error { return s.AppendPayment("f2", core.Payment{ID: "p3", AmountPaid: rupees(50)}) },
		func() error { _, err := s.RemovePayment("f1", "p2"); return err },
		func() error { return s.AppendPayment("f1", core.Payment{ID: "p4", AmountPaid: rupees(700)}) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		assertInvariant(t, s)
	}

	f1, _ := s.Get("f1")
	if f1.PendingAmount != rupees(-300) || f1.Status != core.StatusAdvance {
		t.Fatalf("unexpected f1: pending=%s status=%s", f1.PendingAmount, f1.Status)
	}
	if len(f1.Payments) != 2 || f1.Payments[0].ID != "p1" || f1.Payments[1].ID != "p4" {
		t.Fatalf("payment order not preserved: %+v", f1.Payments)
	}
	if f1.Payments[1].FeeRecordID != "f1" {
		t.Fatalf("appended payment not bound to its record")
	}
}

func TestStoreNotFound(t *testing.T) {
	s := NewStore()
	s.UpsertFeeRecord(core.FeeRecord{ID: "f1", TotalFee: rupees(10)})

	if err := s.AppendPayment("nope", core.Payment{ID: "p"}); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError for record, got %v", err)
	}
	if _, err := s.RemovePayment("nope", "p"); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError for record, got %v", err)
	}
	if _, err := s.RemovePayment("f1", "p"); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError for payment, got %v", err)
	}
	if _, err := s.Get("nope"); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError from Get, got %v", err)
	}
	if err := s.RemoveFeeRecord("nope"); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError from RemoveFeeRecord, got %v", err)
	}
}

func TestStoreRejectsDuplicatePayment(t *testing.T) {
	s := NewStore()
	s.UpsertFeeRecord(core.FeeRecord{ID: "f1", TotalFee: rupees(10)})
	if err := s.AppendPayment("f1", core.Payment{ID: "p1", AmountPaid: rupees(1)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendPayment("f1", core.Payment{ID: "p1", AmountPaid: rupees(1)}); err == nil {
		t.Fatalf("expected duplicate payment to be rejected")
	}
	assertInvariant(t, s)
}

func TestStoreReplaceAllAndOrder(t *testing.T) {
	s := NewStore()
	s.UpsertFeeRecord(core.FeeRecord{ID: "old", TotalFee: rupees(1)})
	s.ReplaceAll([]core.FeeRecord{
		{ID: "b", TotalFee: rupees(2)},
		{ID: "a", TotalFee: rupees(3), Payments: []core.Payment{{ID: "x", AmountPaid: rupees(3)}}},
	})
	got := s.List()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected order after ReplaceAll: %+v", got)
	}
	if _, err := s.Get("old"); !core.IsNotFound(err) {
		t.Fatalf("old record survived ReplaceAll")
	}
	if got[1].Status != core.StatusPaid {
		t.Fatalf("expected a to be Paid, got %s", got[1].Status)
	}
	assertInvariant(t, s)

	if err := s.RemoveFeeRecord("b"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Len() != 1 || s.List()[0].ID != "a" {
		t.Fatalf("unexpected ledger after removal: %+v", s.List())
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	s.UpsertFeeRecord(core.FeeRecord{ID: "f1", TotalFee: rupees(10), Payments: []core.Payment{{ID: "p", AmountPaid: rupees(1)}}})
	r, _ := s.Get("f1")
	r.Payments[0].AmountPaid = rupees(9)
	again, _ := s.Get("f1")
	if again.Payments[0].AmountPaid != rupees(1) {
		t.Fatalf("Get leaked internal storage")
	}
}

func TestStoreVersionGrows(t *testing.T) {
	s := NewStore()
	v1 := s.UpsertFeeRecord(core.FeeRecord{ID: "f1", TotalFee: rupees(10)})
	if err := s.AppendPayment("f1", core.Payment{ID: "p", AmountPaid: rupees(1)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	v2, ok := s.Version("f1")
	if !ok || v2 <= v1 {
		t.Fatalf("version did not grow: v1=%d v2=%d", v1, v2)
	}
	if _, ok := s.Version("missing"); ok {
		t.Fatalf("expected no version for missing record")
	}
}
