package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"feeledger/internal/core"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "nested", "journal.db"))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecordAndQuery(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Operation: "record_payment", FeeRecordID: "12", Amount: core.Cents(60000), Outcome: OutcomeOK, UserID: "u1", CreatedAt: base},
		{Operation: "delete_payment", FeeRecordID: "12", PaymentID: "91", Amount: core.Cents(40000), Outcome: OutcomeRolledBack, Error: "backend error 500", CreatedAt: base.Add(time.Minute)},
		{Operation: "create_fee", FeeRecordID: "13", Outcome: OutcomeOK, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Operation != "create_fee" || recent[1].Operation != "delete_payment" {
		t.Fatalf("unexpected recent entries: %+v", recent)
	}
	if recent[0].ID == "" {
		t.Fatalf("entry id not assigned")
	}

	forFee, err := j.ForFeeRecord(ctx, "12", 10)
	if err != nil {
		t.Fatalf("ForFeeRecord: %v", err)
	}
	if len(forFee) != 2 {
		t.Fatalf("got %d entries for fee 12", len(forFee))
	}
	rb := forFee[0]
	if rb.Outcome != OutcomeRolledBack || rb.PaymentID != "91" || rb.Amount != core.Cents(40000) || !rb.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("round trip lost data: %+v", rb)
	}
}

func TestReminderDedupe(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	day := core.NewDate(2025, 4, 2)

	sent, err := j.ReminderSent(ctx, "12", "overdue", day)
	if err != nil || sent {
		t.Fatalf("ReminderSent before marking = %v, %v", sent, err)
	}
	if _, ok, err := j.LastReminder(ctx, "12"); err != nil || ok {
		t.Fatalf("LastReminder on empty journal = %v, %v", ok, err)
	}

	for i := 0; i < 2; i++ {
		if err := j.MarkReminderSent(ctx, "12", "overdue", day); err != nil {
			t.Fatalf("MarkReminderSent: %v", err)
		}
	}
	if err := j.MarkReminderSent(ctx, "12", "due_soon", core.NewDate(2025, 3, 30)); err != nil {
		t.Fatalf("MarkReminderSent: %v", err)
	}

	sent, err = j.ReminderSent(ctx, "12", "overdue", day)
	if err != nil || !sent {
		t.Fatalf("ReminderSent after marking = %v, %v", sent, err)
	}
	if sent, _ := j.ReminderSent(ctx, "12", "overdue", core.NewDate(2025, 4, 3)); sent {
		t.Fatalf("reminder leaked to another day")
	}
	last, ok, err := j.LastReminder(ctx, "12")
	if err != nil || !ok || last != day {
		t.Fatalf("LastReminder = %v, %v, %v", last, ok, err)
	}
}

func TestJournalReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	if err := j.Record(context.Background(), Entry{Operation: "refresh", Outcome: OutcomeOK}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	j.Close()

	j, err = NewJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	if v := j.SchemaVersion(); v != 1 {
		t.Errorf("SchemaVersion() = %d after reopen, want 1", v)
	}
	got, err := j.Recent(context.Background(), 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent after reopen = %v, %v", got, err)
	}
}
