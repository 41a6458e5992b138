package worker

import (
	"context"
	"errors"
	"testing"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/feeapi/memory"
	sheetsmem "feeledger/internal/sheets/memory"
)

type recordingNotifier struct {
	got []*amqp.FeeReminderMessage
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, m *amqp.FeeReminderMessage) error {
	if n.err != nil {
		return n.err
	}
	n.got = append(n.got, m)
	return nil
}

func seededBackend() *memory.Backend {
	b := memory.New()
	b.Put(core.FeeRecord{
		ID:       "1",
		Student:  core.StudentRef{ID: "1", FullName: "John Smith", AdmissionNumber: "ADM-001"},
		TotalFee: core.Cents(100000),
		Payments: []core.Payment{{ID: "2", AmountPaid: core.Cents(30000), PaymentMode: core.ModeCash}},
	})
	return b
}

func TestLedgerEventExportsLedger(t *testing.T) {
	b := seededBackend()
	exporter := sheetsmem.New()
	w := NewLedgerWorker(b, exporter, nil)

	ev := amqp.NewLedgerEvent(amqp.EventPaymentRecorded, core.FeeRecord{ID: "1"}, "2", core.Cents(30000))
	if err := w.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	table := exporter.Table()
	if len(table) != 2 {
		t.Fatalf("table = %v, want header and one row", table)
	}
	if table[1][5] != "300.00" || table[1][6] != "700.00" || table[1][7] != "Pending" {
		t.Fatalf("row = %v", table[1])
	}
}

func TestLedgerEventRequeuesOnBackendFailure(t *testing.T) {
	b := seededBackend()
	b.FailNext(memory.OpListFees, errors.New("down"), false)
	exporter := sheetsmem.New()
	w := NewLedgerWorker(b, exporter, nil)

	ev := amqp.NewLedgerEvent(amqp.EventFeeCreated, core.FeeRecord{ID: "1"}, "", core.Money{})
	if err := w.Handle(context.Background(), ev); err == nil {
		t.Fatalf("expected error so the message is requeued")
	}
	if exporter.Exports() != 0 {
		t.Fatalf("nothing should be exported")
	}
}

func TestExportWithoutExporterIsNoop(t *testing.T) {
	b := seededBackend()
	w := NewLedgerWorker(b, nil, nil)
	if err := w.Export(context.Background()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if b.Calls(memory.OpListFees) != 0 {
		t.Fatalf("backend should not be read without an exporter")
	}
}

func TestReminderGoesToNotifier(t *testing.T) {
	n := &recordingNotifier{}
	w := NewLedgerWorker(seededBackend(), nil, n)
	msg := amqp.NewFeeReminderMessage(core.FeeRecord{ID: "1"}, "overdue", core.NewDate(2025, 3, 10))

	if err := w.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(n.got) != 1 || n.got[0].Kind != "overdue" {
		t.Fatalf("notifier got %v", n.got)
	}

	n.err = errors.New("sms gateway down")
	if err := w.Handle(context.Background(), msg); err == nil {
		t.Fatalf("notifier failure must be returned")
	}
}

func TestLogNotifierAcceptsReminder(t *testing.T) {
	msg := amqp.NewFeeReminderMessage(core.FeeRecord{ID: "1"}, "due_soon", core.NewDate(2025, 3, 10))
	if err := (LogNotifier{}).Notify(context.Background(), msg); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}
