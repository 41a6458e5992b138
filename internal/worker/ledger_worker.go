// Package worker consumes ledger events and fee reminders from AMQP.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"feeledger/internal/amqp"
	"feeledger/internal/feeapi"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/sheets"
)

// Notifier delivers a fee reminder to the student or the front desk.
type Notifier interface {
	Notify(ctx context.Context, m *amqp.FeeReminderMessage) error
}

// LogNotifier writes reminders to the log. It is the default when no
// delivery channel is configured.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(ctx context.Context, m *amqp.FeeReminderMessage) error {
	l := n.Logger
	if l == nil {
		l = log.Wrap(slog.Default(), log.ComponentReminder)
	}
	l.InfoContext(ctx, "Fee reminder",
		log.FieldFeeRecordID, m.FeeRecordID,
		log.FieldReminderKind, m.Kind,
		"student", m.StudentName,
		"admission_number", m.AdmissionNumber,
		"pending", m.Pending.String(),
		"due_date", m.DueDate.String())
	return nil
}

// LedgerWorker mirrors the ledger to a sheet whenever it changes and hands
// reminders to a Notifier.
type LedgerWorker struct {
	fees     feeapi.FeeReader
	store    *ledger.Store
	exporter sheets.LedgerExporter
	notifier Notifier
	logger   *log.Logger
}

// NewLedgerWorker wires a worker. exporter may be nil to disable the export;
// a nil notifier falls back to LogNotifier.
func NewLedgerWorker(fees feeapi.FeeReader, exporter sheets.LedgerExporter, notifier Notifier) *LedgerWorker {
	logger := log.Wrap(slog.Default(), log.ComponentWorker)
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &LedgerWorker{
		fees:     fees,
		store:    ledger.NewStore(),
		exporter: exporter,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle dispatches one decoded message. A returned error requeues it.
func (w *LedgerWorker) Handle(ctx context.Context, m amqp.Message) error {
	switch msg := m.(type) {
	case *amqp.LedgerEvent:
		return w.HandleLedgerEvent(ctx, msg)
	case *amqp.FeeReminderMessage:
		return w.HandleReminder(ctx, msg)
	default:
		w.logger.WarnContext(ctx, "Ignoring unsupported message", log.FieldEventType, m.MessageType())
		return nil
	}
}

// HandleLedgerEvent re-exports the whole ledger. The event only says that
// something changed; the backend list is the source of the rows.
func (w *LedgerWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type, log.FieldFeeRecordID, ev.FeeRecordID, "message_id", ev.ID)
	if err := w.Export(ctx); err != nil {
		return fmt.Errorf("export after %s: %w", ev.Type, err)
	}
	return nil
}

// Export fetches the ledger, recomputes totals and writes it to the sheet.
// It also runs once at startup in case events were lost.
func (w *LedgerWorker) Export(ctx context.Context) error {
	if w.exporter == nil {
		w.logger.DebugContext(ctx, "No exporter configured, skipping export")
		return nil
	}
	records, err := w.fees.ListFeeRecords(ctx)
	if err != nil {
		return fmt.Errorf("list fee records: %w", err)
	}
	w.store.ReplaceAll(records)

	n, err := w.exporter.ExportLedger(ctx, w.store.List())
	if err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}
	w.logger.InfoContext(ctx, "Ledger exported", log.FieldOperation, log.OpExport, "rows", n)
	return nil
}

func (w *LedgerWorker) HandleReminder(ctx context.Context, m *amqp.FeeReminderMessage) error {
	if err := w.notifier.Notify(ctx, m); err != nil {
		return fmt.Errorf("notify reminder %s: %w", m.ID, err)
	}
	return nil
}
