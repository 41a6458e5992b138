package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/log"
)

// LedgerSnapshot is the read side the reminder scan works on.
type LedgerSnapshot interface {
	Snapshot() []core.FeeRecord
}

// ReminderStore remembers which reminders went out.
type ReminderStore interface {
	ReminderSent(ctx context.Context, feeRecordID core.ID, kind string, day core.Date) (bool, error)
	MarkReminderSent(ctx context.Context, feeRecordID core.ID, kind string, day core.Date) error
	LastReminder(ctx context.Context, feeRecordID core.ID) (core.Date, bool, error)
}

// ReminderReport counts the outcome of one scan.
type ReminderReport struct {
	Scanned int                  `json:"scanned"`
	Skipped int                  `json:"skipped"`
	Sent    int                  `json:"sent"`
	Failed  int                  `json:"failed"`
	ByKind  map[ReminderKind]int `json:"by_kind"`
}

type ReminderService struct {
	ledger   LedgerSnapshot
	store    ReminderStore
	events   Publisher
	checkers []kindChecker
	logger   *log.Logger
}

type kindChecker struct {
	kind    ReminderKind
	checker ReminderChecker
}

func NewReminderService(ledger LedgerSnapshot, store ReminderStore, events Publisher, policy ReminderPolicy) (*ReminderService, error) {
	s := &ReminderService{
		ledger: ledger,
		store:  store,
		events: events,
		logger: log.Wrap(slog.Default(), log.ComponentReminder),
	}
	for _, kind := range reminderOrder {
		c, err := GetReminderChecker(kind, policy)
		if err != nil {
			return nil, err
		}
		s.checkers = append(s.checkers, kindChecker{kind: kind, checker: c})
	}
	return s, nil
}

// Run scans the ledger once and publishes the reminders due on now's day.
// Paid and advance records are skipped. A publish failure is counted and the
// scan goes on; a store failure aborts it.
func (s *ReminderService) Run(ctx context.Context, now time.Time) (ReminderReport, error) {
	today := core.DateOf(now)
	report := ReminderReport{ByKind: make(map[ReminderKind]int)}

	for _, r := range s.ledger.Snapshot() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if r.Status != core.StatusPending || r.DueDate.IsZero() {
			report.Skipped++
			continue
		}

		last, _, err := s.store.LastReminder(ctx, r.ID)
		if err != nil {
			return report, fmt.Errorf("read last reminder: %w", err)
		}
		kind, ok := s.pick(r, last, today)
		if !ok {
			report.Skipped++
			continue
		}
		sent, err := s.store.ReminderSent(ctx, r.ID, string(kind), today)
		if err != nil {
			return report, fmt.Errorf("check reminder: %w", err)
		}
		if sent {
			report.Skipped++
			continue
		}

		msg := amqp.NewFeeReminderMessage(r, string(kind), today)
		if err := s.events.Publish(ctx, msg); err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "Failed to publish fee reminder",
				log.FieldFeeRecordID, r.ID, log.FieldReminderKind, kind, log.FieldError, err)
			continue
		}
		if err := s.store.MarkReminderSent(ctx, r.ID, string(kind), today); err != nil {
			return report, fmt.Errorf("mark reminder: %w", err)
		}
		report.Sent++
		report.ByKind[kind]++
		s.logger.DebugContext(ctx, "Fee reminder published",
			log.FieldFeeRecordID, r.ID, log.FieldReminderKind, kind)
	}

	s.logger.InfoContext(ctx, "Reminder scan completed",
		log.FieldOperation, log.OpRemind, "day", today.String(),
		"scanned", report.Scanned, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

func (s *ReminderService) pick(r core.FeeRecord, last, today core.Date) (ReminderKind, bool) {
	for _, kc := range s.checkers {
		if kc.checker.NeedsReminder(r, last, today) {
			return kc.kind, true
		}
	}
	return "", false
}
