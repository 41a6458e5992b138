// Package services orchestrates the fee ledger: the reconciliation controller,
// lookup loading and fee reminders.
//
// This file implements the Strategy Pattern for fee reminders. Each reminder
// kind (due soon, overdue, follow up) has its own checker that decides
// whether a pending fee record needs that reminder today.

package services

import (
	"fmt"
	"time"

	"feeledger/internal/core"
)

type ReminderKind string

const (
	ReminderDueSoon  ReminderKind = "due_soon"
	ReminderOverdue  ReminderKind = "overdue"
	ReminderFollowUp ReminderKind = "follow_up"
)

// ReminderPolicy holds the reminder windows in days.
type ReminderPolicy struct {
	DueSoonDays  int
	FollowUpDays int
}

func DefaultReminderPolicy() ReminderPolicy {
	return ReminderPolicy{DueSoonDays: 3, FollowUpDays: 7}
}

// ReminderChecker is the strategy interface for one reminder kind.
type ReminderChecker interface {
	// NeedsReminder reports whether r should be reminded today. last is the
	// day of the newest reminder of any kind, zero when none was sent.
	NeedsReminder(r core.FeeRecord, last, today core.Date) bool
}

// DueSoonChecker fires once when the due date comes within Days days.
type DueSoonChecker struct{ Days int }

func (c DueSoonChecker) NeedsReminder(r core.FeeRecord, last, today core.Date) bool {
	if r.DueDate.IsZero() || !today.Before(r.DueDate.Time) {
		return false
	}
	if daysBetween(today, r.DueDate) > c.Days {
		return false
	}
	windowOpens := addDays(r.DueDate, -c.Days)
	return last.IsZero() || last.Before(windowOpens.Time)
}

// OverdueChecker fires on the first run after the due date has passed.
type OverdueChecker struct{}

func (OverdueChecker) NeedsReminder(r core.FeeRecord, last, today core.Date) bool {
	if r.DueDate.IsZero() {
		return false
	}
	overdueSince := addDays(r.DueDate, 1)
	if today.Before(overdueSince.Time) {
		return false
	}
	return last.IsZero() || last.Before(overdueSince.Time)
}

// FollowUpChecker repeats the overdue reminder every Days days.
type FollowUpChecker struct{ Days int }

func (c FollowUpChecker) NeedsReminder(r core.FeeRecord, last, today core.Date) bool {
	if r.DueDate.IsZero() || last.IsZero() {
		return false
	}
	overdueSince := addDays(r.DueDate, 1)
	if today.Before(overdueSince.Time) || last.Before(overdueSince.Time) {
		return false
	}
	return daysBetween(last, today) >= c.Days
}

// reminderStrategies maps reminder kinds to checker constructors.
var reminderStrategies = map[ReminderKind]func(ReminderPolicy) ReminderChecker{
	ReminderOverdue:  func(ReminderPolicy) ReminderChecker { return OverdueChecker{} },
	ReminderFollowUp: func(p ReminderPolicy) ReminderChecker { return FollowUpChecker{Days: p.FollowUpDays} },
	ReminderDueSoon:  func(p ReminderPolicy) ReminderChecker { return DueSoonChecker{Days: p.DueSoonDays} },
}

// reminderOrder is the order kinds are tried in. A record gets at most one
// reminder per run.
var reminderOrder = []ReminderKind{ReminderOverdue, ReminderFollowUp, ReminderDueSoon}

// GetReminderChecker returns the checker for kind configured with p.
func GetReminderChecker(kind ReminderKind, p ReminderPolicy) (ReminderChecker, error) {
	build, ok := reminderStrategies[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reminder kind: %s", kind)
	}
	return build(p), nil
}

// RegisterReminderChecker adds or replaces a reminder kind. New kinds are
// tried after the built-in ones.
func RegisterReminderChecker(kind ReminderKind, build func(ReminderPolicy) ReminderChecker) {
	if _, ok := reminderStrategies[kind]; !ok {
		reminderOrder = append(reminderOrder, kind)
	}
	reminderStrategies[kind] = build
}

func addDays(d core.Date, n int) core.Date {
	return core.DateOf(d.AddDate(0, 0, n))
}

func daysBetween(from, to core.Date) int {
	return int(to.Sub(from.Time) / (24 * time.Hour))
}
