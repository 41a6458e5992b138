// Package storage keeps a local SQLite journal of ledger operations and of
// the fee reminders already sent.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/core"

	_ "modernc.org/sqlite"
)

// Outcome is how a ledger operation ended.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeRejected   Outcome = "rejected"
	OutcomeFailed     Outcome = "failed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeUncertain  Outcome = "uncertain"
)

const dayLayout = "2006-01-02"

// Entry is one journaled operation.
type Entry struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"`
	FeeRecordID core.ID    `json:"fee_record_id,omitempty"`
	PaymentID   core.ID    `json:"payment_id,omitempty"`
	Amount      core.Money `json:"amount"`
	Outcome     Outcome    `json:"outcome"`
	Error       string     `json:"error,omitempty"`
	UserID      core.ID    `json:"user_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Journal struct {
	db      *sql.DB
	now     func() time.Time
	version uint
}

func NewJournal(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := migrateJournal(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, now: time.Now, version: version}, nil
}

// SchemaVersion is the migration version the journal was opened at.
func (j *Journal) SchemaVersion() uint { return j.version }

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Record appends e, filling in the id and timestamp when unset.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO ledger_operations (id, operation, fee_record_id, payment_id, amount_cents, outcome, error, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Operation, string(e.FeeRecordID), string(e.PaymentID), e.Amount.Cents,
		string(e.Outcome), e.Error, string(e.UserID), e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert ledger operation: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return j.query(ctx,
		`SELECT id, operation, fee_record_id, payment_id, amount_cents, outcome, error, user_id, created_at
		 FROM ledger_operations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// ForFeeRecord returns one record's entries, newest first.
func (j *Journal) ForFeeRecord(ctx context.Context, id core.ID, limit int) ([]Entry, error) {
	return j.query(ctx,
		`SELECT id, operation, fee_record_id, payment_id, amount_cents, outcome, error, user_id, created_at
		 FROM ledger_operations WHERE fee_record_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, string(id), limit)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger operations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                            Entry
			feeID, payID, uid, outcome string
			created                      string
		)
		if err := rows.Scan(&e.ID, &e.Operation, &feeID, &payID, &e.Amount.Cents, &outcome, &e.Error, &uid, &created); err != nil {
			return nil, fmt.Errorf("scan ledger operation: %w", err)
		}
		e.FeeRecordID, e.PaymentID, e.UserID, e.Outcome = core.ID(feeID), core.ID(payID), core.ID(uid), Outcome(outcome)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReminderSent reports whether a reminder of kind went out for the record on day.
func (j *Journal) ReminderSent(ctx context.Context, feeRecordID core.ID, kind string, day core.Date) (bool, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM reminders_sent WHERE fee_record_id = ? AND kind = ? AND sent_on = ?`,
		string(feeRecordID), kind, day.Format(dayLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query reminders: %w", err)
	}
	return n > 0, nil
}

// MarkReminderSent records a reminder. Marking the same day twice is a no-op.
func (j *Journal) MarkReminderSent(ctx context.Context, feeRecordID core.ID, kind string, day core.Date) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminders_sent (fee_record_id, kind, sent_on, created_at) VALUES (?, ?, ?, ?)`,
		string(feeRecordID), kind, day.Format(dayLayout), j.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// LastReminder returns the most recent day any reminder went out for the record.
func (j *Journal) LastReminder(ctx context.Context, feeRecordID core.ID) (core.Date, bool, error) {
	var day sql.NullString
	err := j.db.QueryRowContext(ctx,
		`SELECT MAX(sent_on) FROM reminders_sent WHERE fee_record_id = ?`, string(feeRecordID)).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !day.Valid) {
		return core.Date{}, false, nil
	}
	if err != nil {
		return core.Date{}, false, fmt.Errorf("query last reminder: %w", err)
	}
	d, err := core.ParseDate(day.String)
	if err != nil {
		return core.Date{}, false, err
	}
	return d, true, nil
}
