package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	StatusPaid    Status = "Paid"
	StatusPending Status = "Pending"
	StatusAdvance Status = "Advance"
)

const (
	ModeCash         PaymentMode = "cash"
	ModeOnline       PaymentMode = "online"
	ModeCheque       PaymentMode = "cheque"
	ModeBankTransfer PaymentMode = "bank_transfer"
)

const dateLayout = "2006-01-02"

type (
	// ID is a backend identifier. The backend sends numbers; strings are accepted too.
	ID string

	Status string

	PaymentMode string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// StudentRef is the denormalized student snapshot carried by a fee record.
	StudentRef struct {
		ID              ID     `json:"id"`
		FullName        string `json:"full_name"`
		AdmissionNumber string `json:"admission_number"`
		BranchID        ID     `json:"branch_id"`
	}

	Payment struct {
		ID          ID          `json:"id"`
		FeeRecordID ID          `json:"student_fee_id"`
		AmountPaid  Money       `json:"amount_paid"`
		PaymentDate Date        `json:"payment_date"`
		PaymentMode PaymentMode `json:"payment_mode"`
		Note        string      `json:"note,omitempty"`
	}

	Installment struct {
		ID      ID     `json:"id"`
		Amount  Money  `json:"amount"`
		DueDate Date   `json:"due_date"`
		Status  string `json:"status,omitempty"`
	}

	// FeeRecord is one student's fee ledger for one course enrollment.
	// PaidAmount, PendingAmount and Status are derived from Payments.
	FeeRecord struct {
		ID            ID            `json:"id"`
		Student       StudentRef    `json:"student"`
		CourseName    string        `json:"course_name"`
		TotalFee      Money         `json:"total_fee"`
		PaidAmount    Money         `json:"paid_amount"`
		PendingAmount Money         `json:"pending_amount"`
		Status        Status        `json:"status"`
		DueDate       Date          `json:"due_date"`
		Discount      Money         `json:"discount"`
		Penalty       Money         `json:"penalty"`
		Payments      []Payment     `json:"payments"`
		Installments  []Installment `json:"installments,omitempty"`
	}

	// NewFeeRecord is the "generate fee" request.
	NewFeeRecord struct {
		StudentID  ID     `json:"student_id" validate:"required"`
		CourseName string `json:"course_name"`
		TotalFee   Money  `json:"total_fee"`
		DueDate    Date   `json:"due_date"`
		PaidAmount Money  `json:"paid_amount"`
		Discount   Money  `json:"discount"`
		Penalty    Money  `json:"penalty"`
	}

	// NewPayment is the "record payment" request.
	NewPayment struct {
		FeeRecordID ID          `json:"student_fee_id" validate:"required"`
		PaymentDate Date        `json:"payment_date"`
		PaymentMode PaymentMode `json:"payment_mode" validate:"required,oneof=cash online cheque bank_transfer"`
		AmountPaid  Money       `json:"amount_paid"`
		Note        string      `json:"note" validate:"max=500"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidPaymentMode = errors.New("invalid payment mode")
)

func (id ID) String() string { return string(id) }

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers, everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses YYYY-MM-DD, falling back to RFC 3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode date %s: %w", data, err)
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParsePaymentMode accepts the wire values and the labels shown in forms
// ("Cash", "Bank Transfer", ...).
func ParsePaymentMode(s string) (PaymentMode, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch PaymentMode(norm) {
	case ModeCash, ModeOnline, ModeCheque, ModeBankTransfer:
		return PaymentMode(norm), nil
	case "banktransfer":
		return ModeBankTransfer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMode, s)
}

func (m PaymentMode) Validate() error {
	_, err := ParsePaymentMode(string(m))
	return err
}

// ComputeTotalFee applies the generate-fee rule: course price minus discount plus penalty.
func ComputeTotalFee(price, discount, penalty Money) Money {
	return price.Sub(discount).Add(penalty)
}

// Clone returns a deep copy so callers can mutate payments freely.
func (r FeeRecord) Clone() FeeRecord {
	out := r
	if r.Payments != nil {
		out.Payments = append([]Payment(nil), r.Payments...)
	}
	if r.Installments != nil {
		out.Installments = append([]Installment(nil), r.Installments...)
	}
	return out
}

// PaymentIndex returns the ledger position of a payment or -1.
func (r FeeRecord) PaymentIndex(paymentID ID) int {
	for i, p := range r.Payments {
		if p.ID == paymentID {
			return i
		}
	}
	return -1
}
