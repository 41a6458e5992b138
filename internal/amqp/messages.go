package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/core"
)

// EventType discriminates message bodies on the queue.
type EventType string

const (
	EventFeeCreated      EventType = "fee.created"
	EventFeeUpdated      EventType = "fee.updated"
	EventFeeDeleted      EventType = "fee.deleted"
	EventPaymentRecorded EventType = "payment.recorded"
	EventPaymentDeleted  EventType = "payment.deleted"
	EventFeeReminder     EventType = "fee.reminder"
)

// Message is anything the client can publish.
type Message interface {
	MessageType() EventType
	MessageID() string
}

// LedgerEvent announces a confirmed change to a fee record.
type LedgerEvent struct {
	Type        EventType   `json:"type"`
	ID          string      `json:"message_id"`
	FeeRecordID core.ID     `json:"fee_record_id"`
	PaymentID   core.ID     `json:"payment_id,omitempty"`
	Amount      core.Money  `json:"amount"`
	Pending     core.Money  `json:"pending_amount"`
	Status      core.Status `json:"status,omitempty"`
	UserID      core.ID     `json:"user_id,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// FeeReminderMessage asks the worker to remind a student about a pending fee.
type FeeReminderMessage struct {
	Type            EventType  `json:"type"`
	ID              string     `json:"message_id"`
	FeeRecordID     core.ID    `json:"fee_record_id"`
	StudentName     string     `json:"student_name"`
	AdmissionNumber string     `json:"admission_number"`
	BranchID        core.ID    `json:"branch_id,omitempty"`
	CourseName      string     `json:"course_name"`
	Kind            string     `json:"kind"`
	Pending         core.Money `json:"pending_amount"`
	DueDate         core.Date  `json:"due_date"`
	Day             core.Date  `json:"day"`
	Timestamp       time.Time  `json:"timestamp"`
}

// NewLedgerEvent builds an event from the record state after the change.
func NewLedgerEvent(t EventType, r core.FeeRecord, paymentID core.ID, amount core.Money) *LedgerEvent {
	return &LedgerEvent{
		Type:        t,
		ID:          uuid.NewString(),
		FeeRecordID: r.ID,
		PaymentID:   paymentID,
		Amount:      amount,
		Pending:     r.PendingAmount,
		Status:      r.Status,
		Timestamp:   time.Now(),
	}
}

func NewFeeReminderMessage(r core.FeeRecord, kind string, day core.Date) *FeeReminderMessage {
	return &FeeReminderMessage{
		Type:            EventFeeReminder,
		ID:              uuid.NewString(),
		FeeRecordID:     r.ID,
		StudentName:     r.Student.FullName,
		AdmissionNumber: r.Student.AdmissionNumber,
		BranchID:        r.Student.BranchID,
		CourseName:      r.CourseName,
		Kind:            kind,
		Pending:         r.PendingAmount,
		DueDate:         r.DueDate,
		Day:             day,
		Timestamp:       time.Now(),
	}
}

func (m *LedgerEvent) MessageType() EventType        { return m.Type }
func (m *LedgerEvent) MessageID() string             { return m.ID }
func (m *FeeReminderMessage) MessageType() EventType { return EventFeeReminder }
func (m *FeeReminderMessage) MessageID() string      { return m.ID }

// Encode marshals a message to its wire form.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode reads the type field and unmarshals into the matching message.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	switch head.Type {
	case EventFeeCreated, EventFeeUpdated, EventFeeDeleted, EventPaymentRecorded, EventPaymentDeleted:
		var ev LedgerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return &ev, nil
	case EventFeeReminder:
		var rm FeeReminderMessage
		if err := json.Unmarshal(data, &rm); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return &rm, nil
	}
	return nil, fmt.Errorf("unknown message type %q", head.Type)
}
