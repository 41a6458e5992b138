package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-09T10:30:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if !d.Equal(NewDate(2025, 3, 9).Time) {
		t.Fatalf("expected 2025-03-09, got %s", d)
	}

	out, err := json.Marshal(NewDate(2024, 11, 2))
	if err != nil || string(out) != `"2024-11-02"` {
		t.Fatalf("unexpected marshal: %s err=%v", out, err)
	}

	var empty Date
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || !empty.IsZero() {
		t.Fatalf("expected zero date from null, got %v err=%v", empty, err)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var p struct {
		A ID `json:"a"`
		B ID `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 42, "b": "fee-7"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.A != "42" || p.B != "fee-7" {
		t.Fatalf("unexpected ids: %+v", p)
	}
	out, _ := json.Marshal(p)
	if string(out) != `{"a":42,"b":"fee-7"}` {
		t.Fatalf("unexpected marshal: %s", out)
	}
}

func TestParsePaymentMode(t *testing.T) {
	cases := map[string]PaymentMode{
		"cash":          ModeCash,
		"Online":        ModeOnline,
		" CHEQUE ":      ModeCheque,
		"Bank Transfer": ModeBankTransfer,
		"bank-transfer": ModeBankTransfer,
		"BankTransfer":  ModeBankTransfer,
	}
	for in, want := range cases {
		got, err := ParsePaymentMode(in)
		if err != nil || got != want {
			t.Errorf("ParsePaymentMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePaymentMode("crypto"); !errors.Is(err, ErrInvalidPaymentMode) {
		t.Fatalf("expected ErrInvalidPaymentMode, got %v", err)
	}
}

func TestFeeRecordCloneIsolatesPayments(t *testing.T) {
	r := FeeRecord{ID: "1", Payments: []Payment{{ID: "p1", AmountPaid: Cents(100)}}}
	c := r.Clone()
	c.Payments[0].AmountPaid = Cents(999)
	if r.Payments[0].AmountPaid != Cents(100) {
		t.Fatalf("clone shares payment storage")
	}
	if r.PaymentIndex("p1") != 0 || r.PaymentIndex("nope") != -1 {
		t.Fatalf("unexpected payment index")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	var err error = &RemoteError{Op: "record payment", StatusCode: 500, Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("RemoteError should unwrap to its cause")
	}
	if IsValidation(err) || IsNotFound(err) {
		t.Fatalf("misclassified remote error")
	}
	if !IsValidation(NewValidationError("amount", "invalid amount")) {
		t.Fatalf("expected validation error")
	}
}
