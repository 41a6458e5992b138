package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
		{"999999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseMoneyAllowsNegatives(t *testing.T) {
	m, err := ParseMoney("-200.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Cents != -20050 {
		t.Fatalf("expected -20050, got %d", m.Cents)
	}
	if m.Sign() != -1 {
		t.Fatalf("expected negative sign")
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		123456: "1234.56",
		-20000: "-200.00",
		-7:     "-0.07",
	}
	for cents, want := range cases {
		if got := Cents(cents).String(); got != want {
			t.Errorf("Cents(%d).String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyUnmarshalAcceptsWireShapes(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
		D Money `json:"d"`
		E Money `json:"e"`
	}
	body := `{"a": 1000, "b": "250.50", "c": null, "d": "", "e": 0.1}`
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A.Cents != 100000 || payload.B.Cents != 25050 || !payload.C.IsZero() || !payload.D.IsZero() || payload.E.Cents != 10 {
		t.Fatalf("unexpected decode: %+v", payload)
	}

	rejected := []string{
		`"ten"`,
		`1e99999999`,
		`1e9999999`,
		`"1e3"`,
		`2E2`,
		`"1,000"`,
		`0.00000000001`,
		`1234567890123456789012`,
	}
	for _, in := range rejected {
		t.Run(in, func(t *testing.T) {
			var m Money
			start := time.Now()
			err := json.Unmarshal([]byte(in), &m)
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("err = %v, want ErrInvalidAmount", err)
			}
			if d := time.Since(start); d > time.Second {
				t.Fatalf("decoding took %v", d)
			}
		})
	}
}

func TestMoneyFromDecimalBoundsExponent(t *testing.T) {
	m, err := ParseMoney("0.0000000001")
	if err != nil || !m.IsZero() {
		t.Fatalf("ten decimal places: %v, %v", m, err)
	}
	if _, err := ParseMoney("0.00000000001"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("eleven decimal places: err = %v", err)
	}
}

func TestMoneyCmpAtLimits(t *testing.T) {
	tests := []struct {
		a, b Money
		want int
	}{
		{Cents(math.MaxInt64), Cents(-1), 1},
		{Cents(math.MinInt64), Cents(1), -1},
		{Cents(math.MinInt64), Cents(math.MaxInt64), -1},
		{Cents(42), Cents(42), 0},
	}
	for _, tt := range tests {
		if got := tt.a.Cmp(tt.b); got != tt.want {
			t.Errorf("%d.Cmp(%d) = %d, want %d", tt.a.Cents, tt.b.Cents, got, tt.want)
		}
	}
}

func TestMoneyDecimalIsExact(t *testing.T) {
	// 0.1 + 0.2 drifts with floats, never with cents.
	a, _ := ParseMoney("0.1")
	b, _ := ParseMoney("0.2")
	c, _ := ParseMoney("0.3")
	if a.Add(b) != c {
		t.Fatalf("expected %s + %s == %s", a, b, c)
	}
	if !a.Add(b).Decimal().Equal(c.Decimal()) {
		t.Fatalf("decimal mismatch")
	}
}

func TestComputeTotalFee(t *testing.T) {
	got := ComputeTotalFee(Cents(1000_00), Cents(150_00), Cents(25_00))
	if got != Cents(875_00) {
		t.Fatalf("expected 875.00, got %s", got)
	}
}
