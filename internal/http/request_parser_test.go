package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"feeledger/internal/core"
	"feeledger/internal/query"
	"feeledger/internal/services"
)

func TestParseListQuery(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		check   func(t *testing.T, q query.Query)
		wantErr string
	}{
		{
			name:   "empty query lists everything",
			values: url.Values{},
			check: func(t *testing.T, q query.Query) {
				if q.Search != "" || q.Filters != nil || q.Page != 0 || q.PerPage != 0 {
					t.Errorf("unexpected query: %+v", q)
				}
			},
		},
		{
			name: "filters sort and range",
			values: url.Values{
				"q": {"  smith\x00 "}, "status": {"Pending"}, "course": {"Tally"}, "branch": {"10"},
				"from": {"2025-01-01"}, "to": {"2025-03-31"}, "date_field": {"due_date"},
				"sort": {"pending_amount"}, "dir": {"DESC"},
			},
			check: func(t *testing.T, q query.Query) {
				if q.Search != "smith" {
					t.Errorf("Search = %q, want sanitized text", q.Search)
				}
				want := map[string]string{"status": "Pending", "course_name": "Tally", "branch_id": "10"}
				for k, v := range want {
					if q.Filters[k] != v {
						t.Errorf("Filters[%s] = %q, want %q", k, q.Filters[k], v)
					}
				}
				if q.From.String() != "2025-01-01" || q.To.String() != "2025-03-31" {
					t.Errorf("range = %v..%v", q.From, q.To)
				}
				if q.SortKey != "pending_amount" || q.Direction != query.Desc || q.DateField != "due_date" {
					t.Errorf("unexpected sort: %+v", q)
				}
			},
		},
		{
			name:   "page defaults per_page",
			values: url.Values{"page": {"2"}},
			check: func(t *testing.T, q query.Query) {
				if q.Page != 2 || q.PerPage != 25 {
					t.Errorf("page = %d per_page = %d", q.Page, q.PerPage)
				}
			},
		},
		{
			name:   "per_page is capped",
			values: url.Values{"page": {"1"}, "per_page": {"5000"}},
			check: func(t *testing.T, q query.Query) {
				if q.PerPage != maxPerPage {
					t.Errorf("per_page = %d, want %d", q.PerPage, maxPerPage)
				}
			},
		},
		{name: "bad date", values: url.Values{"from": {"01/02/2025"}}, wantErr: "from must be a date"},
		{name: "negative page", values: url.Values{"page": {"-1"}}, wantErr: "page must be a non-negative number"},
		{name: "long search", values: url.Values{"q": {strings.Repeat("a", maxSearchRunes+1)}}, wantErr: "search text must be at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseListQuery(tt.values)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				if !core.IsValidation(err) {
					t.Errorf("expected a ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseListQuery() error = %v", err)
			}
			tt.check(t, q)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantErr     string
	}{
		{name: "valid", body: `{"paid_amount": "12.50"}`, contentType: "application/json"},
		{name: "no content type", body: `{"paid_amount": 3}`},
		{name: "empty body", body: "", wantErr: "request body is required"},
		{name: "unknown field", body: `{"paid": 1}`, wantErr: "malformed request body"},
		{name: "bad amount", body: `{"paid_amount": "lots"}`, wantErr: "invalid amount"},
		{name: "two objects", body: `{"paid_amount": 1}{"paid_amount": 2}`, wantErr: "single object"},
		{name: "form encoded", body: "paid_amount=1", contentType: "application/x-www-form-urlencoded", wantErr: "content type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/fees/1/paid-amount", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			var dst paidAmountRequest
			err := decodeJSON(req, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("decodeJSON() error = %v", err)
				}
				if dst.PaidAmount == nil {
					t.Fatalf("paid_amount not decoded")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePayload(t *testing.T) {
	v := services.NewValidator()

	err := services.ValidateStruct(v, paidAmountRequest{})
	if err == nil || err.Error() != "paid_amount required" {
		t.Fatalf("err = %v, want paid_amount required", err)
	}

	err = services.ValidateStruct(v, paymentRequest{Note: strings.Repeat("n", 501)})
	if err == nil || err.Error() != "note must be at most 500 characters" {
		t.Fatalf("err = %v, want note length failure", err)
	}

	zero := core.Money{}
	if err := services.ValidateStruct(v, paidAmountRequest{PaidAmount: &zero}); err != nil {
		t.Fatalf("zero paid amount is allowed: %v", err)
	}
}

func TestConfirmed(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"/api/fees/1", false},
		{"/api/fees/1?confirm=no", false},
		{"/api/fees/1?confirm=yes", true},
		{"/api/fees/1?confirm=TRUE", true},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, tt.target, nil)
			if got := confirmed(req); got != tt.want {
				t.Errorf("confirmed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput(" a\tb\x07c "); got != "a\tbc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
