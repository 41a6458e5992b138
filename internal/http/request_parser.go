// Package http exposes the fee ledger as a JSON back-end-for-front-end.
//
// This file implements utilities for parsing and validating request data:
// list query parameters, JSON bodies and path ids.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"feeledger/internal/core"
	"feeledger/internal/query"
)

const (
	maxBodyBytes   = 1 << 20
	maxPerPage     = 200
	maxSearchRunes = 100
)

// filterParams maps query parameters to schema filter fields.
var filterParams = map[string]string{
	"status": "status",
	"course": "course_name",
	"branch": "branch_id",
}

// ParseListQuery reads the list parameters shared by every listing
// endpoint. Unknown field names are left for the schema to reject.
func ParseListQuery(values url.Values) (query.Query, error) {
	q := query.Query{
		Search:    sanitizeInput(values.Get("q")),
		DateField: strings.TrimSpace(values.Get("date_field")),
		SortKey:   strings.TrimSpace(values.Get("sort")),
		Direction: query.Direction(strings.ToLower(strings.TrimSpace(values.Get("dir")))),
	}
	if len([]rune(q.Search)) > maxSearchRunes {
		return query.Query{}, core.NewValidationError("q", "search text must be at most %d characters", maxSearchRunes)
	}

	for param, field := range filterParams {
		if v := strings.TrimSpace(values.Get(param)); v != "" {
			if q.Filters == nil {
				q.Filters = make(map[string]string)
			}
			q.Filters[field] = v
		}
	}

	var err error
	if q.From, err = parseDateParam(values, "from"); err != nil {
		return query.Query{}, err
	}
	if q.To, err = parseDateParam(values, "to"); err != nil {
		return query.Query{}, err
	}
	if q.Page, err = parseIntParam(values, "page"); err != nil {
		return query.Query{}, err
	}
	if q.PerPage, err = parseIntParam(values, "per_page"); err != nil {
		return query.Query{}, err
	}
	if q.Page > 0 && q.PerPage == 0 {
		q.PerPage = 25
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	return q, nil
}

func parseDateParam(values url.Values, name string) (core.Date, error) {
	v := strings.TrimSpace(values.Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.NewValidationError(name, "%s must be a date in YYYY-MM-DD format", name)
	}
	return d, nil
}

func parseIntParam(values url.Values, name string) (int, error) {
	v := strings.TrimSpace(values.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, core.NewValidationError(name, "%s must be a non-negative number", name)
	}
	return n, nil
}

// decodeJSON reads one JSON object into dst. Unknown fields and trailing
// data are rejected.
func decodeJSON(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return core.NewValidationError("body", "content type must be application/json")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("body", "request body is required")
		}
		if errors.Is(err, core.ErrInvalidAmount) {
			return core.NewValidationError("body", "invalid amount")
		}
		return core.NewValidationError("body", "malformed request body: %v", err)
	}
	if dec.More() {
		return core.NewValidationError("body", "request body must contain a single object")
	}
	return nil
}

// pathID returns a required path value as an ID.
func pathID(r *http.Request, name string) (core.ID, error) {
	v := strings.TrimSpace(r.PathValue(name))
	if v == "" {
		return "", core.NewValidationError(name, "%s required", name)
	}
	return core.ID(v), nil
}

// confirmed reports whether the caller pre-answered the delete prompt.
func confirmed(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("confirm")) {
	case "yes", "true", "1":
		return true
	}
	return false
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
