// Package query is the search, filter and sort pipeline shared by every
// listing: fee records, students and asset transfers.
//
// A Schema names the fields of a record type. Query values refer to those
// names, so callers never touch accessors directly.
package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"feeledger/internal/core"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// All disables a field filter, like an empty value does.
const All = "all"

// Schema maps field names to accessors for T.
type Schema[T any] struct {
	Text    map[string]func(T) string
	Numbers map[string]func(T) int64
	Dates   map[string]func(T) time.Time

	// SearchFields are used when a Query names none.
	SearchFields []string
	// DateField is used when a Query has a date bound but no field.
	DateField string
}

// Query is one listing request.
type Query struct {
	Search       string
	SearchFields []string
	Filters      map[string]string
	DateField    string
	From         core.Date
	To           core.Date
	SortKey      string
	Direction    Direction
	Page         int
	PerPage      int
}

// Page describes the slice of results returned by Paginate.
type Page struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Search keeps records where any of fields contains text, ignoring case.
func Search[T any](records []T, text string, fields ...func(T) string) []T {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" || len(fields) == 0 {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f(r)), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// FilterByField keeps records whose field equals value exactly.
func FilterByField[T any](records []T, field func(T) string, value string) []T {
	if value == "" || value == All {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if field(r) == value {
			out = append(out, r)
		}
	}
	return out
}

// FilterByDateRange keeps records dated within [from, to]. A record dated any
// time on the day of to is included. Zero bounds are open. Undated records are
// dropped once a bound is set.
func FilterByDateRange[T any](records []T, field func(T) time.Time, from, to time.Time) []T {
	if from.IsZero() && to.IsZero() {
		return records
	}
	var end time.Time
	if !to.IsZero() {
		y, m, d := to.Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, to.Location()).AddDate(0, 0, 1)
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		ts := field(r)
		if ts.IsZero() {
			continue
		}
		if !from.IsZero() && ts.Before(from) {
			continue
		}
		if !end.IsZero() && !ts.Before(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Sort orders records in place with a stable sort. Ties keep their input order
// in both directions.
func Sort[T any](records []T, compare func(a, b T) int, dir Direction) {
	if compare == nil {
		return
	}
	slices.SortStableFunc(records, func(a, b T) int {
		c := compare(a, b)
		if dir == Desc {
			return -c
		}
		return c
	})
}

// ByText compares a string field case-insensitively.
func ByText[T any](field func(T) string) func(a, b T) int {
	return func(a, b T) int {
		return strings.Compare(strings.ToLower(field(a)), strings.ToLower(field(b)))
	}
}

// ByNumber compares a numeric field.
func ByNumber[T any](field func(T) int64) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(field(a), field(b)) }
}

// ByDate compares a date field by timestamp.
func ByDate[T any](field func(T) time.Time) func(a, b T) int {
	return func(a, b T) int { return field(a).Compare(field(b)) }
}

// Paginate cuts one page out of records. Page and perPage below 1 return everything.
func Paginate[T any](records []T, page, perPage int) ([]T, Page) {
	total := len(records)
	if page < 1 || perPage < 1 {
		return records, Page{Page: 1, PerPage: total, Total: total, TotalPages: 1}
	}
	pages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := min(start+perPage, total)
	return records[start:end], Page{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

// Apply runs search, field filters, the date range and sort in that order and
// returns a new slice. The input is not modified. Unknown field names fail with
// a ValidationError.
func (s Schema[T]) Apply(records []T, q Query) ([]T, error) {
	out := slices.Clone(records)

	searchFields := q.SearchFields
	if len(searchFields) == 0 {
		searchFields = s.SearchFields
	}
	if strings.TrimSpace(q.Search) != "" {
		accessors := make([]func(T) string, 0, len(searchFields))
		for _, name := range searchFields {
			f, ok := s.Text[name]
			if !ok {
				return nil, core.NewValidationError("search", "unknown search field %q", name)
			}
			accessors = append(accessors, f)
		}
		out = Search(out, q.Search, accessors...)
	}

	for _, name := range sortedKeys(q.Filters) {
		f, ok := s.Text[name]
		if !ok {
			return nil, core.NewValidationError(name, "unknown filter field %q", name)
		}
		out = FilterByField(out, f, q.Filters[name])
	}

	if !q.From.IsZero() || !q.To.IsZero() {
		name := q.DateField
		if name == "" {
			name = s.DateField
		}
		f, ok := s.Dates[name]
		if !ok {
			return nil, core.NewValidationError("date_field", "unknown date field %q", name)
		}
		if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From.Time) {
			return nil, core.NewValidationError("to", "date range ends before it starts")
		}
		out = FilterByDateRange(out, f, q.From.Time, q.To.Time)
	}

	if q.SortKey != "" {
		compare, err := s.comparator(q.SortKey)
		if err != nil {
			return nil, err
		}
		switch q.Direction {
		case "", Asc, Desc:
		default:
			return nil, core.NewValidationError("dir", "sort direction must be asc or desc")
		}
		Sort(out, compare, q.Direction)
	}
	return out, nil
}

func (s Schema[T]) comparator(key string) (func(a, b T) int, error) {
	if f, ok := s.Text[key]; ok {
		return ByText(f), nil
	}
	if f, ok := s.Numbers[key]; ok {
		return ByNumber(f), nil
	}
	if f, ok := s.Dates[key]; ok {
		return ByDate(f), nil
	}
	return nil, core.NewValidationError("sort", "unknown sort key %q", key)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
