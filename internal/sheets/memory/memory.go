package memory

import (
	"context"
	"sync"

	"feeledger/internal/core"
	ports "feeledger/internal/sheets"
)

var _ ports.LedgerExporter = (*Store)(nil)

// Store keeps the last exported table in memory.
type Store struct {
	mu      sync.Mutex
	table   [][]string
	exports int
}

func New() *Store {
	return &Store{}
}

// ExportLedger replaces the stored table and returns the number of data rows.
func (s *Store) ExportLedger(ctx context.Context, records []core.FeeRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	table := ports.Table(records)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table
	s.exports++
	return len(table) - 1, nil
}

// Table returns a copy of the last export, header included.
func (s *Store) Table() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.table))
	for i, row := range s.table {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Exports counts completed exports.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
