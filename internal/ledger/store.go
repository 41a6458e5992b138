package ledger

import (
	"fmt"
	"sync"

	"feeledger/internal/core"
)

// Store is the in-memory ledger keyed by fee record id. Every stored record has
// totals recomputed from its payments, so the balance invariant holds after
// each call. Records keep the order in which they were first seen.
type Store struct {
	mu      sync.RWMutex
	records map[core.ID]*entry
	order   []core.ID
	seq     uint64
}

type entry struct {
	record  core.FeeRecord
	version uint64
}

func NewStore() *Store {
	return &Store{records: make(map[core.ID]*entry)}
}

// UpsertFeeRecord inserts or replaces one record. Other records are untouched.
func (s *Store) UpsertFeeRecord(r core.FeeRecord) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(r)
}

// AppendPayment adds p at the end of the record's ledger.
func (s *Store) AppendPayment(feeRecordID core.ID, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[feeRecordID]
	if !ok {
		return &core.NotFoundError{Kind: "fee record", ID: feeRecordID}
	}
	if e.record.PaymentIndex(p.ID) >= 0 {
		return fmt.Errorf("payment %s already recorded on fee record %s", p.ID, feeRecordID)
	}
	p.FeeRecordID = feeRecordID
	e.record.Payments = append(e.record.Payments, p)
	s.touchLocked(e)
	return nil
}

// RemovePayment deletes a payment by id and returns it.
func (s *Store) RemovePayment(feeRecordID, paymentID core.ID) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[feeRecordID]
	if !ok {
		return core.Payment{}, &core.NotFoundError{Kind: "fee record", ID: feeRecordID}
	}
	idx := e.record.PaymentIndex(paymentID)
	if idx < 0 {
		return core.Payment{}, &core.NotFoundError{Kind: "payment", ID: paymentID}
	}
	removed := e.record.Payments[idx]
	payments := make([]core.Payment, 0, len(e.record.Payments)-1)
	payments = append(payments, e.record.Payments[:idx]...)
	payments = append(payments, e.record.Payments[idx+1:]...)
	e.record.Payments = payments
	s.touchLocked(e)
	return removed, nil
}

// RemoveFeeRecord drops a record together with its payments.
func (s *Store) RemoveFeeRecord(id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return &core.NotFoundError{Kind: "fee record", ID: id}
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ReplaceAll swaps the whole ledger for a fresh server snapshot.
func (s *Store) ReplaceAll(records []core.FeeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[core.ID]*entry, len(records))
	s.order = s.order[:0]
	for _, r := range records {
		s.putLocked(r)
	}
}

// Get returns a copy of one record.
func (s *Store) Get(id core.ID) (core.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[id]
	if !ok {
		return core.FeeRecord{}, &core.NotFoundError{Kind: "fee record", ID: id}
	}
	return e.record.Clone(), nil
}

// List returns copies of every record in ledger order.
func (s *Store) List() []core.FeeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.FeeRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].record.Clone())
	}
	return out
}

// Version returns the record's mutation sequence number. It grows on every change.
func (s *Store) Version(id core.ID) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[id]
	if !ok {
		return 0, false
	}
	return e.version, true
}

// Len is the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) putLocked(r core.FeeRecord) uint64 {
	r = r.Clone()
	for i := range r.Payments {
		r.Payments[i].FeeRecordID = r.ID
	}
	e, ok := s.records[r.ID]
	if !ok {
		e = &entry{}
		s.records[r.ID] = e
		s.order = append(s.order, r.ID)
	}
	e.record = r
	s.touchLocked(e)
	return e.version
}

func (s *Store) touchLocked(e *entry) {
	RecomputeTotals(e.record).Apply(&e.record)
	s.seq++
	e.version = s.seq
}
