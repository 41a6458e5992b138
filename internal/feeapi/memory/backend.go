// Package memory is an in-process fee backend. It follows the remote
// service's rules (the server derives pending and status, an initial paid
// amount becomes an opening payment) and can be told to fail specific calls.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"feeledger/internal/core"
	"feeledger/internal/feeapi"
	"feeledger/internal/ledger"
)

// Op names a backend call for fault injection.
type Op string

const (
	OpListFees       Op = "list_fees"
	OpGetFee         Op = "get_fee"
	OpCreateFee      Op = "create_fee"
	OpUpdatePaid     Op = "update_paid"
	OpDeleteFee      Op = "delete_fee"
	OpRecordPayment  Op = "record_payment"
	OpDeletePayment  Op = "delete_payment"
	OpListStructures Op = "list_fee_structures"
	OpListCourses    Op = "list_courses"
	OpListStudents   Op = "list_students"
	OpListBranches   Op = "list_branches"
)

const (
	noteOpening    = "opening balance"
	noteAdjustment = "manual adjustment"
)

type fault struct {
	err     error
	persist bool
}

type Backend struct {
	mu         sync.Mutex
	seq        int64
	order      []core.ID
	fees       map[core.ID]*core.FeeRecord
	students   []core.Student
	courses    []core.Course
	branches   []core.Branch
	structures []core.FeeStructure
	faults     map[Op]fault
	calls      map[Op]int
	now        func() time.Time
}

type Option func(*Backend)

func WithStudents(s ...core.Student) Option {
	return func(b *Backend) { b.students = append(b.students, s...) }
}

func WithCourses(c ...core.Course) Option {
	return func(b *Backend) { b.courses = append(b.courses, c...) }
}

func WithBranches(br ...core.Branch) Option {
	return func(b *Backend) { b.branches = append(b.branches, br...) }
}

func WithFeeStructures(fs ...core.FeeStructure) Option {
	return func(b *Backend) { b.structures = append(b.structures, fs...) }
}

// WithClock sets the source of "today" for opening and adjustment payments.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		fees:   make(map[core.ID]*core.FeeRecord),
		faults: make(map[Op]fault),
		calls:  make(map[Op]int),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFromFiles seeds lookups from seed_students.json, seed_courses.json,
// seed_branches.json and seed_fee_structures.json under base. Missing files
// fall back to a small built-in set.
func NewFromFiles(base string) (*Backend, error) {
	var (
		students   []core.Student
		courses    []core.Course
		branches   []core.Branch
		structures []core.FeeStructure
	)
	seeds := []struct {
		name string
		dst  any
	}{
		{"seed_students.json", &students},
		{"seed_courses.json", &courses},
		{"seed_branches.json", &branches},
		{"seed_fee_structures.json", &structures},
	}
	for _, s := range seeds {
		if err := readJSON(filepath.Join(base, s.name), s.dst); err != nil {
			return nil, err
		}
	}
	if len(branches) == 0 {
		branches = []core.Branch{{ID: "1", Name: "Main", Code: "MAIN"}}
	}
	if len(courses) == 0 {
		courses = []core.Course{
			{ID: "1", Name: "Tally Prime", Price: core.Cents(1200000)},
			{ID: "2", Name: "Advanced Excel", Price: core.Cents(800000)},
		}
	}
	if len(students) == 0 {
		students = []core.Student{
			{ID: "1", FullName: "Demo Student", AdmissionNumber: "ADM-0001", BranchID: branches[0].ID, CourseName: courses[0].Name},
		}
	}
	return New(WithStudents(students...), WithCourses(courses...), WithBranches(branches...), WithFeeStructures(structures...)), nil
}

// FailNext makes the next call to op return err. With persist set, a mutating
// call still applies its change before failing, which is how the backend's
// status column fault behaves.
func (b *Backend) FailNext(op Op, err error, persist bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = fault{err: err, persist: persist}
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// StatusColumnError is the error the real backend returns when the payment is
// saved but the fee status update fails.
func StatusColumnError() error {
	return &feeapi.Error{
		StatusCode: http.StatusInternalServerError,
		Message:    "SQLSTATE[01000]: Warning: 1265 Data truncated for column 'status' at row 1",
	}
}

// Put stores a fee record as-is, for seeding.
func (b *Backend) Put(r core.FeeRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(r)
}

func (b *Backend) ListFeeRecords(ctx context.Context) ([]core.FeeRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpListFees); err != nil {
		return nil, err
	}
	out := make([]core.FeeRecord, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.fees[id].Clone())
	}
	return out, nil
}

func (b *Backend) GetFeeRecord(ctx context.Context, id core.ID) (core.FeeRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpGetFee); err != nil {
		return core.FeeRecord{}, err
	}
	r, ok := b.fees[id]
	if !ok {
		return core.FeeRecord{}, notFound("fee record", id)
	}
	return r.Clone(), nil
}

func (b *Backend) CreateFeeRecord(ctx context.Context, in core.NewFeeRecord) (core.FeeRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := b.enterMutation(ctx, OpCreateFee)
	if err != nil {
		return core.FeeRecord{}, err
	}

	student, ok := b.studentLocked(in.StudentID)
	if !ok {
		return core.FeeRecord{}, unprocessable("student %s does not exist", in.StudentID)
	}
	total := in.TotalFee
	if total.IsZero() {
		if course, ok := b.courseLocked(in.CourseName); ok {
			total = core.ComputeTotalFee(course.Price, in.Discount, in.Penalty)
		}
	}
	if total.Sign() < 0 {
		return core.FeeRecord{}, unprocessable("total fee cannot be negative")
	}
	if in.PaidAmount.Sign() < 0 {
		return core.FeeRecord{}, unprocessable("paid amount cannot be negative")
	}

	r := core.FeeRecord{
		ID:         b.nextIDLocked(),
		Student:    student.Ref(),
		CourseName: in.CourseName,
		TotalFee:   total,
		DueDate:    in.DueDate,
		Discount:   in.Discount,
		Penalty:    in.Penalty,
	}
	if !in.PaidAmount.IsZero() {
		r.Payments = append(r.Payments, b.systemPaymentLocked(r.ID, in.PaidAmount, noteOpening))
	}
	b.putLocked(r)
	return b.fees[r.ID].Clone(), f.err
}

func (b *Backend) UpdatePaidAmount(ctx context.Context, id core.ID, paid core.Money) (core.FeeRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := b.enterMutation(ctx, OpUpdatePaid)
	if err != nil {
		return core.FeeRecord{}, err
	}
	r, ok := b.fees[id]
	if !ok {
		return core.FeeRecord{}, notFound("fee record", id)
	}
	if paid.Sign() < 0 {
		return core.FeeRecord{}, unprocessable("paid amount cannot be negative")
	}
	if diff := paid.Sub(r.PaidAmount); !diff.IsZero() {
		r.Payments = append(r.Payments, b.systemPaymentLocked(id, diff, noteAdjustment))
		ledger.RecomputeTotals(*r).Apply(r)
	}
	return r.Clone(), f.err
}

func (b *Backend) DeleteFeeRecord(ctx context.Context, id core.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := b.enterMutation(ctx, OpDeleteFee)
	if err != nil {
		return err
	}
	if _, ok := b.fees[id]; !ok {
		return notFound("fee record", id)
	}
	delete(b.fees, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
	return f.err
}

func (b *Backend) RecordPayment(ctx context.Context, in core.NewPayment) (core.Payment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := b.enterMutation(ctx, OpRecordPayment)
	if err != nil {
		return core.Payment{}, err
	}
	r, ok := b.fees[in.FeeRecordID]
	if !ok {
		return core.Payment{}, notFound("fee record", in.FeeRecordID)
	}
	if in.AmountPaid.Sign() <= 0 {
		return core.Payment{}, unprocessable("amount paid must be positive")
	}
	mode, err := core.ParsePaymentMode(string(in.PaymentMode))
	if err != nil {
		return core.Payment{}, unprocessable("%v", err)
	}
	date := in.PaymentDate
	if date.IsZero() {
		date = core.DateOf(b.now())
	}
	p := core.Payment{
		ID:          b.nextIDLocked(),
		FeeRecordID: r.ID,
		AmountPaid:  in.AmountPaid,
		PaymentDate: date,
		PaymentMode: mode,
		Note:        in.Note,
	}
	r.Payments = append(r.Payments, p)
	ledger.RecomputeTotals(*r).Apply(r)
	return p, f.err
}

func (b *Backend) DeletePayment(ctx context.Context, id core.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := b.enterMutation(ctx, OpDeletePayment)
	if err != nil {
		return err
	}
	for _, feeID := range b.order {
		r := b.fees[feeID]
		if idx := r.PaymentIndex(id); idx >= 0 {
			r.Payments = append(r.Payments[:idx:idx], r.Payments[idx+1:]...)
			ledger.RecomputeTotals(*r).Apply(r)
			return f.err
		}
	}
	return notFound("payment", id)
}

func (b *Backend) ListFeeStructures(ctx context.Context) ([]core.FeeStructure, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpListStructures); err != nil {
		return nil, err
	}
	return append([]core.FeeStructure(nil), b.structures...), nil
}

func (b *Backend) ListCourses(ctx context.Context) ([]core.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpListCourses); err != nil {
		return nil, err
	}
	return append([]core.Course(nil), b.courses...), nil
}

func (b *Backend) ListStudents(ctx context.Context) ([]core.Student, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpListStudents); err != nil {
		return nil, err
	}
	return append([]core.Student(nil), b.students...), nil
}

func (b *Backend) ListBranches(ctx context.Context) ([]core.Branch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpListBranches); err != nil {
		return nil, err
	}
	return append([]core.Branch(nil), b.branches...), nil
}

// enter counts the call and returns a pending fault for read operations.
func (b *Backend) enter(ctx context.Context, op Op) error {
	b.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if f, ok := b.takeFaultLocked(op); ok {
		return f.err
	}
	return nil
}

// enterMutation returns a non-persisting fault as an error. A persisting
// fault is handed back so the caller applies the change first.
func (b *Backend) enterMutation(ctx context.Context, op Op) (fault, error) {
	b.calls[op]++
	if err := ctx.Err(); err != nil {
		return fault{}, err
	}
	f, ok := b.takeFaultLocked(op)
	if ok && !f.persist {
		return fault{}, f.err
	}
	return f, nil
}

func (b *Backend) takeFaultLocked(op Op) (fault, bool) {
	f, ok := b.faults[op]
	if ok {
		delete(b.faults, op)
	}
	return f, ok
}

func (b *Backend) putLocked(r core.FeeRecord) {
	r = r.Clone()
	for i := range r.Payments {
		r.Payments[i].FeeRecordID = r.ID
	}
	ledger.RecomputeTotals(r).Apply(&r)
	if _, ok := b.fees[r.ID]; !ok {
		b.order = append(b.order, r.ID)
	}
	b.fees[r.ID] = &r
	if n, err := strconv.ParseInt(string(r.ID), 10, 64); err == nil && n > b.seq {
		b.seq = n
	}
}

func (b *Backend) nextIDLocked() core.ID {
	b.seq++
	return core.ID(strconv.FormatInt(b.seq, 10))
}

func (b *Backend) systemPaymentLocked(feeID core.ID, amount core.Money, note string) core.Payment {
	return core.Payment{
		ID:          b.nextIDLocked(),
		FeeRecordID: feeID,
		AmountPaid:  amount,
		PaymentDate: core.DateOf(b.now()),
		PaymentMode: core.ModeCash,
		Note:        note,
	}
}

func (b *Backend) studentLocked(id core.ID) (core.Student, bool) {
	for _, s := range b.students {
		if s.ID == id {
			return s, true
		}
	}
	return core.Student{}, false
}

func (b *Backend) courseLocked(name string) (core.Course, bool) {
	for _, c := range b.courses {
		if c.Name == name {
			return c, true
		}
	}
	return core.Course{}, false
}

func notFound(kind string, id core.ID) error {
	return &feeapi.Error{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

func unprocessable(format string, args ...any) error {
	return &feeapi.Error{StatusCode: http.StatusUnprocessableEntity, Message: fmt.Sprintf(format, args...)}
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
