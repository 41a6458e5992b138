package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/feeapi"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/query"
	"feeledger/internal/session"
	"feeledger/internal/storage"
)

const defaultRollbackTimeout = 10 * time.Second

// Journal records the outcome of every ledger operation.
type Journal interface {
	Record(ctx context.Context, e storage.Entry) error
}

// Publisher announces confirmed ledger changes.
type Publisher interface {
	Publish(ctx context.Context, m amqp.Message) error
}

// Confirmer asks the user a yes/no question before a destructive step.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Answers usable as a Confirmer when the decision was taken elsewhere.
var (
	Confirmed = ConfirmFunc(func(context.Context, string) bool { return true })
	Declined  = ConfirmFunc(func(context.Context, string) bool { return false })
)

// ListResult is one page of the fee listing.
type ListResult struct {
	Records []core.FeeRecord `json:"records"`
	Page    query.Page       `json:"page"`
}

// FeeController reconciles the local ledger with the remote backend. Create,
// payment and paid-amount updates are fetched back after the write; payment
// deletes are applied locally first and undone from server state on failure.
type FeeController struct {
	api      feeapi.API
	store    *ledger.Store
	session  *session.Session
	journal  Journal
	events   Publisher
	guard    *InFlightGuard
	validate *validator.Validate
	logger   *log.Logger
	now      func() time.Time

	rollbackTimeout time.Duration
}

type ControllerOption func(*FeeController)

func WithLogger(l *log.Logger) ControllerOption {
	return func(c *FeeController) { c.logger = l }
}

// WithClock sets the clock used for default payment dates.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *FeeController) { c.now = now }
}

func WithRollbackTimeout(d time.Duration) ControllerOption {
	return func(c *FeeController) { c.rollbackTimeout = d }
}

// NewFeeController wires a controller. journal and events may be nil.
func NewFeeController(api feeapi.API, store *ledger.Store, sess *session.Session, journal Journal, events Publisher, opts ...ControllerOption) *FeeController {
	c := &FeeController{
		api:             api,
		store:           store,
		session:         sess,
		journal:         journal,
		events:          events,
		guard:           NewInFlightGuard(),
		validate:        NewValidator(),
		logger:          log.Wrap(slog.Default(), log.ComponentLedger),
		now:             time.Now,
		rollbackTimeout: defaultRollbackTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the controller acts for.
func (c *FeeController) Session() *session.Session { return c.session }

// Refresh replaces the whole ledger with the backend's list and returns the
// number of records loaded.
func (c *FeeController) Refresh(ctx context.Context) (int, error) {
	if err := c.session.Active(); err != nil {
		return 0, err
	}
	if err := c.reload(ctx); err != nil {
		return 0, err
	}
	n := c.store.Len()
	c.logger.InfoContext(ctx, "Ledger refreshed", log.FieldOperation, log.OpRefresh, "records", n)
	return n, nil
}

func (c *FeeController) reload(ctx context.Context) error {
	records, err := c.api.ListFeeRecords(ctx)
	if err != nil {
		return remoteError("list fee records", err)
	}
	for _, r := range records {
		c.checkDrift(ctx, r)
	}
	c.store.ReplaceAll(records)
	return nil
}

// CreateFeeRecord submits a new fee record and reloads the ledger.
func (c *FeeController) CreateFeeRecord(ctx context.Context, in core.NewFeeRecord) (core.FeeRecord, error) {
	if err := c.session.Active(); err != nil {
		return core.FeeRecord{}, err
	}
	entry := storage.Entry{Operation: log.OpCreateFee, Amount: in.TotalFee}
	if err := c.validateNewFee(in); err != nil {
		c.reject(ctx, entry, err)
		return core.FeeRecord{}, err
	}

	created, err := c.api.CreateFeeRecord(ctx, in)
	if err != nil {
		err = remoteError("create fee record", err)
		c.fail(ctx, entry, storage.OutcomeFailed, err)
		return core.FeeRecord{}, err
	}
	entry.FeeRecordID = created.ID

	if err := c.reload(ctx); err != nil {
		c.logger.WarnContext(ctx, "Reload after create failed, keeping server response",
			log.FieldFeeRecordID, created.ID, log.FieldError, err)
		c.store.UpsertFeeRecord(created)
	}
	r, err := c.store.Get(created.ID)
	if err != nil {
		// The reloaded list does not carry the new record yet.
		c.store.UpsertFeeRecord(created)
		r, _ = c.store.Get(created.ID)
	}

	c.succeed(ctx, entry)
	c.publish(ctx, amqp.EventFeeCreated, r, "", r.TotalFee)
	c.logger.InfoContext(ctx, "Fee record created",
		log.FieldFeeRecordID, r.ID, log.FieldStudentID, r.Student.ID, log.FieldAmountCents, r.TotalFee.Cents)
	return r, nil
}

func (c *FeeController) validateNewFee(in core.NewFeeRecord) error {
	if err := ValidateStruct(c.validate, in); err != nil {
		return err
	}
	for field, m := range map[string]core.Money{
		"total_fee":   in.TotalFee,
		"paid_amount": in.PaidAmount,
		"discount":    in.Discount,
		"penalty":     in.Penalty,
	} {
		if m.Sign() < 0 {
			return core.NewValidationError(field, "%s cannot be negative", field)
		}
	}
	return nil
}

// RecordPayment submits one payment against a fee record. The amount must be
// positive and must not exceed the pending amount.
func (c *FeeController) RecordPayment(ctx context.Context, in core.NewPayment) (core.Payment, error) {
	if err := c.session.Active(); err != nil {
		return core.Payment{}, err
	}
	entry := storage.Entry{Operation: log.OpRecordPayment, FeeRecordID: in.FeeRecordID, Amount: in.AmountPaid}

	if in.AmountPaid.Sign() <= 0 {
		verr := core.NewValidationError("amount_paid", "invalid amount")
		c.reject(ctx, entry, verr)
		return core.Payment{}, verr
	}
	if in.PaymentMode != "" {
		mode, err := core.ParsePaymentMode(string(in.PaymentMode))
		if err != nil {
			verr := core.NewValidationError("payment_mode", "invalid payment mode")
			c.reject(ctx, entry, verr)
			return core.Payment{}, verr
		}
		in.PaymentMode = mode
	}
	if err := ValidateStruct(c.validate, in); err != nil {
		c.reject(ctx, entry, err)
		return core.Payment{}, err
	}
	if in.PaymentDate.IsZero() {
		in.PaymentDate = core.DateOf(c.now())
	}

	release, err := c.guard.Acquire(in.FeeRecordID)
	if err != nil {
		c.reject(ctx, entry, err)
		return core.Payment{}, err
	}
	defer release()

	before, err := c.visible(in.FeeRecordID)
	if err != nil {
		return core.Payment{}, err
	}
	if in.AmountPaid.Cmp(before.PendingAmount) > 0 {
		verr := core.NewValidationError("amount_paid", "payment of %s exceeds pending amount %s",
			in.AmountPaid, before.PendingAmount)
		c.reject(ctx, entry, verr)
		return core.Payment{}, verr
	}

	p, err := c.api.RecordPayment(ctx, in)
	if err != nil {
		if feeapi.IsKnownStatusColumnBug(err) {
			return c.reconcilePayment(ctx, before, in, entry, err)
		}
		err = remoteError("record payment", err)
		c.fail(ctx, entry, storage.OutcomeFailed, err)
		return core.Payment{}, err
	}
	entry.PaymentID = p.ID

	if err := c.reload(ctx); err != nil {
		c.logger.WarnContext(ctx, "Reload after payment failed, appending locally",
			log.FieldFeeRecordID, in.FeeRecordID, log.FieldPaymentID, p.ID, log.FieldError, err)
		if err := c.store.AppendPayment(in.FeeRecordID, p); err != nil {
			c.logger.WarnContext(ctx, "Append after payment failed", log.FieldError, err)
		}
	}

	c.succeed(ctx, entry)
	c.publishCurrent(ctx, amqp.EventPaymentRecorded, in.FeeRecordID, p.ID, p.AmountPaid)
	c.logger.InfoContext(ctx, "Payment recorded",
		log.NewFields().WithPayment(string(in.FeeRecordID), string(p.ID), p.AmountPaid.Cents).ToSlice()...)
	return p, nil
}

// reconcilePayment decides the outcome of a payment the backend answered with
// the status column fault. The refetched pending amount must have dropped by
// exactly the submitted amount; anything else is reported as uncertain.
func (c *FeeController) reconcilePayment(ctx context.Context, before core.FeeRecord, in core.NewPayment, entry storage.Entry, cause error) (core.Payment, error) {
	c.logger.WarnContext(ctx, "Backend reported status column fault, verifying payment",
		log.FieldFeeRecordID, before.ID, log.FieldAmountCents, in.AmountPaid.Cents, log.FieldError, cause)

	fresh, err := c.api.GetFeeRecord(ctx, before.ID)
	if err != nil {
		uerr := &core.PaymentUncertainError{
			FeeRecordID:   before.ID,
			Amount:        in.AmountPaid,
			PendingBefore: before.PendingAmount,
			PendingAfter:  before.PendingAmount,
			Err:           errors.Join(cause, err),
		}
		c.fail(ctx, entry, storage.OutcomeUncertain, uerr)
		return core.Payment{}, uerr
	}
	c.checkDrift(ctx, fresh)
	c.store.UpsertFeeRecord(fresh)
	after, err := c.store.Get(fresh.ID)
	if err != nil {
		return core.Payment{}, err
	}

	decrease := before.PendingAmount.Sub(after.PendingAmount)
	if decrease != in.AmountPaid {
		uerr := &core.PaymentUncertainError{
			FeeRecordID:   before.ID,
			Amount:        in.AmountPaid,
			PendingBefore: before.PendingAmount,
			PendingAfter:  after.PendingAmount,
			Err:           cause,
		}
		c.fail(ctx, entry, storage.OutcomeUncertain, uerr)
		return core.Payment{}, uerr
	}

	p := newPayment(before, after, in)
	entry.PaymentID = p.ID
	entry.Error = cause.Error()
	c.succeed(ctx, entry)
	c.publish(ctx, amqp.EventPaymentRecorded, after, p.ID, p.AmountPaid)
	c.logger.InfoContext(ctx, "Payment confirmed by refetch",
		log.NewFields().WithPayment(string(before.ID), string(p.ID), p.AmountPaid.Cents).ToSlice()...)
	return p, nil
}

// newPayment finds the payment present in after but not in before. The last
// new payment with the submitted amount wins.
func newPayment(before, after core.FeeRecord, in core.NewPayment) core.Payment {
	var found *core.Payment
	for i := range after.Payments {
		p := &after.Payments[i]
		if before.PaymentIndex(p.ID) >= 0 {
			continue
		}
		if found == nil || p.AmountPaid == in.AmountPaid {
			found = p
		}
	}
	if found != nil {
		return *found
	}
	return core.Payment{
		FeeRecordID: after.ID,
		AmountPaid:  in.AmountPaid,
		PaymentDate: in.PaymentDate,
		PaymentMode: in.PaymentMode,
		Note:        in.Note,
	}
}

// DeletePayment removes a payment locally, then on the backend. A failed
// backend delete restores the record from the server.
func (c *FeeController) DeletePayment(ctx context.Context, feeRecordID, paymentID core.ID, confirm Confirmer) error {
	if err := c.session.Active(); err != nil {
		return err
	}
	entry := storage.Entry{Operation: log.OpDeletePayment, FeeRecordID: feeRecordID, PaymentID: paymentID}

	release, err := c.guard.Acquire(feeRecordID)
	if err != nil {
		c.reject(ctx, entry, err)
		return err
	}
	defer release()

	snapshot, err := c.visible(feeRecordID)
	if err != nil {
		return err
	}
	idx := snapshot.PaymentIndex(paymentID)
	if idx < 0 {
		return &core.NotFoundError{Kind: "payment", ID: paymentID}
	}
	p := snapshot.Payments[idx]
	entry.Amount = p.AmountPaid

	prompt := fmt.Sprintf("Delete payment of %s from %s?", p.AmountPaid, snapshot.Student.FullName)
	if confirm == nil || !confirm.Confirm(ctx, prompt) {
		c.logger.InfoContext(ctx, "Payment delete declined", log.FieldFeeRecordID, feeRecordID, log.FieldPaymentID, paymentID)
		return core.ErrDeleteDeclined
	}

	if _, err := c.store.RemovePayment(feeRecordID, paymentID); err != nil {
		return err
	}
	version, _ := c.store.Version(feeRecordID)

	if err := c.api.DeletePayment(ctx, paymentID); err != nil {
		err = remoteError("delete payment", err)
		c.rollback(ctx, snapshot, version)
		c.fail(ctx, entry, storage.OutcomeRolledBack, err)
		return err
	}

	c.succeed(ctx, entry)
	c.publishCurrent(ctx, amqp.EventPaymentDeleted, feeRecordID, paymentID, p.AmountPaid)
	c.logger.InfoContext(ctx, "Payment deleted",
		log.NewFields().WithPayment(string(feeRecordID), string(paymentID), p.AmountPaid.Cents).ToSlice()...)
	return nil
}

// rollback restores server truth for a record after a failed optimistic
// delete. A record the server no longer has is removed. If the backend cannot
// be reached the local snapshot is put back, unless the record changed since
// the optimistic write.
func (c *FeeController) rollback(ctx context.Context, snapshot core.FeeRecord, optimistic uint64) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.rollbackTimeout)
	defer cancel()

	fresh, err := c.api.GetFeeRecord(rctx, snapshot.ID)
	if err == nil {
		c.store.UpsertFeeRecord(fresh)
		c.logger.WarnContext(ctx, "Rolled back from server state", log.FieldFeeRecordID, snapshot.ID)
		return
	}
	if feeapi.IsNotFound(err) {
		// Deleted on the server meanwhile; the snapshot is no longer truth.
		if rerr := c.store.RemoveFeeRecord(snapshot.ID); rerr != nil {
			c.logger.WarnContext(ctx, "Remove after rollback failed", log.FieldFeeRecordID, snapshot.ID, log.FieldError, rerr)
		}
		c.logger.WarnContext(ctx, "Fee record gone on server, removed locally",
			log.FieldFeeRecordID, snapshot.ID, log.FieldError, err)
		return
	}

	current, ok := c.store.Version(snapshot.ID)
	if !ok || current != optimistic {
		c.logger.WarnContext(ctx, "Skipping stale rollback",
			log.FieldFeeRecordID, snapshot.ID, log.FieldError, err)
		return
	}
	c.store.UpsertFeeRecord(snapshot)
	c.logger.WarnContext(ctx, "Rolled back from local snapshot",
		log.FieldFeeRecordID, snapshot.ID, log.FieldError, err)
}

// UpdatePaidAmount overrides a record's paid amount on the backend. This is the
// only path that may leave a record in advance.
func (c *FeeController) UpdatePaidAmount(ctx context.Context, id core.ID, paid core.Money) (core.FeeRecord, error) {
	if err := c.session.Active(); err != nil {
		return core.FeeRecord{}, err
	}
	entry := storage.Entry{Operation: log.OpUpdatePaid, FeeRecordID: id, Amount: paid}
	if paid.Sign() < 0 {
		verr := core.NewValidationError("paid_amount", "paid amount cannot be negative")
		c.reject(ctx, entry, verr)
		return core.FeeRecord{}, verr
	}

	release, err := c.guard.Acquire(id)
	if err != nil {
		c.reject(ctx, entry, err)
		return core.FeeRecord{}, err
	}
	defer release()

	if _, err := c.visible(id); err != nil {
		return core.FeeRecord{}, err
	}
	updated, err := c.api.UpdatePaidAmount(ctx, id, paid)
	if err != nil {
		err = remoteError("update paid amount", err)
		c.fail(ctx, entry, storage.OutcomeFailed, err)
		return core.FeeRecord{}, err
	}

	fresh, err := c.api.GetFeeRecord(ctx, id)
	if err != nil {
		c.logger.WarnContext(ctx, "Refetch after paid amount update failed, keeping server response",
			log.FieldFeeRecordID, id, log.FieldError, err)
		fresh = updated
	}
	c.checkDrift(ctx, fresh)
	c.store.UpsertFeeRecord(fresh)
	r, err := c.store.Get(id)
	if err != nil {
		return core.FeeRecord{}, err
	}

	c.succeed(ctx, entry)
	c.publish(ctx, amqp.EventFeeUpdated, r, "", paid)
	c.logger.InfoContext(ctx, "Paid amount updated",
		log.FieldFeeRecordID, id, log.FieldAmountCents, paid.Cents, "status", r.Status)
	return r, nil
}

// DeleteFeeRecord removes a record and its payments after confirmation. The
// local ledger changes only once the backend has accepted the delete.
func (c *FeeController) DeleteFeeRecord(ctx context.Context, id core.ID, confirm Confirmer) error {
	if err := c.session.Active(); err != nil {
		return err
	}
	entry := storage.Entry{Operation: log.OpDeleteFee, FeeRecordID: id}

	release, err := c.guard.Acquire(id)
	if err != nil {
		c.reject(ctx, entry, err)
		return err
	}
	defer release()

	r, err := c.visible(id)
	if err != nil {
		return err
	}
	entry.Amount = r.TotalFee

	prompt := fmt.Sprintf("Delete the %s fee record of %s and all its payments?", r.CourseName, r.Student.FullName)
	if confirm == nil || !confirm.Confirm(ctx, prompt) {
		c.logger.InfoContext(ctx, "Fee record delete declined", log.FieldFeeRecordID, id)
		return core.ErrDeleteDeclined
	}

	if err := c.api.DeleteFeeRecord(ctx, id); err != nil {
		err = remoteError("delete fee record", err)
		c.fail(ctx, entry, storage.OutcomeFailed, err)
		return err
	}
	if err := c.store.RemoveFeeRecord(id); err != nil {
		return err
	}

	c.succeed(ctx, entry)
	c.publish(ctx, amqp.EventFeeDeleted, r, "", r.TotalFee)
	c.logger.InfoContext(ctx, "Fee record deleted", log.FieldFeeRecordID, id)
	return nil
}

// Get returns a snapshot of one fee record.
func (c *FeeController) Get(id core.ID) (core.FeeRecord, error) {
	if err := c.session.Active(); err != nil {
		return core.FeeRecord{}, err
	}
	return c.visible(id)
}

// Receipt returns the running balances around one payment.
func (c *FeeController) Receipt(feeRecordID, paymentID core.ID) (ledger.Receipt, error) {
	r, err := c.Get(feeRecordID)
	if err != nil {
		return ledger.Receipt{}, err
	}
	return ledger.BuildReceipt(r, paymentID)
}

// List runs the query pipeline over the records the session may see.
func (c *FeeController) List(ctx context.Context, q query.Query) (ListResult, error) {
	if err := c.session.Active(); err != nil {
		return ListResult{}, err
	}
	records := c.Snapshot()
	out, err := query.FeeRecords.Apply(records, q)
	if err != nil {
		return ListResult{}, err
	}
	rows, page := query.Paginate(out, q.Page, q.PerPage)
	c.logger.DebugContext(ctx, "Fee records listed",
		log.FieldOperation, log.OpList, "matched", page.Total, "scoped", len(records))
	return ListResult{Records: rows, Page: page}, nil
}

// Snapshot returns every record the session may see, in ledger order.
func (c *FeeController) Snapshot() []core.FeeRecord {
	user := c.session.User()
	all := c.store.List()
	out := all[:0]
	for _, r := range all {
		if user.CanSeeBranch(r.Student.BranchID) {
			out = append(out, r)
		}
	}
	return out
}

// visible fetches a record and hides records of other branches.
func (c *FeeController) visible(id core.ID) (core.FeeRecord, error) {
	r, err := c.store.Get(id)
	if err != nil {
		return core.FeeRecord{}, err
	}
	if !c.session.User().CanSeeBranch(r.Student.BranchID) {
		return core.FeeRecord{}, &core.NotFoundError{Kind: "fee record", ID: id}
	}
	return r, nil
}

func (c *FeeController) checkDrift(ctx context.Context, r core.FeeRecord) {
	if ledger.Consistent(r) {
		return
	}
	t := ledger.RecomputeTotals(r)
	c.logger.WarnContext(ctx, "Server totals disagree with payments, using recomputed totals",
		log.FieldFeeRecordID, r.ID,
		"server_paid_cents", r.PaidAmount.Cents, "computed_paid_cents", t.PaidAmount.Cents,
		"server_pending_cents", r.PendingAmount.Cents, "computed_pending_cents", t.PendingAmount.Cents)
}

func (c *FeeController) publishCurrent(ctx context.Context, t amqp.EventType, feeRecordID, paymentID core.ID, amount core.Money) {
	r, err := c.store.Get(feeRecordID)
	if err != nil {
		r = core.FeeRecord{ID: feeRecordID}
	}
	c.publish(ctx, t, r, paymentID, amount)
}

func (c *FeeController) publish(ctx context.Context, t amqp.EventType, r core.FeeRecord, paymentID core.ID, amount core.Money) {
	if c.events == nil {
		return
	}
	ev := amqp.NewLedgerEvent(t, r, paymentID, amount)
	ev.UserID = c.session.User().ID
	if err := c.events.Publish(ctx, ev); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, t, log.FieldFeeRecordID, r.ID, log.FieldError, err)
	}
}

func (c *FeeController) succeed(ctx context.Context, e storage.Entry) {
	e.Outcome = storage.OutcomeOK
	c.record(ctx, e)
}

func (c *FeeController) reject(ctx context.Context, e storage.Entry, err error) {
	e.Outcome = storage.OutcomeRejected
	e.Error = err.Error()
	c.logger.WarnContext(ctx, "Operation rejected",
		log.FieldOperation, e.Operation, log.FieldFeeRecordID, e.FeeRecordID, log.FieldError, err)
	c.record(ctx, e)
}

func (c *FeeController) fail(ctx context.Context, e storage.Entry, outcome storage.Outcome, err error) {
	e.Outcome = outcome
	e.Error = err.Error()
	c.logger.ErrorContext(ctx, "Operation failed",
		log.FieldOperation, e.Operation, log.FieldFeeRecordID, e.FeeRecordID,
		"outcome", outcome, log.FieldError, err)
	c.record(ctx, e)
}

func (c *FeeController) record(ctx context.Context, e storage.Entry) {
	if c.journal == nil {
		return
	}
	e.UserID = c.session.User().ID
	if err := c.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		c.logger.ErrorContext(ctx, "Failed to journal operation",
			log.FieldOperation, e.Operation, log.FieldError, err)
	}
}

func remoteError(op string, err error) error {
	if errors.Is(err, core.ErrSessionClosed) {
		return err
	}
	re := &core.RemoteError{Op: op, Err: err}
	var be *feeapi.Error
	if errors.As(err, &be) {
		re.StatusCode = be.StatusCode
	}
	return re
}
