package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldFeeRecordID   = "fee_record_id"
	FieldPaymentID     = "payment_id"
	FieldStudentID     = "student_id"
	FieldAmountCents   = "amount_cents"
	FieldPendingBefore = "pending_before_cents"
	FieldPendingAfter  = "pending_after_cents"
	FieldUserID        = "user_id"
	FieldRole          = "role"
	FieldEventType     = "event_type"
	FieldReminderKind  = "reminder_kind"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentLookups  = "lookups"
	ComponentReminder = "reminder"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentCache    = "cache"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
)

// Operations defines standard operation names
const (
	OpCreateFee     = "create_fee"
	OpRecordPayment = "record_payment"
	OpDeletePayment = "delete_payment"
	OpUpdatePaid    = "update_paid_amount"
	OpDeleteFee     = "delete_fee"
	OpRefresh       = "refresh"
	OpList          = "list"
	OpExport        = "export"
	OpRemind        = "remind"
	OpShutdown      = "shutdown"
	OpStartup       = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPayment adds the fee record, payment and amount of a ledger mutation.
// Empty ids are skipped.
func (f LogFields) WithPayment(feeRecordID, paymentID string, amountCents int64) LogFields {
	if feeRecordID != "" {
		f[FieldFeeRecordID] = feeRecordID
	}
	if paymentID != "" {
		f[FieldPaymentID] = paymentID
	}
	f[FieldAmountCents] = amountCents
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
