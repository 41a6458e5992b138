// This file implements the Builder Pattern for JSON responses and the
// mapping from ledger errors to HTTP statuses.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/log"
)

// Error codes carried in error bodies.
const (
	CodeValidation  = "validation_failed"
	CodeNotFound    = "not_found"
	CodeInFlight    = "operation_in_flight"
	CodeNotConfirm  = "confirmation_required"
	CodeUncertain   = "payment_uncertain"
	CodeRemote      = "backend_unavailable"
	CodeSession     = "session_closed"
	CodeRateLimited = "rate_limited"
	CodeInternal    = "internal_error"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body sends none.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Uncertain bool   `json:"uncertain,omitempty"`
	// Uncertain payments carry the figures needed to verify them by hand.
	FeeRecordID   core.ID     `json:"fee_record_id,omitempty"`
	Amount        *core.Money `json:"amount,omitempty"`
	PendingBefore *core.Money `json:"pending_before,omitempty"`
	PendingAfter  *core.Money `json:"pending_after,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeValidation, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// ErrorFor maps a ledger error to its response.
func ErrorFor(err error) *JSONResponseBuilder {
	var (
		verr      *core.ValidationError
		nferr     *core.NotFoundError
		uncertain *core.PaymentUncertainError
		remote    *core.RemoteError
	)
	switch {
	case errors.As(err, &uncertain):
		amount, before, after := uncertain.Amount, uncertain.PendingBefore, uncertain.PendingAfter
		return NewJSONResponse().Status(http.StatusConflict).Body(ErrorBody{Error: ErrorDetail{
			Code:          CodeUncertain,
			Message:       uncertain.Error(),
			Uncertain:     true,
			FeeRecordID:   uncertain.FeeRecordID,
			Amount:        &amount,
			PendingBefore: &before,
			PendingAfter:  &after,
		}})
	case errors.As(err, &verr):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(ErrorBody{Error: ErrorDetail{
			Code: CodeValidation, Message: verr.Message, Field: verr.Field,
		}})
	case errors.As(err, &nferr):
		return NotFoundError(nferr.Error())
	case errors.Is(err, core.ErrOperationInFlight):
		return ErrorResponse(http.StatusConflict, CodeInFlight, err.Error())
	case errors.Is(err, core.ErrDeleteDeclined):
		return ErrorResponse(http.StatusPreconditionRequired, CodeNotConfirm, "repeat the request with confirm=yes to delete")
	case errors.Is(err, core.ErrSessionClosed):
		return ErrorResponse(http.StatusUnauthorized, CodeSession, err.Error())
	case errors.As(err, &remote):
		return ErrorResponse(http.StatusBadGateway, CodeRemote, remote.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, CodeRemote, "backend did not answer in time")
	default:
		return InternalServerError("internal error")
	}
}

// writeError logs err at a level matching the status and writes the mapped
// response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorFor(err)
	logger := log.FromContext(r.Context())
	switch {
	case resp.statusCode >= 500:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, "status", resp.statusCode)
	case resp.statusCode == http.StatusConflict && errors.As(err, new(*core.PaymentUncertainError)):
		logger.ErrorContext(r.Context(), "Payment outcome uncertain", log.FieldError, err)
	default:
		logger.WarnContext(r.Context(), "Request rejected", log.FieldError, err, "status", resp.statusCode)
	}
	resp.Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
