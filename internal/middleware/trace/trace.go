package trace

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// maxInboundIDLen bounds ids accepted from callers.
const maxInboundIDLen = 128

// Middleware assigns every request an id and keeps simple counters.
type Middleware struct {
	newID   func() string
	metrics Metrics
}

// Metrics tracks request counters.
type Metrics struct {
	TotalRequests     int64
	ServerErrors      int64
	LastDurationMicro int64
}

// NewMiddleware creates a trace middleware that mints uuid request ids.
func NewMiddleware() *Middleware {
	return &Middleware{newID: func() string { return uuid.NewString() }}
}

// Middleware returns HTTP middleware for request tracing. An inbound
// X-Request-ID is honoured so ids survive a proxy hop.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if requestID == "" || len(requestID) > maxInboundIDLen {
			requestID = m.newID()
		}
		w.Header().Set(HeaderRequestID, requestID)
		r = r.WithContext(WithRequestID(r.Context(), requestID))

		atomic.AddInt64(&m.metrics.TotalRequests, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode >= 500 {
			atomic.AddInt64(&m.metrics.ServerErrors, 1)
		}
		atomic.StoreInt64(&m.metrics.LastDurationMicro, time.Since(start).Microseconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// WithRequestID returns ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromRequest is GetRequestID for a request; it fits log.Middleware.
func FromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:     atomic.LoadInt64(&m.metrics.TotalRequests),
		ServerErrors:      atomic.LoadInt64(&m.metrics.ServerErrors),
		LastDurationMicro: atomic.LoadInt64(&m.metrics.LastDurationMicro),
	}
}
