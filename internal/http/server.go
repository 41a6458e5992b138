package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"feeledger/internal/cache"
	"feeledger/internal/log"
	"feeledger/internal/middleware/ratelimit"
	"feeledger/internal/middleware/security"
	"feeledger/internal/middleware/trace"
	"feeledger/internal/services"
)

// ReadyFunc reports whether the server's dependencies can take traffic.
type ReadyFunc func(ctx context.Context) error

// Deps are the collaborators of the server.
type Deps struct {
	Fees    *services.FeeController
	Lookups *services.LookupService
	Logger  *log.Logger
	// Ready is optional; nil means always ready.
	Ready ReadyFunc
	// RateLimitPerMinute bounds writes per client; 0 disables the limiter.
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	fees     *services.FeeController
	lookups  *services.LookupService
	ready    ReadyFunc
	logger   *log.Logger
	validate *validator.Validate

	tracer  *trace.Middleware
	limiter *ratelimit.Limiter
	caches  *cache.Manager
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		fees:     deps.Fees,
		lookups:  deps.Lookups,
		ready:    deps.Ready,
		logger:   logger.WithComponent(log.ComponentHTTP),
		validate: services.NewValidator(),
		tracer:   trace.NewMiddleware(),
		caches:   cache.NewManager(),
		started:  time.Now(),
	}
	if deps.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute})
	}
	if s.lookups != nil {
		for _, c := range s.lookups.Cleaners() {
			s.caches.Register(c)
		}
		s.caches.StartCleanup(10 * time.Minute)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/fees", s.handleListFees)
	mux.Handle("POST /api/fees", s.limited(s.handleCreateFee))
	mux.Handle("POST /api/fees/refresh", s.limited(s.handleRefresh))
	mux.HandleFunc("GET /api/fees/{id}", s.handleGetFee)
	mux.Handle("PUT /api/fees/{id}/paid-amount", s.limited(s.handleUpdatePaidAmount))
	mux.Handle("DELETE /api/fees/{id}", s.limited(s.handleDeleteFee))
	mux.Handle("POST /api/fees/{id}/payments", s.limited(s.handleRecordPayment))
	mux.Handle("DELETE /api/fees/{id}/payments/{paymentID}", s.limited(s.handleDeletePayment))
	mux.HandleFunc("GET /api/fees/{id}/payments/{paymentID}/receipt", s.handleReceipt)

	mux.HandleFunc("GET /api/students", s.handleListStudents)
	mux.HandleFunc("GET /api/lookups", s.handleLookups)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = log.Middleware(s.logger, trace.FromRequest)(handler)
	handler = s.tracer.Middleware(handler)
	handler = headers.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// limited applies the write rate limit when one is configured.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP(r))
		ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "too many requests, try again later").Write(w)
	})(h)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.lookups != nil {
			s.caches.Stop()
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
