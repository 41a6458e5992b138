package http

import (
	"context"
	"net/http"
	"time"

	"feeledger/internal/core"
	"feeledger/internal/query"
)

type studentsResponse struct {
	Students []core.Student `json:"students"`
	Page     query.Page     `json:"page"`
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if s.lookups == nil {
		ErrorResponse(http.StatusNotImplemented, CodeInternal, "lookups are not configured").Write(w)
		return
	}
	if err := s.fees.Session().Active(); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	students, page, err := s.lookups.Students(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studentsResponse{Students: students, Page: page})
}

func (s *Server) handleLookups(w http.ResponseWriter, r *http.Request) {
	if s.lookups == nil {
		ErrorResponse(http.StatusNotImplemented, CodeInternal, "lookups are not configured").Write(w)
		return
	}
	if err := s.fees.Session().Active(); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.lookups.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the session and the configured dependencies.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"session": "ok", "dependencies": "ok"}
	if err := s.fees.Session().Active(); err != nil {
		checks["session"] = err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["dependencies"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	tm := s.tracer.GetMetrics()
	body := map[string]any{
		"status": status,
		"checks": checks,
		"requests": map[string]int64{
			"total":         tm.TotalRequests,
			"server_errors": tm.ServerErrors,
		},
	}
	if s.limiter != nil {
		lm := s.limiter.GetMetrics()
		body["rate_limiter"] = map[string]int64{"clients": lm.ClientCount, "rejected": lm.Rejected}
	}
	writeJSON(w, code, body)
}
