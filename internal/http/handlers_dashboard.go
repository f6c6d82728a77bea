package http

import (
	"context"
	"net/http"
	"time"

	applog "budgetapp/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store and reports request metrics.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"store": "not_configured"}
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	m := s.tracer.GetMetrics()
	NewResponse().Status(code).JSON(map[string]any{
		"status": status,
		"checks": checks,
		"metrics": map[string]any{
			"total_requests":     m.TotalRequests,
			"server_errors":      m.ServerErrors,
			"avg_response_us":    m.AverageResponseTime,
			"rate_limit_clients": s.limiter.ActiveClients(),
		},
	}).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	ov, err := s.svc.Dashboard.Overview(r.Context(), owner)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(ov).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	sum, err := s.svc.Dashboard.Summary(r.Context(), owner)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(sum).Write(w)
}
