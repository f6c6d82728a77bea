package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budgetapp/internal/core"
	applog "budgetapp/internal/log"
	"budgetapp/internal/middleware/ratelimit"
	"budgetapp/internal/middleware/security"
	"budgetapp/internal/middleware/trace"
	"budgetapp/internal/services"
)

// HeaderOwnerID selects the ledger owner of a request.
const HeaderOwnerID = "X-Owner-ID"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services the handlers call.
type Services struct {
	Ledger    *services.LedgerService
	Imports   *services.ImportService
	Reports   *services.ReportService
	Dashboard *services.DashboardService
}

type Options struct {
	// DefaultOwner is used when a request carries no X-Owner-ID header.
	DefaultOwner       int64
	RateLimitPerMinute int
	// Pinger is optional; without it readiness only checks the services.
	Pinger Pinger
	Logger *slog.Logger
}

type Server struct {
	http.Server
	svc          Services
	defaultOwner int64
	pinger       Pinger
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	startedAt    time.Time
	now          func() time.Time
}

func NewServer(addr string, svc Services, opts Options) *Server {
	s := &Server{
		svc:          svc,
		defaultOwner: opts.DefaultOwner,
		pinger:       opts.Pinger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		tracer:    trace.NewMiddleware(clientIP),
		startedAt: time.Now(),
		now:       time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(clientIP, ratelimit.WritesOnly, s.handleRateLimited)(h)
	h = security.NoStore(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.GetRequestID)(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(applog.FromSlog(opts.Logger, applog.ComponentHTTP))(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("PUT /api/budgets", s.handleSetBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/duplicates", s.handleDuplicates)

	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("GET /api/reports/{period}", s.handleReport)
	mux.HandleFunc("GET /api/reports/{period}/pdf", s.handleReportPDF)
}

// Shutdown stops the rate limiter and gracefully shuts down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// owner resolves the ledger owner from X-Owner-ID or the default owner. An
// id with no matching user is a NotFoundError.
func (s *Server) owner(r *http.Request) (int64, error) {
	id := s.defaultOwner
	if v := strings.TrimSpace(r.Header.Get(HeaderOwnerID)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return 0, &core.ValidationError{Field: "owner", Reason: "invalid " + HeaderOwnerID + " header"}
		}
		id = n
	} else if id <= 0 {
		return 0, &core.ValidationError{Field: "owner", Reason: HeaderOwnerID + " header is required"}
	}

	if _, err := s.svc.Ledger.Owner(r.Context(), id); err != nil {
		return 0, err
	}
	return id, nil
}

// fail logs err against the request and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	applog.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
		applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", ""))
	FromError(err).Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP(r), "method", r.Method, "path", r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// clientIP extracts the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
