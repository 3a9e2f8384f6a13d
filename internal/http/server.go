package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"campusbudget/internal/core"
	"campusbudget/internal/engine"
	"campusbudget/internal/middleware/ratelimit"
	"campusbudget/internal/middleware/security"
	"campusbudget/internal/middleware/trace"
	"campusbudget/internal/records"
	"campusbudget/internal/services"

	applog "campusbudget/internal/log"
)

// Options configures the API server.
type Options struct {
	JWTSecret          []byte
	RateLimitPerMinute int
	// RequestTimeout bounds each request's context and the write deadline.
	RequestTimeout time.Duration
	Logger         *applog.Logger
}

// Server is the JSON API over the record and report services.
type Server struct {
	http.Server

	records  *services.RecordService
	reports  *services.ReportService
	auth     *Authenticator
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *applog.Logger
	timeout  time.Duration

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, recordSvc *services.RecordService, reportSvc *services.ReportService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	s := &Server{
		records:  recordSvc,
		reports:  reportSvc,
		auth:     NewAuthenticator(opts.JWTSecret),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
		tracer:   trace.NewMiddleware(),
		logger:   opts.Logger.WithComponent(applog.ComponentHTTP),
		timeout:  opts.RequestTimeout,
		started:  time.Now(),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	s.routes(mux)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such route").RequestID(trace.RequestID(r)).Write(w)
	})

	var handler http.Handler = mux
	handler = s.withTimeout(handler)
	handler = s.withRequestLogging(handler)
	handler = applog.RequestIDMiddleware(trace.RequestID)(handler)
	handler = applog.Middleware(s.logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.RequestTimeout,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// api wraps an /api handler with rate limiting and authentication. Limiting
// runs first so unauthenticated floods are throttled too.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r), applog.FieldPath, r.URL.Path)
		TooManyRequestsError().RequestID(trace.RequestID(r)).Write(w)
	})
	return limit(s.auth.Middleware(h))
}

// Shutdown gracefully shuts down the server and the limiter's cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRequestLogging logs request start and completion and flags probing
// requests.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := applog.FromContext(ctx)
		sl := applog.NewStructuredLogger(logger)
		clientIP := s.detector.ExtractClientIP(r)

		if s.detector.DetectSuspiciousRequest(r) {
			logger.WithComponent(applog.ComponentSecurity).WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		sl.LogHTTPStart(ctx, r, clientIP)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		sl.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady is the readiness probe. It fails while the record store is
// unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": s.limiterStats(),
	}
	if err := s.records.Store().Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) limiterStats() map[string]any {
	m := s.limiter.GetMetrics()
	return map[string]any{"active_clients": m.ClientCount, "rejected": m.Rejected}
}

// allowMethods writes 405 and returns false unless r uses one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	MethodNotAllowedError(strings.Join(methods, ", ")).RequestID(trace.RequestID(r)).Write(w)
	return false
}

// writeError maps err to its status code. Server-side failures are logged
// and their detail withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path, applog.FieldError, err.Error())
	}

	var resp *ResponseBuilder
	switch code {
	case http.StatusBadRequest:
		resp = BadRequestError(err.Error())
	case http.StatusUnauthorized:
		resp = UnauthorizedError(err.Error())
	case http.StatusNotFound:
		resp = NotFoundError(err.Error())
	case http.StatusUnprocessableEntity:
		resp = UnprocessableEntityError(err.Error())
	case http.StatusServiceUnavailable:
		resp = ServiceUnavailableError("service temporarily unavailable")
	default:
		resp = InternalServerError()
	}
	resp.RequestID(trace.RequestID(r)).Write(w)
}

// statusFor is the single mapping from error kinds to status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errMalformedRequest),
		errors.Is(err, engine.ErrUnknownRange),
		errors.Is(err, engine.ErrInvalidWindow):
		return http.StatusBadRequest
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, records.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
