// Package http serves the calculator: an htmx page, a JSON API and file
// downloads, all scoped to the caller's session cookie.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"optionsworth/internal/log"
	"optionsworth/internal/middleware/ratelimit"
	"optionsworth/internal/middleware/security"
	"optionsworth/internal/middleware/trace"
	"optionsworth/internal/services"
	"optionsworth/internal/session"
	appweb "optionsworth/web"
)

// Options configures NewServer.
type Options struct {
	Addr          string
	Sessions      *session.Store
	Calculator    *services.CalculatorService
	Logger        *log.Logger
	RateLimit     ratelimit.Config
	SecureCookies bool
}

type Server struct {
	http.Server
	templates *template.Template
	sessions  *session.Store
	calc      *services.CalculatorService
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	secureCookies bool
	started       time.Time
	shutdownOnce  sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("http: session store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	calc := opts.Calculator
	if calc == nil {
		calc = services.NewCalculatorService(nil, logger)
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector()
	s := &Server{
		templates:     t,
		sessions:      opts.Sessions,
		calc:          calc,
		logger:        logger,
		limiter:       ratelimit.NewLimiter(opts.RateLimit),
		tracer:        trace.NewMiddleware(logger, detector.ExtractClientIP),
		detector:      detector,
		secureCookies: opts.SecureCookies,
		started:       time.Now(),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		// embed paths are fixed at compile time
		panic(err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	app := http.NewServeMux()
	// HTML
	app.HandleFunc("GET /{$}", s.handleIndex)
	app.HandleFunc("GET /ui/calculator", s.handleCalculator)
	app.HandleFunc("POST /rates", s.handleSetRate)
	app.HandleFunc("POST /grants", s.handleAddGrant)
	app.HandleFunc("POST /grants/{index}", s.handleSetGrantField)
	// JSON
	app.HandleFunc("GET /api/portfolio", s.handleAPIPortfolio)
	app.HandleFunc("GET /api/total", s.handleAPITotal)
	app.HandleFunc("POST /api/grants", s.handleAPIAddGrant)
	app.HandleFunc("PUT /api/grants/{index}", s.handleAPISetGrantField)
	app.HandleFunc("PUT /api/rates", s.handleAPISetRate)
	// Files
	app.HandleFunc("GET /report.pdf", s.handleReport)
	app.HandleFunc("GET /portfolio.yaml", s.handleExport)
	app.HandleFunc("POST /portfolio.yaml", s.handleImport)

	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost, http.MethodPut)
	mux.Handle("/", limit(security.NoStore(app)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	return s.tracer.Middleware(s.detector.Middleware(headers.Middleware(mux)))
}

// Run serves until ctx is cancelled and then shuts down, giving in-flight
// requests up to shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.limiter.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		return s.Shutdown(sctx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	msg := "Too many changes, please slow down"
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	WriteJSON(w, http.StatusTooManyRequests, errorBody{Error: msg, Status: http.StatusTooManyRequests})
}

// render executes a template into a buffer first so a failing template never
// leaves a half-written page.
func (s *Server) render(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// fail logs err when it is not the caller's fault and writes the matching
// error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, api bool) {
	status := StatusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, r.Pattern,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()))
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
	}

	if api {
		WriteJSONError(w, err)
		return
	}
	ErrorFor(err).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]interface{}{}

	if s.templates == nil || s.templates.Lookup("index.html") == nil || s.templates.Lookup("calculator") == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	checks["sessions"] = map[string]interface{}{
		"active": s.sessions.Len(),
		"status": "ok",
	}
	rl := s.limiter.GetMetrics()
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": rl.ClientCount,
		"total_hits":     rl.TotalHits,
		"status":         "ok",
	}
	tm := s.tracer.GetMetrics()
	checks["requests"] = map[string]interface{}{
		"total":      tm.TotalRequests,
		"failed":     tm.FailedRequests,
		"suspicious": s.detector.SuspiciousRequests(),
	}

	WriteJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
