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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"studentbudget/internal/core"
	applog "studentbudget/internal/log"
	"studentbudget/internal/middleware/ratelimit"
	"studentbudget/internal/middleware/security"
	"studentbudget/internal/middleware/trace"
	"studentbudget/internal/services"
	"studentbudget/internal/session"
	"studentbudget/internal/store"
	appweb "studentbudget/web"
)

// Options carries the collaborators of the web server.
type Options struct {
	Service  *services.BudgetService
	Store    store.Store
	Sessions *session.Codec
	Logger   *applog.Logger
	// CORSOrigins enables cross-origin access to /api for these origins.
	CORSOrigins []string
	RateLimit   ratelimit.Config
}

type Server struct {
	http.Server
	svc       *services.BudgetService
	store     store.Store
	sessions  *session.Codec
	templates *template.Template
	logger    *applog.Logger
	started   time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Service == nil || opts.Store == nil || opts.Sessions == nil {
		return nil, errors.New("service, store and sessions are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:       opts.Service,
		store:     opts.Store,
		sessions:  opts.Sessions,
		templates: t,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		started:   time.Now(),
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(logger, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"rupees":  formatRupees,
		"percent": formatPercent,
		"plain":   formatPlain,
		"field":   baselineField,
	}
	t, err := template.New("pages").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

func (s *Server) routes(logger *applog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(applog.Middleware(logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string { return chimw.GetReqID(r.Context()) }))
	r.Use(s.tracer.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, opts.RateLimit.Methods, nil))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Get("/", s.handleIndex)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/register", s.handleRegisterPage)
		r.Post("/register", s.handleRegister)
		r.Post("/register/cancel", s.handleCancelRegistration)
		r.Get("/dashboard", s.handleDashboard)
		r.Post("/expenses", s.handleAddExpense)
	})

	r.Route("/api", func(r chi.Router) {
		if len(opts.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   opts.CORSOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(security.NoStore)
		r.Use(s.requireUser)
		r.Get("/metrics", s.handleAPIMetrics)
		r.Get("/tips", s.handleAPITips)
		r.Get("/comparison", s.handleAPIComparison)
		r.Get("/cohort", s.handleAPICohort)
	})

	return r
}

// Shutdown stops the limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// pageData is the root value of every page template.
type pageData struct {
	Title      string
	Session    session.Session
	Error      string
	Notice     string
	Form       map[string]string
	Categories []core.Category
	Genders    []core.Gender
	Views      []session.View
	Tabs       []session.Tab
	Other      string
	Today      string
	MinAge     int
	MaxAge     int
	Dashboard  *services.Dashboard
}

func (s *Server) newPage(title string, sess session.Session) pageData {
	return pageData{
		Title:      title,
		Session:    sess,
		Form:       map[string]string{},
		Categories: core.Categories(),
		Genders:    core.Genders(),
		Views:      session.Views(),
		Tabs:       session.Tabs(),
		Other:      services.OtherCategory,
		Today:      core.Today().String(),
		MinAge:     core.MinAge,
		MaxAge:     core.MaxAge,
	}
}

// render executes the page into a buffer first so a template failure never
// leaves a half written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender,
			"template", name)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// saveSession writes the session cookie; a failure is logged and the request
// carries on with the previous cookie.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if err := s.sessions.Write(w, sess); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentSession).ErrorContext(r.Context(), "Failed to write session",
			applog.FieldError, err)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
