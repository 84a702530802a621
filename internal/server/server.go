// Package server wires the application together and runs the HTTP server.
//
// New is the composition root: it opens the database, builds the mail
// dispatcher, the services and the handlers, and maps them to routes.
//
//	config.Config → sqlite.DB → services → handlers → chi router
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/nowastemate/internal/auth"
	"github.com/sakif/nowastemate/internal/config"
	"github.com/sakif/nowastemate/internal/handler"
	"github.com/sakif/nowastemate/internal/mailer"
	"github.com/sakif/nowastemate/internal/metrics"
	"github.com/sakif/nowastemate/internal/middleware"
	"github.com/sakif/nowastemate/internal/model"
	sqliteRepo "github.com/sakif/nowastemate/internal/repository/sqlite"
	"github.com/sakif/nowastemate/internal/service"
	"github.com/sakif/nowastemate/web"
)

// Option customizes New. Tests use them to swap slow or external parts.
type Option func(*options)

type options struct {
	mailer    mailer.Mailer
	passwords *auth.PasswordService
}

// WithMailer replaces the SMTP or log mailer.
func WithMailer(m mailer.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithPasswords replaces the bcrypt service, e.g. with a low cost one.
func WithPasswords(p *auth.PasswordService) Option {
	return func(o *options) { o.passwords = p }
}

// Server owns the router and every long-lived resource: the database, the
// mail dispatcher and the rate limiter. Close releases them.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	mail    *mailer.Dispatcher
	limiter *middleware.RateLimiter

	accounts *service.AccountService
}

// New builds a ready-to-serve Server. The mail dispatcher is started.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if o.mailer == nil {
		if o.mailer, err = NewMailer(cfg, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	if o.passwords == nil {
		o.passwords = auth.NewPasswordService()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		mail: mailer.NewDispatcher(o.mailer, mailer.DispatcherConfig{
			Workers:   cfg.MailWorkers,
			QueueSize: cfg.MailQueueSize,
		}, logger),
	}

	if err := s.setupRoutes(o.passwords); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	s.mail.Start()
	return s, nil
}

// NewMailer picks SMTP delivery when a relay is configured and logs
// messages otherwise.
func NewMailer(cfg *config.Config, logger *slog.Logger) (mailer.Mailer, error) {
	if !cfg.SMTPEnabled() {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		return mailer.NewLogMailer(logger), nil
	}
	m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// setupRoutes builds the dependency chain and the route table.
//
// ROUTES:
//
//	GET       /                           home
//	GET/POST  /register/                  registration        (POST rate limited)
//	GET/POST  /login/                     password login      (POST rate limited)
//	POST      /logout/
//	GET       /auth/github/login          only with GitHub configured
//	GET       /auth/github/callback
//	GET/POST  /contact/                   contact form        (POST rate limited)
//	GET       /impact/                    public statistics
//	GET       /dashboard/                 donor or NGO dashboard
//	GET/POST  /donate/                    donor only
//	GET       /donations/                 NGO only, with filters
//	POST      /donations/claim/{id}/      NGO only
//	POST      /donations/complete/{id}/   donor only
//	GET/POST  /review/add/{id}/           either party of a completed donation
//	POST      /notifications/mark-as-read/
//	GET       /healthz, /metrics, /static/*
func (s *Server) setupRoutes(passwords *auth.PasswordService) error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	sessions := auth.NewSessions(tokens, s.config.IsProduction())
	gate := auth.NewGate(s.db)

	templates := web.Templates()
	if s.config.TemplateDir != "" {
		templates = os.DirFS(s.config.TemplateDir)
	}
	renderer, err := handler.NewRenderer(templates, s.logger)
	if err != nil {
		return err
	}

	// === Services ===
	accounts := service.NewAccountService(s.db, passwords, gate, s.mail, s.logger)
	s.accounts = accounts
	donations := service.NewDonationService(s.db, s.mail, s.logger)
	reviews := service.NewReviewService(s.db, s.mail, s.logger)
	notifications := service.NewNotificationService(s.db, s.logger)
	contact := service.NewContactService(s.db, s.logger)
	impact := service.NewImpactService(s.db)

	// === Handlers ===
	site := handler.NewSite(renderer, sessions, gate, notifications, s.logger)
	accountHandler := handler.NewAccountHandler(site, accounts, s.config.GitHubEnabled())
	donationHandler := handler.NewDonationHandler(site, donations)
	reviewHandler := handler.NewReviewHandler(site, reviews)
	pageHandler := handler.NewPageHandler(site, contact, impact, notifications)

	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)

	s.router.NotFound(pageHandler.NotFound)

	// === Operational ===
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	static := web.Static()
	if s.config.StaticDir != "" {
		static = os.DirFS(s.config.StaticDir)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// === Public pages ===
	limited := func(h http.HandlerFunc) http.Handler { return h }
	if s.config.RateLimitPerMinute > 0 {
		s.limiter = middleware.NewRateLimiter(s.config.RateLimitPerMinute,
			http.HandlerFunc(pageHandler.TooManyRequests), s.logger)
		limited = func(h http.HandlerFunc) http.Handler { return s.limiter.Handler(h) }
	}

	s.router.Get("/", pageHandler.Home)
	s.router.Get("/impact/", pageHandler.Impact)
	s.router.Get("/contact/", pageHandler.ContactForm)
	s.router.Method(http.MethodPost, "/contact/", limited(pageHandler.Contact))

	s.router.Get("/register/", accountHandler.HandleRegisterForm)
	s.router.Method(http.MethodPost, "/register/", limited(accountHandler.HandleRegister))
	s.router.Get("/login/", accountHandler.HandleLoginForm)
	s.router.Method(http.MethodPost, "/login/", limited(accountHandler.HandleLogin))
	s.router.Post("/logout/", accountHandler.HandleLogout)

	if s.config.GitHubEnabled() {
		github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
		githubHandler := handler.NewGitHubHandler(site, github, accounts)
		s.router.Get("/auth/github/login", githubHandler.HandleLogin)
		s.router.Get("/auth/github/callback", githubHandler.HandleCallback)
	} else {
		s.logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID not set)")
	}

	// === Member pages ===
	s.router.Get("/dashboard/", site.RequireViewer(donationHandler.Dashboard))
	s.router.Post("/notifications/mark-as-read/", site.RequireViewer(pageHandler.MarkNotificationsRead))

	s.router.Get("/donate/", site.RequireRole(model.RoleDonor, donationHandler.PostForm))
	s.router.Post("/donate/", site.RequireRole(model.RoleDonor, donationHandler.Post))
	s.router.Post("/donations/complete/{id}/", site.RequireRole(model.RoleDonor, donationHandler.Complete))

	s.router.Get("/donations/", site.RequireRole(model.RoleNGO, donationHandler.Browse))
	s.router.Post("/donations/claim/{id}/", site.RequireRole(model.RoleNGO, donationHandler.Claim))

	s.router.Get("/review/add/{id}/", site.RequireViewer(reviewHandler.Form))
	s.router.Post("/review/add/{id}/", site.RequireViewer(reviewHandler.Submit))

	return nil
}

// handleHealth reports whether the database answers.
//
// HTTP: GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "database unavailable")
		return
	}
	fmt.Fprintln(w, "ok")
}

// Handler returns the root handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close drains the mail queue and closes the database.
func (s *Server) Close() error {
	s.mail.Stop()
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM and then shuts down gracefully:
//
//  1. stop accepting connections and wait up to 30s for in-flight requests
//  2. deliver queued emails
//  3. close the database
func (s *Server) Start() error {
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.limiter != nil {
		s.limiter.StartSweeper(ctx, 5*time.Minute)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
			slog.String("env", s.config.AppEnv),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
