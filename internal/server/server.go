// Package server is the composition root: it opens the database, builds
// the services and handlers, wires them to routes and owns the process
// lifecycle.
//
// Dependencies flow one way. Handlers get services, services get
// repository interfaces, and only this package knows that the concrete
// repositories are SQLite.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/config"
	"github.com/sakif/videohub/internal/extract"
	"github.com/sakif/videohub/internal/handler"
	"github.com/sakif/videohub/internal/mail"
	"github.com/sakif/videohub/internal/middleware"
	sqliteRepo "github.com/sakif/videohub/internal/repository/sqlite"
	"github.com/sakif/videohub/internal/scheduler"
	"github.com/sakif/videohub/internal/service"
	"github.com/sakif/videohub/internal/view"
)

const shutdownTimeout = 30 * time.Second

// Deps are the pieces main chooses at startup.
type Deps struct {
	// Extractor is closed on shutdown when it implements io.Closer.
	Extractor extract.Extractor
	Mailer    mail.Mailer
	// Output receives story prints and extraction banners.
	Output io.Writer
}

type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	sched     *scheduler.Scheduler
	extractor extract.Extractor
}

// New opens the database and wires everything. The scheduler is built
// here but only started by Start.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		logger:    logger,
		db:        db,
		extractor: deps.Extractor,
		sched: scheduler.New(db.Tasks(), scheduler.Config{
			Workers:   cfg.Scheduler.Workers,
			QueueSize: cfg.Scheduler.QueueSize,
		}, logger),
	}

	if err := s.setupRoutes(deps); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Scheduler exposes the task scheduler, mainly for tests.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// setupRoutes builds the service graph and mounts it.
//
// Middleware order: RequestID first so every log line has it, then the
// logger, then Recoverer so a panic is logged as a 500 instead of
// killing the connection.
func (s *Server) setupRoutes(deps Deps) error {
	cfg := s.cfg

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	jar, err := auth.NewTokenJar([]byte(cfg.Auth.CookieHashKey), []byte(cfg.Auth.CookieBlockKey), cfg.Auth.SecureCookies)
	if err != nil {
		return err
	}
	renderer, err := view.New()
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService()

	// === Services ===
	verify := service.NewVerificationService(s.db.Verifications(), s.logger)
	accounts := service.NewAccountService(s.db.Users(), verify, passwords, tokens, deps.Mailer, cfg.Auth.IsAdminEmail, s.logger)
	videos := service.NewVideoService(s.db.Videos(), s.db.Telemetry(), passwords, s.logger)
	telemetry := service.NewTelemetryService(s.db.Telemetry(), s.logger)
	discussion := service.NewDiscussionService(s.db.Videos(), s.db.Comments(), s.db.Responses(), s.db.Users(), s.logger)
	stories := service.NewStoryService(s.db.Stories(), s.sched, deps.Output, s.logger)
	docs := service.NewDocumentService(s.db.Documents(), s.sched, deps.Extractor,
		service.NewWebhook(cfg.Documents.WebhookURL, cfg.Documents.WebhookToken, s.logger),
		service.DocumentConfig{UploadDir: cfg.Documents.UploadDir, MaxUploadBytes: cfg.Documents.MaxUploadBytes},
		deps.Output, s.logger)

	s.sched.Register(service.TaskPrintStory, stories.PrintTask)
	s.sched.Register(service.TaskExtractDocument, docs.ExtractTask)

	// === Handlers ===
	var github *auth.GitHubProvider
	if cfg.Auth.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret, cfg.Auth.GitHubCallbackURL)
	}
	pages := handler.NewPageHandler(videos, discussion, stories, docs, renderer, s.logger)
	threads := handler.NewDiscussionHandler(discussion, renderer, jar, s.logger)
	work := handler.NewWorkHandler(stories, docs, cfg.Documents.MaxUploadBytes, s.logger)
	account := handler.NewAccountHandler(accounts, jar, github, cfg.Auth.SecureCookies, s.logger)
	admin := handler.NewAdminHandler(videos, telemetry, s.logger)

	limit := httprate.Limit(cfg.RateLimit.Requests, cfg.RateLimit.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)

	// === Global middleware ===
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	// === Ops ===
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// === Public site and discussion ===
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))

		r.Get("/", pages.HandleHome)
		r.Get("/videos", pages.HandleVideos)
		r.Get("/videos/{id}", pages.HandleVideo)
		r.Get("/stories", pages.HandleStories)
		r.Get("/documents", pages.HandleDocuments)
		r.Get("/documents/{id}", pages.HandleDocument)
		r.Get("/documents/{id}/status", work.HandleDocumentStatus)

		r.Get("/videos/{id}/comments", threads.HandleListComments)
		r.Get("/comments/{id}/replies", threads.HandleCommentReplies)
		r.Get("/comments/{id}/responses", threads.HandleListResponses)
		r.Get("/responses/{id}/replies", threads.HandleResponseReplies)

		r.Group(func(r chi.Router) {
			r.Use(limit)

			r.Post("/videos/{id}/comments", threads.HandleAddComment)
			r.Post("/comments/{id}/edit", threads.HandleEditComment)
			r.Post("/comments/{id}/delete", threads.HandleDeleteComment)
			r.Post("/comments/{id}/responses", threads.HandleAddResponse)
			r.Post("/responses/{id}/edit", threads.HandleEditResponse)
			r.Post("/responses/{id}/delete", threads.HandleDeleteResponse)

			r.Post("/stories", work.HandleCreateStory)
			r.Post("/documents", work.HandleUploadDocument)
		})
	})

	// === Accounts ===
	r.Route("/accounts", func(r chi.Router) {
		r.Use(limit)
		r.Post("/register", account.HandleRegister)
		r.Post("/verify", account.HandleVerify)
		r.Post("/verify/resend", account.HandleResend)
		r.Post("/login", account.HandleLogin)
		r.Post("/logout", account.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", account.HandleMe)
			r.Post("/profile", account.HandleProfile)
			r.Post("/email/confirm", account.HandleConfirmEmail)
		})
	})

	if github != nil {
		r.Get("/auth/github/login", account.HandleGitHubLogin)
		r.Get("/auth/github/callback", account.HandleGitHubCallback)
	} else {
		s.logger.Info("GitHub OAuth not configured, /auth/github routes disabled")
	}

	// === Admin ===
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Use(auth.RequireAdmin)

		r.Get("/dashboard", admin.HandleDashboard)
		r.Get("/videos", admin.HandleListVideos)
		r.Post("/videos", admin.HandleCreateVideo)
		r.Post("/videos/bulk", admin.HandleBulk)
		r.Get("/videos/{id}", admin.HandleVideoDetail)
		r.Post("/videos/{id}", admin.HandleUpdateVideo)
		r.Post("/videos/{id}/delete", admin.HandleDeleteVideo)
		r.Post("/comments/{id}/approval", threads.HandleCommentApproval)
		r.Post("/responses/{id}/approval", threads.HandleResponseApproval)
		r.Get("/searches", admin.HandleSearches)
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"success":false,"error":"Too many requests. Please slow down."}`))
}

// Start runs the scheduler and the HTTP server until SIGINT or SIGTERM,
// then shuts down in dependency order: HTTP first so no new work is
// scheduled, then the scheduler, the extractor and finally the database.
func (s *Server) Start() error {
	defer s.Close()

	if err := s.sched.Start(context.Background()); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("url", s.cfg.Server.BaseURL),
			slog.String("database", s.cfg.DB.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close stops the scheduler, then releases the extractor and database.
// Scheduled tasks stay in the database for the next start.
func (s *Server) Close() error {
	s.sched.Stop()

	var errs []error
	if c, ok := s.extractor.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing extractor: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}
