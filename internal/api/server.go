// Package api serves the courtroom HTTP interface: session lifecycle, turns,
// evidence and health, with per-client rate limiting, CORS and optional JWT
// authentication.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/analytics"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/llm/inference"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/orchestration"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/security"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// Options holds the HTTP-facing settings of a profile.
type Options struct {
	Profile        string
	Version        string
	Model          string
	AllowedOrigins []string
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit     float64
	RateBurst     int
	MaxInputChars int
	TitleRequired bool
	RequireAuth   bool
	Debug         bool
}

// Server routes HTTP requests to the session manager and the orchestrator.
type Server struct {
	opts     Options
	sessions *session.Manager
	orch     *orchestration.Orchestrator
	backend  inference.InferenceService
	auth     security.Authenticator
	events   analytics.Emitter
	health   *observability.HealthChecker
	limiter  *security.ClientLimiter
	now      func() time.Time
	logger   *slog.Logger
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthenticator sets how bearer tokens are verified when auth is required.
func WithAuthenticator(a security.Authenticator) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithEmitter sets where session and evidence analytics go.
func WithEmitter(e analytics.Emitter) Option {
	return func(s *Server) {
		if e != nil {
			s.events = e
		}
	}
}

// WithHealthChecker adds registered checks to /health and /health/ready.
func WithHealthChecker(hc *observability.HealthChecker) Option {
	return func(s *Server) { s.health = hc }
}

// WithClock sets the time source for evidence timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Server. backend may be nil, in which case health reports it
// unavailable.
func New(opts Options, sessions *session.Manager, orch *orchestration.Orchestrator, backend inference.InferenceService, options ...Option) *Server {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = session.MaxEntryText
	}
	s := &Server{
		opts:     opts,
		sessions: sessions,
		orch:     orch,
		backend:  backend,
		auth:     security.NewNoAuthAuthenticator(),
		events:   analytics.Discard{},
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")
	if s.health == nil {
		s.health = observability.NewHealthChecker(opts.Version)
	}
	if opts.RateLimit > 0 {
		s.limiter = security.NewClientLimiter(opts.RateLimit, opts.RateBurst)
	}
	s.engine = s.router()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Turns wait on two model calls.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		errCh <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api listening", "addr", addr, "profile", s.opts.Profile, "auth", s.opts.RequireAuth)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return <-errCh
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	_ = router.SetTrustedProxies(nil)
	router.Use(
		gin.CustomRecovery(s.recover),
		s.observe(),
		s.cors(),
		s.rateLimit(),
	)

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.GET("/health/live", gin.WrapF(observability.LivenessHandler()))
	router.GET("/health/ready", gin.WrapF(s.health.ReadinessHandler()))
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	authed := router.Group("/", s.authenticate())
	authed.GET("/sessions", s.handleListSessions)
	authed.POST("/sessions", s.handleCreateSession(http.StatusCreated))
	authed.GET("/sessions/:id", s.handleGetSession)
	authed.DELETE("/sessions/:id", s.handleDeleteSession)
	authed.POST("/sessions/:id/turns", s.handleTurn)
	authed.POST("/sessions/:id/evidence", s.handleEvidence)

	// Routes kept for older clients.
	authed.POST("/start_session", s.handleCreateSession(http.StatusOK))
	authed.POST("/sessions/start", s.handleCreateSession(http.StatusOK))
	authed.POST("/simulate_step", s.handleTurn)
	authed.GET("/session/:id", s.handleGetSession)
	authed.DELETE("/session/:id", s.handleDeleteSession)

	router.NoRoute(func(c *gin.Context) {
		s.fail(c, security.NewSecureError(security.ErrCodeNotFound, "Route not found"))
	})
	return router
}
