package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/analytics"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/api"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/fallback"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/generator"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/llm/inference"
	tracing "github.com/Srinidhi-070/ai-courtroom-simulator/internal/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/orchestration"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/relevance"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/config"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/security"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// offlineLine answers every prompt when the mock backend is selected.
const offlineLine = "The court has noted the submission and will consider it."

func newServeCmd() *cobra.Command {
	var (
		configPath string
		profile    string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the courtroom API server",
		Long: `Starts the HTTP API. The profile (basic, simple or advanced) sets the
defaults; a YAML config file and environment variables override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, profile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := newLogger(cfg.Log, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a courtroom YAML config file")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "profile: basic, simple or advanced (default $COURTROOM_PROFILE or basic)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding server.addr")
	return cmd
}

// components is everything runServe builds, so tests can inspect the wiring
// without listening.
type components struct {
	backend  inference.InferenceService
	store    session.StorageBackend
	sessions *session.Manager
	janitor  *session.Janitor
	events   *analytics.Async
	health   *observability.HealthChecker
	server   *api.Server
	closers  []func(context.Context) error
}

// close releases resources in reverse order of acquisition.
func (c *components) close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	c, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.close(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	errCh := make(chan error, 2)
	if cfg.Server.ObservabilityAddr != "" {
		obs := observability.NewServer(cfg.Server.ObservabilityAddr, c.health)
		go func() {
			logger.Info("observability listening", "addr", cfg.Server.ObservabilityAddr)
			if err := obs.Start(); err != nil {
				errCh <- fmt.Errorf("observability server: %w", err)
			}
		}()
		c.closers = append(c.closers, obs.Shutdown)
	}

	c.janitor.Start()
	logger.Info("courtroom starting", startupAttrs(cfg)...)

	go func() { errCh <- c.server.Run(ctx, cfg.Server.Addr) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		// Run returns once in-flight requests drain.
		return <-errCh
	}
}

// startupAttrs describes the running configuration. Secrets are masked.
func startupAttrs(cfg config.Config) []any {
	return []any{
		"version", Version,
		"profile", cfg.Profile,
		"model_backend", cfg.Model.Backend,
		"model", cfg.Model.Name,
		"session_backend", cfg.Session.Backend,
		"workers", cfg.Turn.Workers,
		"auth", cfg.Server.RequireAuth,
		"jwt_secret", security.MaskSecret(cfg.Server.JWTSecret),
		"openai_key", security.MaskSecret(cfg.Model.OpenAIKey),
	}
}

// build wires the server from cfg.
func build(cfg config.Config, logger *slog.Logger) (*components, error) {
	c := &components{}
	fail := func(err error) (*components, error) {
		_ = c.close(context.Background())
		return nil, err
	}

	observability.InitMetrics()
	shutdownTracing, err := tracing.Init(cfg.Tracing, logger)
	if err != nil {
		return fail(err)
	}
	c.closers = append(c.closers, shutdownTracing)

	if c.backend, err = buildBackend(cfg.Model, logger); err != nil {
		return fail(err)
	}

	var db *gorm.DB
	if cfg.Session.Backend == session.BackendSQLite || cfg.Analytics.Sink == config.AnalyticsSQLite {
		if db, err = session.OpenSQLite(cfg.Session.SQLitePath); err != nil {
			return fail(err)
		}
		c.closers = append(c.closers, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}

	if c.store, err = session.OpenBackend(cfg.Session, db); err != nil {
		return fail(err)
	}
	opening, _ := session.ParseOpening(cfg.Turn.Opening)
	c.sessions = session.NewManager(c.store, session.WithLogger(logger), session.WithOpening(opening))
	c.closers = append(c.closers, func(context.Context) error { return c.sessions.Close() })

	if c.janitor, err = session.NewJanitor(c.sessions, cfg.Session.SweepSchedule, cfg.Session.CacheIdle, logger); err != nil {
		return fail(err)
	}
	c.closers = append(c.closers, func(ctx context.Context) error {
		c.janitor.Stop(ctx)
		return nil
	})

	sink, err := buildSink(cfg.Analytics, db, logger)
	if err != nil {
		return fail(err)
	}
	asyncCfg := analytics.DefaultAsyncConfig()
	if cfg.Analytics.QueueSize > 0 {
		asyncCfg.QueueSize = cfg.Analytics.QueueSize
	}
	c.events = analytics.NewAsync(sink, asyncCfg, logger)
	c.closers = append(c.closers, func(context.Context) error { return c.events.Close() })

	gen := generator.New(c.backend, cfg.GeneratorConfig(),
		generator.WithLogger(logger),
		generator.WithFilter(buildFilter(cfg.Relevance)),
		generator.WithBank(fallback.New()),
	)
	orch := orchestration.New(gen, orchestration.NewPool(cfg.Turn.Workers),
		orchestration.WithLogger(logger),
		orchestration.WithEmitter(c.events),
		orchestration.WithTimeout(cfg.Turn.Timeout),
	)

	c.health = observability.NewHealthChecker(Version)
	c.health.RegisterCheck(observability.StoreCheck(c.store.Ping))
	backend := c.backend
	c.health.RegisterCheck(observability.BackendCheck("model_backend", func(context.Context) error {
		if !backend.Available() {
			return errors.New("model backend unavailable, serving fallback responses")
		}
		return nil
	}))

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithEmitter(c.events),
		api.WithHealthChecker(c.health),
	}
	if cfg.Server.RequireAuth {
		auth, err := security.NewJWTAuthenticator(cfg.Server.JWTSecret, security.WithTokenTTL(cfg.Server.TokenTTL))
		if err != nil {
			return fail(err)
		}
		opts = append(opts, api.WithAuthenticator(auth))
	}

	c.server = api.New(api.Options{
		Profile:        cfg.Profile,
		Version:        Version,
		Model:          cfg.Model.Name,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		MaxInputChars:  cfg.Server.MaxInputChars,
		TitleRequired:  cfg.Server.TitleRequired,
		RequireAuth:    cfg.Server.RequireAuth,
		Debug:          cfg.Server.Debug,
	}, c.sessions, orch, c.backend, opts...)
	return c, nil
}

// buildBackend constructs the model backend. Network backends sit behind a
// circuit breaker so a dead server fails fast into fallback text.
func buildBackend(cfg config.ModelConfig, logger *slog.Logger) (inference.InferenceService, error) {
	guard := func(next inference.InferenceService) inference.InferenceService {
		return inference.NewGuardedService(next, security.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset))
	}
	ollama := func() (inference.InferenceService, error) {
		svc, err := inference.NewOllamaService(cfg.OllamaURL,
			inference.WithEndpointGuard(security.NewModelEndpointGuard(cfg.AllowedHosts...)))
		if err != nil {
			return nil, fmt.Errorf("ollama backend: %w", err)
		}
		return guard(svc), nil
	}
	openai := func() (inference.InferenceService, error) {
		svc, err := inference.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("openai backend: %w", err)
		}
		return guard(svc), nil
	}

	switch cfg.Backend {
	case config.BackendOllama:
		return ollama()
	case config.BackendOpenAI:
		return openai()
	case config.BackendHybrid:
		local, err := ollama()
		if err != nil {
			return nil, err
		}
		cloud, err := openai()
		if err != nil {
			return nil, err
		}
		return inference.NewHybridInference(local, cloud, logger), nil
	case config.BackendMock:
		return inference.NewMockInferenceService(offlineLine), nil
	}
	return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
}

func buildSink(cfg config.AnalyticsConfig, db *gorm.DB, logger *slog.Logger) (analytics.Sink, error) {
	switch cfg.Sink {
	case config.AnalyticsSQLite:
		return analytics.NewGormSink(db)
	case config.AnalyticsNone:
		return analytics.Discard{}, nil
	}
	return analytics.NewLogSink(logger), nil
}

func buildFilter(cfg config.RelevanceConfig) *relevance.Filter {
	opts := []relevance.Option{relevance.WithThreshold(cfg.Threshold)}
	if cfg.ExtendedLists {
		opts = append(opts, relevance.WithExtendedLists())
	}
	if len(cfg.DenyWords) > 0 {
		opts = append(opts, relevance.WithDenyWords(cfg.DenyWords...))
	}
	if len(cfg.AllowWords) > 0 {
		opts = append(opts, relevance.WithAllowWords(cfg.AllowWords...))
	}
	return relevance.New(opts...)
}
