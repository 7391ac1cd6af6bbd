// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/suanfamama/atelier/internal/api"
	"github.com/suanfamama/atelier/internal/backend"
	pgbackend "github.com/suanfamama/atelier/internal/backend/postgres"
	"github.com/suanfamama/atelier/internal/backend/supabase"
	"github.com/suanfamama/atelier/internal/cache"
	"github.com/suanfamama/atelier/internal/config"
	"github.com/suanfamama/atelier/internal/facade"
	"github.com/suanfamama/atelier/internal/mail"
	"github.com/suanfamama/atelier/internal/pkg/ctxlog"
	"github.com/suanfamama/atelier/internal/pkg/httputil"
	"github.com/suanfamama/atelier/internal/pkg/metrics"
	"github.com/suanfamama/atelier/internal/pkg/postgres"
	"github.com/suanfamama/atelier/internal/session"
	"github.com/suanfamama/atelier/internal/version"
	"github.com/suanfamama/atelier/internal/web"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redis.Client
	backend       backend.Client
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		metricsCancel: metricsCancel,
	}

	if err := app.setupBackend(); err != nil {
		app.close()
		return nil, fmt.Errorf("setup backend: %w", err)
	}

	contentCache, err := app.setupCache()
	if err != nil {
		app.close()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	if app.db != nil {
		go app.collectDBMetrics(metricsCtx)
	}

	service := facade.NewService(app.backend, contentCache, facade.Config{
		Fallback:  cfg.Content.Fallback,
		NewsLimit: cfg.Content.NewsLimit,
		CacheTTL:  cfg.Cache.TTL,
		ResetURL:  cfg.ResetURL(),
	})

	router, err := app.setupRouter(service)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func (a *App) setupBackend() error {
	switch a.config.Backend.Kind {
	case config.BackendPostgres:
		return a.setupPostgres()
	default:
		client, err := supabase.NewClient(supabase.Config{
			URL:       a.config.Supabase.URL,
			AnonKey:   a.config.Supabase.AnonKey,
			Timeout:   a.config.Supabase.Timeout,
			RateLimit: a.config.Supabase.RateLimit,
			Burst:     a.config.Supabase.Burst,
		})
		if err != nil {
			return err
		}
		a.backend = client
		return nil
	}
}

func (a *App) setupPostgres() error {
	cfg := a.config

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.db = db

	if cfg.Database.AutoMigrate {
		if err := pgbackend.MigrateUp(cfg.Database.URL); err != nil {
			return err
		}
	}

	tokens, err := pgbackend.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if err != nil {
		return err
	}

	sender, err := mail.NewSender(mail.Config{
		Enabled:      cfg.Mail.Enabled,
		SMTPHost:     cfg.Mail.SMTPHost,
		SMTPPort:     cfg.Mail.SMTPPort,
		SMTPUser:     cfg.Mail.SMTPUser,
		SMTPPassword: cfg.Mail.SMTPPassword,
		FromAddress:  cfg.Mail.FromAddress,
	})
	if err != nil {
		return fmt.Errorf("create mail sender: %w", err)
	}
	if !cfg.Mail.Enabled {
		slog.Warn("mail sender is disabled: password reset links will not be delivered")
	}

	mailer, err := mail.NewResetMailer(sender, cfg.Auth.ResetTokenDuration)
	if err != nil {
		return fmt.Errorf("create reset mailer: %w", err)
	}

	a.backend = pgbackend.NewClient(db, tokens, mailer, pgbackend.AuthConfig{
		ResetTokenDuration: cfg.Auth.ResetTokenDuration,
	})
	return nil
}

func (a *App) setupCache() (cache.Cache, error) {
	if a.config.Cache.Kind != config.CacheRedis {
		return cache.NewMemory(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     a.config.Cache.RedisAddr,
		Password: a.config.Cache.RedisPassword,
		DB:       a.config.Cache.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	a.redis = client
	return cache.NewRedis(client), nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"backend", a.config.Backend.Kind,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// close releases connections. Safe on a partly built App.
func (a *App) close() error {
	a.metricsCancel()

	var err error
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			err = fmt.Errorf("close redis: %w", cerr)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	return err
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(service *facade.Service) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	webHandler, err := web.NewHandler(service, session.CookieConfig{
		Secure:      a.config.Session.CookieSecure,
		Domain:      a.config.Session.CookieDomain,
		RememberFor: a.config.Session.RememberDuration,
	})
	if err != nil {
		return nil, err
	}
	webHandler.RegisterRoutes(r)

	api.NewHandler(service).RegisterRoutes(r)

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if p, ok := a.backend.(backend.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "component", "backend", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Backend unavailable")
			return
		}
	}

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "component", "cache", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Cache unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
