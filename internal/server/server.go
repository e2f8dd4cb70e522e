// Package server is the composition root: it builds the store, the token
// verifier and the services, mounts every route on a chi router and owns the
// HTTP server's lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/history-api/internal/auth"
	"github.com/sakif/history-api/internal/cache"
	"github.com/sakif/history-api/internal/config"
	"github.com/sakif/history-api/internal/handler"
	"github.com/sakif/history-api/internal/metrics"
	"github.com/sakif/history-api/internal/middleware"
	"github.com/sakif/history-api/internal/repository"
	"github.com/sakif/history-api/internal/repository/gormstore"
	sqliteRepo "github.com/sakif/history-api/internal/repository/sqlite"
	"github.com/sakif/history-api/internal/service"
)

// Server owns the router and every resource that must be closed on exit.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	router  http.Handler
	store   *repository.Lazy
	cache   *cache.Cache // nil without REDIS_URL
	metrics *metrics.Metrics
}

// New wires the application from cfg. The database is not contacted here;
// the lazy store connects on first use (Start calls Migrate first thing).
// Redis, when configured, is dialled immediately.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   repository.NewLazy(storeOpener(cfg)),
		metrics: metrics.New(),
	}

	firebase, err := auth.NewFirebaseVerifier(cfg.FirebaseProjectID, auth.NewHTTPKeySource(auth.GoogleCertsURL, nil))
	if err != nil {
		return nil, fmt.Errorf("creating token verifier: %w", err)
	}
	var verifier auth.Verifier = firebase

	var health handler.HealthChecker
	if cfg.RedisURL != "" {
		s.cache, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		verifier = auth.NewCachedVerifier(firebase, s.cache, cfg.TokenCacheTTL, logger)
		health = s.cache
	}

	s.router = NewRouter(Deps{
		Config:   cfg,
		Logger:   logger,
		Store:    s.store,
		Verifier: verifier,
		Cache:    health,
		Metrics:  s.metrics,
	})
	return s, nil
}

// storeOpener picks the backend named by DB_DRIVER.
func storeOpener(cfg *config.Config) repository.OpenFunc {
	switch cfg.DBDriver {
	case "postgres":
		return func(ctx context.Context) (repository.Store, error) {
			return gormstore.OpenPostgres(ctx, cfg.DatabaseURL)
		}
	default:
		return func(ctx context.Context) (repository.Store, error) {
			if cfg.DBPath != ":memory:" {
				dir := filepath.Dir(cfg.DBPath)
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
				}
			}
			return sqliteRepo.New(ctx, cfg.DBPath)
		}
	}
}

// Deps is everything NewRouter needs. Cache may be nil.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    repository.Store
	Verifier auth.Verifier
	Cache    handler.HealthChecker
	Metrics  *metrics.Metrics
}

// NewRouter mounts all routes:
//
//	GET    /health
//	GET    /metrics
//	GET    {prefix}/histories/total                         public
//	GET    {prefix}/users/{userId}                          auth
//	GET    {prefix}/users/{userId}/histories                auth
//	POST   {prefix}/users/{userId}/histories                auth
//	PUT    {prefix}/users/{userId}/histories/{historyId}    auth
//	DELETE {prefix}/users/{userId}/histories/{historyId}    auth
func NewRouter(d Deps) http.Handler {
	writeError := handler.ErrorWriter(d.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recoverer(d.Logger, writeError))
	r.Use(middleware.Metrics(d.Metrics))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	historyHandler := handler.NewHistoryHandler(service.NewHistoryService(d.Store, d.Logger), d.Logger, d.Config.MaxBodyBytes)
	userHandler := handler.NewUserHandler(service.NewUserService(d.Store, d.Logger), d.Logger)
	healthHandler := handler.NewHealthHandler(d.Store, d.Cache, d.Logger)

	requireAuth := auth.RequireAuth(auth.GateConfig{
		Verifier:    d.Verifier,
		Provisioner: d.Store,
		Admins:      auth.NewAdminList(d.Config.AdminEmails),
		Logger:      d.Logger,
		WriteError:  writeError,
		OnProvisionFailure: func(error) {
			d.Metrics.IncProvisionFailure()
		},
	})

	r.Get("/health", healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route(d.Config.APIPrefix, func(r chi.Router) {
		r.Get("/histories/total", historyHandler.HandleTotal)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/users/{userId}", userHandler.HandleGet)
			r.Get("/users/{userId}/histories", historyHandler.HandleList)
			r.Post("/users/{userId}/histories", historyHandler.HandleCreate)
			r.Put("/users/{userId}/histories/{historyId}", historyHandler.HandleUpdate)
			r.Delete("/users/{userId}/histories/{historyId}", historyHandler.HandleDelete)
		})
	})

	return r
}

// Start bootstraps the schema, serves until SIGINT/SIGTERM or a listener
// error, then drains in-flight requests and closes the store and Redis.
func (s *Server) Start(ctx context.Context) error {
	defer s.close()

	if err := s.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("api_prefix", s.cfg.APIPrefix),
			slog.String("db_driver", s.cfg.DBDriver),
			slog.Bool("token_cache", s.cache != nil),
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

func (s *Server) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("closing store", slog.String("error", err.Error()))
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("closing redis", slog.String("error", err.Error()))
		}
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
