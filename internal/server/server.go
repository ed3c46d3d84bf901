// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: it picks the storage and shared
// backends from configuration, builds services and handlers on top of them
// and decides which middleware guards which route.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.AppConfig → repository.Store (sqlite | memory)
//	                 → cache.Store + cache.Counter (memory | redis)
//	                 → services → handlers → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/wish-board/internal/auth"
	"github.com/sakif/wish-board/internal/cache"
	"github.com/sakif/wish-board/internal/config"
	"github.com/sakif/wish-board/internal/handler"
	"github.com/sakif/wish-board/internal/middleware"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/ratelimit"
	"github.com/sakif/wish-board/internal/repository"
	"github.com/sakif/wish-board/internal/repository/memory"
	sqliteRepo "github.com/sakif/wish-board/internal/repository/sqlite"
	"github.com/sakif/wish-board/internal/service"
)

// sharedBackend is a cache store that also provides the rate-limit
// counters. cache.Redis satisfies it directly.
type sharedBackend struct {
	store   cache.Store
	counter cache.Counter
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store, the shared backend connection and the counter
// sweeper. Close releases them in reverse order of creation.
type Server struct {
	router  *chi.Mux
	config  config.AppConfig
	logger  *slog.Logger
	store   repository.Store
	closers []io.Closer
}

// New builds every dependency named by cfg and wires the routes.
func New(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.closers = append(s.closers, store)

	shared, err := s.openShared(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	if err := s.setupRoutes(shared); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func openStore(cfg config.AppConfig) (repository.Store, error) {
	if cfg.DatabaseDriver == config.DriverMemory {
		return memory.New(), nil
	}

	if cfg.DatabasePath != ":memory:" {
		dir := filepath.Dir(cfg.DatabasePath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// openShared picks one backend for both the read cache and the counters.
func (s *Server) openShared(ctx context.Context) (sharedBackend, error) {
	cfg := s.config

	if cfg.SharedBackend == config.BackendRedis {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return sharedBackend{}, err
		}
		s.closers = append(s.closers, client)

		r := cache.NewRedis(client, cfg.FeedTTL)
		return sharedBackend{store: r, counter: r}, nil
	}

	counter := cache.NewMemoryCounter(cfg.RateLimitWindow)
	s.closers = append(s.closers, counter)
	return sharedBackend{
		store:   cache.NewMemory(cfg.CacheCapacity, cfg.FeedTTL),
		counter: counter,
	}, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                 → liveness + store ping
// GET    /auth/google/login       → redirect to Google
// GET    /auth/google/callback    → OAuth callback
// POST   /api/auth/signup         → create local account
// POST   /api/auth/login          → local sign-in
// POST   /api/auth/logout         → clear session
// GET    /api/me                  → current identity           [auth]
// GET    /api/public-wishes       → feed page                  [rate limited]
// POST   /api/public-wishes       → comment                    [rate limited, auth]
// PATCH  /api/public-wishes       → toggle like                [rate limited, auth]
// GET    /api/wishes              → own wishes                 [rate limited, auth]
// POST   /api/wishes              → create wish                [rate limited, auth]
// PATCH  /api/wishes              → set visibility             [rate limited, auth]
// GET    /api/profile             → own profile                [rate limited, auth]
// PATCH  /api/profile             → rename                     [rate limited, auth]
//
// MIDDLEWARE ORDER MATTERS:
// RealIP runs before the rate limiter so the limiter keys on the client
// address, and the limiter runs before RequireAuth so rejected requests
// never touch the store.
func (s *Server) setupRoutes(shared sharedBackend) error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.BcryptCost)
	google := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	identities := cache.NewMemo[model.Identity](cache.MemoConfig{TTL: cfg.IdentityTTL})

	accounts := service.NewAuthService(s.store, tokens, passwords, identities, shared.store, s.logger)
	wishes := service.NewWishService(s.store, shared.store, cfg.WishesTTL, s.logger)
	feed := service.NewFeedService(s.store, shared.store, cfg.FeedTTL, s.logger)

	authHandler := handler.NewAuthHandler(accounts, google, tokens.TTL(), cfg.CookieSecure, s.logger)
	wishHandler := handler.NewWishHandler(wishes)
	publicHandler := handler.NewPublicWishHandler(feed, wishes)

	limiter := ratelimit.New(shared.counter, ratelimit.Config{
		Limit:    cfg.RateLimit,
		Window:   cfg.RateLimitWindow,
		PerRoute: cfg.RateLimitPerRoute,
	}, s.logger)
	requireAuth := auth.RequireAuth(tokens, accounts, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Get("/auth/google/login", authHandler.HandleGoogleLogin)
	s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSOrigins))

		r.Post("/auth/signup", authHandler.HandleSignUp)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)

			r.Get("/public-wishes", publicHandler.HandleList)
			r.With(requireAuth).Post("/public-wishes", publicHandler.HandleComment)
			r.With(requireAuth).Patch("/public-wishes", publicHandler.HandleToggleLike)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/wishes", wishHandler.HandleList)
				r.Post("/wishes", wishHandler.HandleCreate)
				r.Patch("/wishes", wishHandler.HandleSetVisibility)

				r.Get("/profile", authHandler.HandleGetProfile)
				r.Patch("/profile", authHandler.HandleUpdateProfile)
			})
		})
	})

	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases everything New opened.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start serves until ctx is cancelled, then shuts down gracefully: stop
// accepting connections, wait up to 30s for in-flight requests, then close
// the store and shared backend.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

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
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DatabaseDriver),
			slog.String("shared", s.config.SharedBackend),
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
