// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects storage, services,
// handlers, middleware and routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	Config → New():
//	  sqlite.DB ─┬─→ UserService, FollowService, AuthService ─→ UserHandler, AuthHandler
//	             ├─→ RecipeService, RelationService, ShoppingService ─→ RecipeHandler
//	             ├─→ ShortLinkService ─→ ShortLinkHandler
//	             └─→ ReferenceService ─→ ReferenceHandler
//	  storage.Store (local dir or S3) ─→ UserService, RecipeService
//	  redis.Client (optional) ─→ RateLimiter
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/handler"
	"github.com/sakif/foodgram/internal/middleware"
	"github.com/sakif/foodgram/internal/model"
	sqliteRepo "github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
	"github.com/sakif/foodgram/internal/storage"
)

// Config holds server configuration. internal/config fills it from the
// environment; tests build it directly.
type Config struct {
	Port    int
	BaseURL string
	DBPath  string

	JWTSecret string
	TokenTTL  time.Duration

	MediaDir     string
	MediaURL     string
	S3BucketName string // non-empty switches image storage to S3
	AWSRegion    string
	S3PublicURL  string

	RedisURL   string // empty disables rate limiting
	RateLimit  int
	RateWindow time.Duration

	GitHubClientID     string // GitHub login is enabled only when both are set
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the Redis client. Start closes
// both during graceful shutdown; callers that never Start (tests) call Close.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *redis.Client // nil when rate limiting is off
	tokens *auth.TokenService
	images storage.Store
}

// New creates a Server with every dependency wired.
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - Handlers get services (not the repository or DB)
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
	}

	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		redis:  rdb,
		tokens: tokens,
		images: images,
	}
	s.setupRoutes()
	return s, nil
}

// newImageStore picks S3 when a bucket is configured, else a local directory.
func newImageStore(ctx context.Context, cfg Config) (storage.Store, error) {
	if cfg.S3BucketName != "" {
		store, err := storage.NewS3(ctx, cfg.S3BucketName, cfg.AWSRegion, cfg.S3PublicURL)
		if err != nil {
			return nil, fmt.Errorf("creating S3 image store: %w", err)
		}
		return store, nil
	}
	store, err := storage.NewLocal(cfg.MediaDir, cfg.MediaURL)
	if err != nil {
		return nil, fmt.Errorf("creating local image store: %w", err)
	}
	return store, nil
}

// Handler exposes the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. (API only) RateLimiter: per-client request budget, needs RealIP first
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Services ===
	passwords := auth.NewPasswordService()
	users := service.NewUserService(s.db, s.db, passwords, s.images, s.logger)
	follows := service.NewFollowService(s.db, s.db, s.db, s.logger)
	authSvc := service.NewAuthService(s.db, s.tokens, passwords, s.logger)
	recipes := service.NewRecipeService(s.db, s.db, s.db, s.images, s.logger)
	relations := service.NewRelationService(s.db, s.db, s.logger)
	shoppingList := service.NewShoppingService(s.db, s.logger)
	links := service.NewShortLinkService(s.db, s.config.BaseURL, s.logger)
	refs := service.NewReferenceService(s.db, s.db, s.logger)

	// === Handlers ===
	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}
	authH := handler.NewAuthHandler(authSvc, github, s.tokens.TTL(), s.logger)
	userH := handler.NewUserHandler(users, follows, s.logger)
	recipeH := handler.NewRecipeHandler(recipes, relations, shoppingList, links, s.logger)
	refH := handler.NewReferenceHandler(refs)
	linkH := handler.NewShortLinkHandler(links, s.logger)

	// === Media ===
	// Only the local store needs serving; S3 URLs point at the bucket.
	if local, ok := s.images.(*storage.Local); ok && strings.HasPrefix(s.config.MediaURL, "/") {
		prefix := strings.TrimSuffix(s.config.MediaURL, "/")
		fileServer := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(local.Dir())))
		s.router.Handle(prefix+"/*", fileServer)
	}

	// === Short links ===
	s.router.Get("/s/{code}", linkH.HandleRedirect)
	s.router.Get("/s/{code}/", linkH.HandleRedirect)

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		if s.redis != nil {
			limiter := middleware.NewRateLimiter(s.redis, middleware.RateLimitConfig{
				Limit:     s.config.RateLimit,
				Window:    s.config.RateWindow,
				KeyPrefix: "foodgram:ratelimit",
			}, middleware.ClientKey(s.tokens), s.logger)
			r.Use(limiter.Middleware)
		}

		r.Post("/auth/token/login/", authH.HandleTokenLogin)
		if github != nil {
			r.Get("/auth/github/login", authH.HandleGitHubLogin)
			r.Get("/auth/github/callback", authH.HandleGitHubCallback)
		}

		r.Get("/tags/", refH.HandleListTags)
		r.Get("/tags/{id}/", refH.HandleGetTag)
		r.Get("/ingredients/", refH.HandleListIngredients)
		r.Get("/ingredients/{id}/", refH.HandleGetIngredient)

		// Public reads: anonymous callers allowed, a token fills in the
		// per-viewer flags (is_subscribed, is_favorited, is_in_shopping_cart).
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(s.tokens))
			r.Get("/users/", userH.HandleList)
			r.Post("/users/", userH.HandleRegister)
			r.Get("/users/{id}/", userH.HandleGet)
			r.Get("/recipes/", recipeH.HandleList)
			r.Get("/recipes/{id}/", recipeH.HandleGet)
			r.Get("/recipes/{id}/get-link/", recipeH.HandleGetLink)
		})

		// Everything else needs a valid token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))
			r.Post("/auth/token/logout/", authH.HandleTokenLogout)

			r.Get("/users/me/", userH.HandleMe)
			r.Post("/users/set_password/", userH.HandleSetPassword)
			r.Put("/users/me/avatar/", userH.HandleSetAvatar)
			r.Delete("/users/me/avatar/", userH.HandleDeleteAvatar)
			r.Get("/users/subscriptions/", userH.HandleSubscriptions)
			r.Post("/users/{id}/subscribe/", userH.HandleSubscribe)
			r.Delete("/users/{id}/subscribe/", userH.HandleUnsubscribe)

			r.Post("/recipes/", recipeH.HandleCreate)
			r.Patch("/recipes/{id}/", recipeH.HandleUpdate)
			r.Delete("/recipes/{id}/", recipeH.HandleDelete)
			r.Get("/recipes/download_shopping_cart/", recipeH.HandleDownloadShoppingCart)
			r.Post("/recipes/{id}/favorite/", recipeH.HandleAddRelation(model.Favorite))
			r.Delete("/recipes/{id}/favorite/", recipeH.HandleRemoveRelation(model.Favorite))
			r.Post("/recipes/{id}/shopping_cart/", recipeH.HandleAddRelation(model.ShoppingCart))
			r.Delete("/recipes/{id}/shopping_cart/", recipeH.HandleRemoveRelation(model.ShoppingCart))
		})
	})
}

// Close releases the database and Redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database and Redis connections
func (s *Server) Start() error {
	defer s.Close()

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			// The limiter fails open, so an unreachable Redis is not fatal.
			s.logger.Warn("redis unreachable, rate limiting will fail open", slog.String("error", err.Error()))
		}
		cancel()
	}

	// Write timeout is generous: recipe bodies carry base64 images.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("baseURL", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
			slog.Bool("s3", s.config.S3BucketName != ""),
			slog.Bool("rateLimit", s.redis != nil),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
