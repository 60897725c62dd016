// Package server is the composition root: it builds every adapter from the
// configuration, wires services and handlers, mounts the routes and runs the
// HTTP server until SIGINT or SIGTERM.
//
// DEPENDENCY FLOW:
//
//	config → store (mongo | memory) ─┐
//	       → media (cloudinary | s3) ├→ services → handlers → chi router
//	       → events (kafka | noop)  ─┤
//	       → identity verifier      ─┘
//
// Handlers never touch a repository and services never touch HTTP.
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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/social-backend/internal/auth"
	"github.com/sakif/social-backend/internal/config"
	"github.com/sakif/social-backend/internal/events"
	"github.com/sakif/social-backend/internal/handler"
	"github.com/sakif/social-backend/internal/media"
	"github.com/sakif/social-backend/internal/metrics"
	"github.com/sakif/social-backend/internal/middleware"
	"github.com/sakif/social-backend/internal/repository"
	"github.com/sakif/social-backend/internal/repository/memory"
	mongoRepo "github.com/sakif/social-backend/internal/repository/mongo"
	"github.com/sakif/social-backend/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and every resource that has to be released on
// shutdown.
type Server struct {
	router    http.Handler
	config    *config.Config
	logger    *slog.Logger
	store     repository.Store
	publisher events.Publisher
	redis     *redis.Client // nil when rate limiting is off
}

// New connects the store and builds all adapters. Only a failure to reach
// the database or an unusable identity key is fatal; media, events and rate
// limiting degrade to disabled with a warning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	s := &Server{
		config:    cfg,
		logger:    logger,
		store:     store,
		publisher: openPublisher(cfg, m, logger),
	}

	verifier, err := auth.NewVerifier(cfg.Identity.JWTKey, cfg.Identity.JWTSecret, cfg.Identity.Issuer)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("server: identity verifier: %w", err)
	}

	var limiter middleware.Counter
	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limiting will fail open",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		}
		limiter = middleware.NewRedisCounter(s.redis)
	}

	if cfg.Identity.SecretKey == "" {
		logger.Warn("IDENTITY_SECRET_KEY not set, user sync will fail")
	}
	provider := auth.NewProviderClient(ctx, cfg.Identity.APIURL, cfg.Identity.SecretKey)

	s.router = s.routes(deps{
		verifier: verifier,
		provider: provider,
		uploader: openUploader(ctx, cfg.Media, logger),
		limiter:  limiter,
		registry: registry,
		metrics:  m,
	})
	return s, nil
}

// deps are the adapters routes needs beyond what Server keeps for shutdown.
type deps struct {
	verifier auth.TokenVerifier
	provider service.ProfileFetcher
	uploader media.Uploader
	limiter  middleware.Counter
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// routes wires services and handlers and mounts them.
//
// ROUTE STRUCTURE:
// GET    /                                      → banner
// GET    /healthz                               → store ping
// GET    /metrics                               → Prometheus
// GET    /api/posts                             → feed
// GET    /api/posts/user/{username}             → user's posts
// GET    /api/posts/{postId}                    → one post
// POST   /api/posts                         (a) → create post
// POST   /api/posts/{postId}/like           (a) → toggle like
// DELETE /api/posts/{postId}                (a) → delete post
// GET    /api/users/profile/{username}          → public profile
// POST   /api/users/sync                    (a) → first-login sync
// GET    /api/users/me                      (a) → own record (POST too)
// PUT    /api/users/profile                 (a) → edit profile
// POST   /api/users/follow/{targetUserId}   (a) → toggle follow
// GET    /api/comments/post/{postId}            → comments on a post
// POST   /api/comments/post/{postId}        (a) → add comment
// DELETE /api/comments/{commentId}          (a) → delete comment
// GET    /api/notifications                 (a) → own notifications
// DELETE /api/notifications/{notificationId} (a) → delete notification
//
// (a) requires a session token.
func (s *Server) routes(d deps) http.Handler {
	m := d.metrics

	notifier := service.NewNotifier(s.store.Notifications(), s.publisher, m, s.logger)
	postService := service.NewPostService(s.store, d.uploader, notifier, m, s.logger)
	commentService := service.NewCommentService(s.store, notifier, m, s.logger)
	userService := service.NewUserService(s.store, d.provider, notifier, m, s.logger)
	notificationService := service.NewNotificationService(s.store, s.logger)

	posts := handler.NewPostHandler(postService, s.logger)
	comments := handler.NewCommentHandler(commentService, s.logger)
	users := handler.NewUserHandler(userService, s.logger)
	notifications := handler.NewNotificationHandler(notificationService, s.logger)
	health := handler.NewHealthHandler(s.store, s.logger)

	r := chi.NewRouter()

	// === Global Middleware ===
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !allowsAnyOrigin(s.config.CORSOrigins),
		MaxAge:           300,
	}))
	r.Use(middleware.Metrics(m))

	r.Get("/", health.HandleRoot)
	r.Get("/healthz", health.HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	requireAuth := auth.RequireAuth(d.verifier)

	r.Route("/api", func(r chi.Router) {
		if d.limiter != nil {
			r.Use(auth.OptionalAuth(d.verifier))
			r.Use(middleware.RateLimit(d.limiter, int64(s.config.RateLimitRequests), s.config.RateLimitWindow, s.logger))
		}

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", posts.HandleList)
			r.Get("/user/{username}", posts.HandleListByUser)
			r.Get("/{postId}", posts.HandleGet)

			r.With(requireAuth).Post("/", posts.HandleCreate)
			r.With(requireAuth).Post("/{postId}/like", posts.HandleToggleLike)
			r.With(requireAuth).Delete("/{postId}", posts.HandleDelete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/profile/{username}", users.HandleProfile)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/sync", users.HandleSync)
				r.Get("/me", users.HandleMe)
				r.Post("/me", users.HandleMe)
				r.Put("/profile", users.HandleUpdateProfile)
				r.Post("/follow/{targetUserId}", users.HandleToggleFollow)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/post/{postId}", comments.HandleList)

			r.With(requireAuth).Post("/post/{postId}", comments.HandleCreate)
			r.With(requireAuth).Delete("/{commentId}", comments.HandleDelete)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", notifications.HandleList)
			r.Delete("/{notificationId}", notifications.HandleDelete)
		})
	})

	return otelhttp.NewHandler(r, "http.server")
}

// Handler exposes the fully wired router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until it fails or a shutdown signal
// arrives. In-flight requests get 30 seconds to finish; then the event
// publisher, Redis and the store are closed, in that order.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // image uploads
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("store", s.config.Store),
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

// close releases every resource, logging rather than returning failures.
func (s *Server) close() {
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("closing event publisher", slog.String("error", err.Error()))
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("closing redis", slog.String("error", err.Error()))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Close(ctx); err != nil {
		s.logger.Error("closing store", slog.String("error", err.Error()))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}

	db, err := mongoRepo.New(ctx, cfg.MongoURI, cfg.MongoDB, logger)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("server: ensuring indexes: %w", err)
	}
	return db, nil
}

func openPublisher(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) events.Publisher {
	if cfg.KafkaBrokers == "" {
		return events.Noop{}
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, func(dropped int, err error) {
		for range dropped {
			m.EventPublishFailed()
		}
		logger.Warn("notification events dropped",
			slog.Int("count", dropped),
			slog.String("error", err.Error()),
		)
	})
	if err != nil {
		logger.Warn("kafka disabled", slog.String("error", err.Error()))
		return events.Noop{}
	}
	return p
}

// openUploader returns nil when the media driver is not configured; image
// posts are then rejected while text posts keep working.
func openUploader(ctx context.Context, cfg config.MediaConfig, logger *slog.Logger) media.Uploader {
	if !cfg.Configured() {
		logger.Warn("media uploads disabled, credentials missing", slog.String("driver", cfg.Driver))
		return nil
	}

	switch cfg.Driver {
	case config.MediaS3:
		u, err := media.NewS3Uploader(media.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			logger.Warn("media uploads disabled", slog.String("error", err.Error()))
			return nil
		}
		if err := u.EnsureBucket(ctx); err != nil {
			logger.Warn("could not ensure media bucket", slog.String("error", err.Error()))
		}
		return u
	default:
		u, err := media.NewCloudinaryUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Warn("media uploads disabled", slog.String("error", err.Error()))
			return nil
		}
		return u
	}
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
