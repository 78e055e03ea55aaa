package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recipebox/recipebox/internal/handler"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/middleware"
	"github.com/recipebox/recipebox/internal/service"
)

// multipartOverhead is the allowance for multipart headers and boundaries on
// top of the image size limit.
const multipartOverhead = 64 << 10

// RouterConfig holds everything the router wires into handlers and middleware.
type RouterConfig struct {
	Logger *slog.Logger

	Users       *service.UserService
	Tokens      middleware.TokenResolver
	Tags        *service.AttributeService
	Ingredients *service.AttributeService
	Recipes     *service.RecipeService

	Metrics     metrics.Recorder
	Snapshotter metrics.Snapshotter

	// DB and Cache back the readiness probe. Either may be nil.
	DB    handler.HealthChecker
	Cache handler.HealthChecker

	// Media serves stored images under MediaPath. Nil when images live
	// outside the process (S3).
	Media     http.Handler
	MediaPath string

	RateLimit       middleware.RateLimitConfig
	AuthMinDuration time.Duration

	IsDevelopment      bool
	CORSAllowedOrigins []string
	MaxRequestBodySize int64
	MaxImageSize       int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.RateLimit.Logger == nil {
		cfg.RateLimit.Logger = logger
	}

	h := handler.New()
	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Cache, logger)
	metricsHandler := handler.NewMetricsHandler(cfg.Snapshotter)
	userHandler := handler.NewUserHandler(cfg.Users, logger)
	tagHandler := handler.NewAttributeHandler(cfg.Tags, logger)
	ingredientHandler := handler.NewAttributeHandler(cfg.Ingredients, logger)
	recipeHandler := handler.NewRecipeHandler(cfg.Recipes, cfg.MaxImageSize, logger)
	adminHandler := handler.NewAdminHandler(cfg.Users, logger)

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment
	if cfg.MaxRequestBodySize > 0 {
		securityCfg.MaxRequestBodySize = cfg.MaxRequestBodySize
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	authenticate := middleware.Auth(middleware.AuthConfig{
		Logger:      logger,
		Resolver:    cfg.Tokens,
		Metrics:     cfg.Metrics,
		MinDuration: cfg.AuthMinDuration,
	})
	limitUser := middleware.RateLimitUser(cfg.RateLimit)
	limitIP := middleware.RateLimitIP(cfg.RateLimit)
	limitJSON := middleware.MaxBodySize(securityCfg.MaxRequestBodySize)
	limitUpload := middleware.MaxBodySize(cfg.MaxImageSize + multipartOverhead)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(securityCfg))
	r.Use(middleware.CORS(corsCfg))
	r.Use(chimiddleware.StripSlashes)

	// Probes and metrics (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	if cfg.Media != nil && cfg.MediaPath != "" {
		prefix := "/" + strings.Trim(cfg.MediaPath, "/") + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, cfg.Media))
	}

	r.Route("/api/user", func(r chi.Router) {
		// Credential endpoints are throttled per client IP.
		r.Group(func(r chi.Router) {
			r.Use(limitIP, limitJSON)
			r.Post("/create", userHandler.Create)
			r.Post("/token", userHandler.Token)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate, limitUser, limitJSON)
			r.Get("/me", userHandler.Me)
			r.Put("/me", userHandler.UpdateMe)
			r.Patch("/me", userHandler.UpdateMe)
			// Authenticated callers get 405; anonymous ones get 401 first.
			r.Post("/me", h.MethodNotAllowed)
		})
	})

	r.Route("/api/recipe", func(r chi.Router) {
		r.Use(authenticate, limitUser)

		r.With(limitJSON).Get("/tags", tagHandler.List)
		r.With(limitJSON).Post("/tags", tagHandler.Create)
		r.With(limitJSON).Get("/ingredients", ingredientHandler.List)
		r.With(limitJSON).Post("/ingredients", ingredientHandler.Create)

		r.Route("/recipes", func(r chi.Router) {
			r.With(limitJSON).Get("/", recipeHandler.List)
			r.With(limitJSON).Post("/", recipeHandler.Create)
			r.With(limitJSON).Get("/{id}", recipeHandler.Get)
			r.With(limitJSON).Put("/{id}", recipeHandler.Update)
			r.With(limitJSON).Patch("/{id}", recipeHandler.Update)
			r.With(limitJSON).Delete("/{id}", recipeHandler.Delete)
			r.With(limitUpload).Post("/{id}/upload-image", recipeHandler.UploadImage)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authenticate, middleware.RequireStaff(), limitUser, limitJSON)
		r.Get("/users", adminHandler.ListUsers)
		r.Patch("/users/{id}", adminHandler.UpdateUser)
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
