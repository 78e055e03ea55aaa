// Package main is the entrypoint for the Recipebox API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/recipebox/recipebox/internal/cache"
	"github.com/recipebox/recipebox/internal/config"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/middleware"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
	"github.com/recipebox/recipebox/internal/server"
	"github.com/recipebox/recipebox/internal/service"
	"github.com/recipebox/recipebox/internal/storage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			repo.Close()
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Initialize media storage
	media, mediaHandler, err := initMedia(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize media storage",
			slog.String("backend", cfg.MediaBackend),
			slog.String("error", err.Error()),
		)
		_ = cacheClient.Close()
		repo.Close()
		os.Exit(1)
	}

	// Initialize services
	recorder := metrics.NewInMemory()
	tokens := service.NewTokenService(repo, repo, cacheClient, service.TokenConfig{
		TTL:      cfg.TokenTTL,
		CacheTTL: cfg.AuthCacheTTL,
	}, recorder)
	users := service.NewUserService(repo, tokens, recorder)
	tags := service.NewAttributeService(model.KindTag, repo, recorder)
	ingredients := service.NewAttributeService(model.KindIngredient, repo, recorder)
	recipes := service.NewRecipeService(service.RecipeServiceConfig{
		Store:        repo,
		Tags:         tags,
		Ingredients:  ingredients,
		Media:        media,
		MaxImageSize: cfg.MaxImageSize,
		Metrics:      recorder,
		Logger:       logger,
	})

	router := server.NewRouter(server.RouterConfig{
		Logger:      logger,
		Users:       users,
		Tokens:      tokens,
		Tags:        tags,
		Ingredients: ingredients,
		Recipes:     recipes,
		Metrics:     recorder,
		Snapshotter: recorder,
		DB:          repo,
		Cache:       cacheClient,
		Media:       mediaHandler,
		MediaPath:   mediaPath(cfg.MediaURL),
		RateLimit: middleware.RateLimitConfig{
			Logger:        logger,
			Limiter:       cacheClient,
			APIEnabled:    cfg.RateLimitAPIEnabled,
			APIPerMinute:  cfg.RateLimitAPIPerMin,
			APIBurst:      cfg.RateLimitAPIBurst,
			AuthEnabled:   cfg.RateLimitAuthEnabled,
			AuthPerMinute: cfg.RateLimitAuthPerMin,
		},
		AuthMinDuration:    middleware.DefaultMinAuthDuration,
		IsDevelopment:      cfg.IsDevelopment(),
		CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		MaxImageSize:       cfg.MaxImageSize,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"media_backend", cfg.MediaBackend,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initMedia builds the configured image backend. The returned handler is
// non-nil only for the local backend, which the API serves itself.
func initMedia(ctx context.Context, cfg *config.Config) (storage.Storage, http.Handler, error) {
	if cfg.MediaBackend == config.MediaBackendS3 {
		s3Store, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3Store, nil, nil
	}

	local, err := storage.NewLocal(cfg.MediaRoot, cfg.MediaURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local.Handler(), nil
}

// mediaPath returns the path component of MEDIA_URL. Absolute URLs pointing
// at a CDN still mount the local handler under their path.
func mediaPath(mediaURL string) string {
	parsed, err := url.Parse(mediaURL)
	if err != nil || parsed.Path == "" {
		return "/media/"
	}
	return parsed.Path
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
