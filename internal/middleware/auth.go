package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/service"
)

// DefaultMinAuthDuration is the minimum time spent on a failed auth attempt
// so that unknown and malformed tokens take as long as valid lookups.
const DefaultMinAuthDuration = 50 * time.Millisecond

// TokenResolver maps a token key to its active owner.
// *service.TokenService implements it.
type TokenResolver interface {
	Resolve(ctx context.Context, key string) (*model.Principal, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver TokenResolver
	Metrics  metrics.Recorder
	// MinDuration pads failed attempts. Zero disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// It reads "Authorization: Token <key>" or "Authorization: Bearer <key>",
// resolves the owner and injects the principal into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			fail := func(reason string) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if elapsed := time.Since(startTime); elapsed < cfg.MinDuration {
					time.Sleep(cfg.MinDuration - elapsed)
				}
				writeAuthError(w)
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				cfg.Metrics.IncAuthFailure(metrics.AuthFailureMissing)
				fail(metrics.AuthFailureMissing)
				return
			}

			key, err := auth.ParseAuthorization(header)
			if err != nil {
				cfg.Metrics.IncAuthFailure(metrics.AuthFailureInvalidFormat)
				fail(metrics.AuthFailureInvalidFormat)
				return
			}

			principal, err := cfg.Resolver.Resolve(r.Context(), key)
			if err != nil {
				var authErr *service.AuthError
				if errors.As(err, &authErr) {
					fail(authErr.Reason)
					return
				}
				cfg.Logger.Error("error during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", principal.UserID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
			notePrincipal(r)
			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", auth.SchemeToken)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided or are invalid.")
}
