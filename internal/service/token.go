package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
)

// AuthError is an authentication failure with a loggable reason.
// It matches ErrUnauthenticated under errors.Is.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Reason
}

// Is reports whether target is ErrUnauthenticated.
func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthenticated
}

func authFailure(reason string) error {
	return &AuthError{Reason: reason}
}

// PrincipalCache caches resolved principals by token hash.
// *cache.Cache implements it.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, tokenHash string) (*model.Principal, error)
	SetPrincipal(ctx context.Context, tokenHash string, p *model.Principal, ttl time.Duration) error
	InvalidateUser(ctx context.Context, userID string) error
	IsNegativelyCached(ctx context.Context, tokenHash string) (bool, error)
	SetNegativeCache(ctx context.Context, tokenHash string) error
	ClearNegativeCache(ctx context.Context, tokenHash string) error
}

// TokenConfig holds token lifetime settings.
type TokenConfig struct {
	// TTL bounds token age. Zero means tokens never expire.
	TTL time.Duration
	// CacheTTL bounds how long a resolved principal is cached.
	CacheTTL time.Duration
}

// TokenService issues and resolves auth tokens.
type TokenService struct {
	tokens  TokenStore
	users   UserStore
	cache   PrincipalCache
	cfg     TokenConfig
	metrics metrics.Recorder
	now     func() time.Time
}

// NewTokenService creates a new TokenService. cache may be nil.
func NewTokenService(tokens TokenStore, users UserStore, cache PrincipalCache, cfg TokenConfig, recorder metrics.Recorder) *TokenService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &TokenService{
		tokens:  tokens,
		users:   users,
		cache:   cache,
		cfg:     cfg,
		metrics: recorder,
		now:     now,
	}
}

// Issue returns the user's live token, creating one when none exists or the
// existing one has expired.
func (s *TokenService) Issue(ctx context.Context, user *model.User) (*model.AuthToken, error) {
	existing, err := s.tokens.GetTokenByUserID(ctx, user.ID)
	switch {
	case err == nil && !existing.IsExpired(s.cfg.TTL, s.now()):
		return existing, nil
	case err == nil:
		if err := s.tokens.DeleteTokensByUserID(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to delete expired token: %w", err)
		}
	case !errors.Is(err, repository.ErrTokenNotFound):
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	key, err := auth.GenerateToken()
	if err != nil {
		return nil, err
	}

	token := &model.AuthToken{
		Key:       key,
		UserID:    user.ID,
		CreatedAt: s.now(),
	}

	if err := s.tokens.CreateToken(ctx, token); err != nil {
		if errors.Is(err, repository.ErrTokenExists) {
			// A concurrent login created it first.
			return s.tokens.GetTokenByUserID(ctx, user.ID)
		}
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.ClearNegativeCache(ctx, auth.QuickHash(key))
	}

	s.metrics.IncTokenIssued()

	return token, nil
}

// Resolve maps a token key to its active owner.
// All failures match ErrUnauthenticated and carry a reason.
func (s *TokenService) Resolve(ctx context.Context, key string) (*model.Principal, error) {
	if !auth.ValidateTokenFormat(key) {
		return nil, s.fail(metrics.AuthFailureInvalidFormat)
	}

	hash := auth.QuickHash(key)

	if s.cache != nil {
		if p, err := s.cache.GetPrincipal(ctx, hash); err == nil {
			s.metrics.IncAuthCacheHit()
			return p, nil
		}
		s.metrics.IncAuthCacheMiss()

		if neg, _ := s.cache.IsNegativelyCached(ctx, hash); neg {
			return nil, s.fail(metrics.AuthFailureUnknown)
		}
	}

	token, err := s.tokens.GetTokenByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			if s.cache != nil {
				_ = s.cache.SetNegativeCache(ctx, hash)
			}
			return nil, s.fail(metrics.AuthFailureUnknown)
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	now := s.now()
	if token.IsExpired(s.cfg.TTL, now) {
		if err := s.tokens.DeleteTokensByUserID(ctx, token.UserID); err != nil {
			return nil, fmt.Errorf("failed to delete expired token: %w", err)
		}
		return nil, s.fail(metrics.AuthFailureExpired)
	}

	user, err := s.users.GetUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, s.fail(metrics.AuthFailureUnknown)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, s.fail(metrics.AuthFailureInactive)
	}

	principal := user.Principal()

	if s.cache != nil {
		ttl := s.cfg.CacheTTL
		if s.cfg.TTL > 0 {
			if remaining := token.CreatedAt.Add(s.cfg.TTL).Sub(now); remaining < ttl {
				ttl = remaining
			}
		}
		if err := s.cache.SetPrincipal(ctx, hash, principal, ttl); err == nil {
			// A revocation landing between the lookups above and this write
			// invalidated too early, so confirm the token still exists.
			if _, err := s.tokens.GetTokenByKey(ctx, key); err != nil {
				_ = s.cache.InvalidateUser(ctx, token.UserID)
				if errors.Is(err, repository.ErrTokenNotFound) {
					return nil, s.fail(metrics.AuthFailureUnknown)
				}
				return nil, fmt.Errorf("failed to get token: %w", err)
			}
		}
	}

	return principal, nil
}

// Revoke deletes all of a user's tokens and drops their cached principals.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteTokensByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	s.InvalidateCache(ctx, userID)
	return nil
}

// InvalidateCache drops cached principals of a user.
func (s *TokenService) InvalidateCache(ctx context.Context, userID string) {
	if s.cache != nil {
		_ = s.cache.InvalidateUser(ctx, userID)
	}
}

func (s *TokenService) fail(reason string) error {
	s.metrics.IncAuthFailure(reason)
	return authFailure(reason)
}
