package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/service"
	"github.com/recipebox/recipebox/internal/testutil/memstore"
)

// interleavingUserStore runs onLookup once, right after the first user
// lookup, to place a concurrent write between Resolve's reads and its
// cache write.
type interleavingUserStore struct {
	*memstore.Store
	once     sync.Once
	onLookup func()
}

func (s *interleavingUserStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.Store.GetUserByID(ctx, id)
	s.once.Do(s.onLookup)
	return user, err
}

func TestResolve_CachesPrincipal(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	user := env.createUser(t, "resolve@example.com", "goodpass")
	token, err := env.tokens.Issue(env.ctx, user)
	require.NoError(t, err)

	p, err := env.tokens.Resolve(env.ctx, token.Key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)

	p, err = env.tokens.Resolve(env.ctx, token.Key)
	require.NoError(t, err)
	assert.Equal(t, user.Email, p.Email)

	snap := env.recorder.Snapshot()
	assert.Equal(t, int64(1), snap.AuthCacheMisses)
	assert.Equal(t, int64(1), snap.AuthCacheHits)
}

func TestResolve_Failures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	unknown, err := auth.GenerateToken()
	require.NoError(t, err)

	tests := []struct {
		name   string
		key    string
		reason string
	}{
		{"malformed", "not-a-token", metrics.AuthFailureInvalidFormat},
		{"empty", "", metrics.AuthFailureInvalidFormat},
		{"unknown", unknown, metrics.AuthFailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tokens.Resolve(env.ctx, tt.key)
			require.ErrorIs(t, err, service.ErrUnauthenticated)

			var authErr *service.AuthError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, tt.reason, authErr.Reason)
		})
	}
}

func TestResolve_UnknownTokenIsNegativelyCached(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	key, err := auth.GenerateToken()
	require.NoError(t, err)

	_, err = env.tokens.Resolve(env.ctx, key)
	require.ErrorIs(t, err, service.ErrUnauthenticated)

	neg, err := env.cache.IsNegativelyCached(env.ctx, auth.QuickHash(key))
	require.NoError(t, err)
	assert.True(t, neg)
}

func TestResolve_ExpiredTokenIsReplacedOnLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, time.Hour)

	user := env.createUser(t, "expire@example.com", "goodpass")
	token, err := env.tokens.Issue(env.ctx, user)
	require.NoError(t, err)

	env.store.SetTokenCreatedAt(token.Key, time.Now().Add(-2*time.Hour))

	_, err = env.tokens.Resolve(env.ctx, token.Key)
	var authErr *service.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, metrics.AuthFailureExpired, authErr.Reason)

	fresh, err := env.tokens.Issue(env.ctx, user)
	require.NoError(t, err)
	assert.NotEqual(t, token.Key, fresh.Key)

	_, err = env.tokens.Resolve(env.ctx, fresh.Key)
	assert.NoError(t, err)
}

func TestIssue_ReplacesExpiredToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, time.Minute)

	user := env.createUser(t, "reissue@example.com", "goodpass")
	old, err := env.tokens.Issue(env.ctx, user)
	require.NoError(t, err)

	env.store.SetTokenCreatedAt(old.Key, time.Now().Add(-time.Hour))

	fresh, err := env.tokens.Issue(env.ctx, user)
	require.NoError(t, err)
	assert.NotEqual(t, old.Key, fresh.Key)
}

func TestIssue_ClearsNegativeCache(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	user := env.createUser(t, "neg@example.com", "goodpass")
	token, err := env.tokens.Issue(env.ctx, user)
	require.NoError(t, err)

	neg, err := env.cache.IsNegativelyCached(env.ctx, auth.QuickHash(token.Key))
	require.NoError(t, err)
	assert.False(t, neg)
}

func TestRevoke(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	user := env.createUser(t, "revoke@example.com", "goodpass")
	token, err := env.tokens.Issue(env.ctx, user)
	require.NoError(t, err)
	_, err = env.tokens.Resolve(env.ctx, token.Key)
	require.NoError(t, err)

	require.NoError(t, env.tokens.Revoke(env.ctx, user.ID))

	_, err = env.tokens.Resolve(env.ctx, token.Key)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestResolve_RevocationDuringResolveIsNotCached(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	user := env.createUser(t, "interleave@example.com", "goodpass")
	token, err := env.tokens.Issue(env.ctx, user)
	require.NoError(t, err)

	users := &interleavingUserStore{Store: env.store}
	tokens := service.NewTokenService(env.store, users, env.cache,
		service.TokenConfig{CacheTTL: time.Minute}, env.recorder)
	users.onLookup = func() {
		require.NoError(t, tokens.Revoke(env.ctx, user.ID))
	}

	_, err = tokens.Resolve(env.ctx, token.Key)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)

	_, err = env.cache.GetPrincipal(env.ctx, auth.QuickHash(token.Key))
	assert.Error(t, err)

	_, err = tokens.Resolve(env.ctx, token.Key)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestTokenService_WorksWithoutCache(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	tokens := service.NewTokenService(env.store, env.store, nil, service.TokenConfig{}, nil)

	user := env.createUser(t, "nocache@example.com", "goodpass")
	token, err := tokens.Issue(env.ctx, user)
	require.NoError(t, err)

	p, err := tokens.Resolve(env.ctx, token.Key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
}
