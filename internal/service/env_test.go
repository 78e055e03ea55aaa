package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/cache"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/service"
	"github.com/recipebox/recipebox/internal/storage"
	"github.com/recipebox/recipebox/internal/testutil"
	"github.com/recipebox/recipebox/internal/testutil/memstore"
)

// testEnv wires every service over an in-memory store, a miniredis-backed
// cache and local media storage.
type testEnv struct {
	ctx         context.Context
	store       *memstore.Store
	cache       *cache.Cache
	media       *storage.LocalStorage
	mediaDir    string
	recorder    *metrics.InMemoryRecorder
	tokens      *service.TokenService
	users       *service.UserService
	tags        *service.AttributeService
	ingredients *service.AttributeService
	recipes     *service.RecipeService
}

func newTestEnv(t *testing.T, tokenTTL time.Duration) *testEnv {
	t.Helper()

	client, _ := testutil.NewMiniRedis(t)
	mediaDir := t.TempDir()
	media, err := storage.NewLocal(mediaDir, "/media/")
	require.NoError(t, err)

	env := &testEnv{
		ctx:      context.Background(),
		store:    memstore.New(),
		cache:    cache.NewFromClient(client),
		media:    media,
		mediaDir: mediaDir,
		recorder: metrics.NewInMemory(),
	}

	env.tokens = service.NewTokenService(env.store, env.store, env.cache,
		service.TokenConfig{TTL: tokenTTL, CacheTTL: time.Minute}, env.recorder)
	env.users = service.NewUserService(env.store, env.tokens, env.recorder)
	env.tags = service.NewAttributeService(model.KindTag, env.store, env.recorder)
	env.ingredients = service.NewAttributeService(model.KindIngredient, env.store, env.recorder)
	env.recipes = service.NewRecipeService(service.RecipeServiceConfig{
		Store:        env.store,
		Tags:         env.tags,
		Ingredients:  env.ingredients,
		Media:        media,
		MaxImageSize: 1 << 20,
		Metrics:      env.recorder,
	})

	return env
}

func (e *testEnv) createUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	name := "Test User"
	user, err := e.users.CreateUser(e.ctx, service.CreateUserInput{
		Email:    &email,
		Password: &password,
		Name:     &name,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) createAttr(t *testing.T, svc *service.AttributeService, userID, name string) *model.Attribute {
	t.Helper()
	attr, err := svc.Create(e.ctx, userID, service.CreateAttributeInput{Name: &name})
	require.NoError(t, err)
	return attr
}

func ptr[T any](v T) *T {
	return &v
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}
