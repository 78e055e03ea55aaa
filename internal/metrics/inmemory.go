package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated       uint64
	TokensIssued       uint64
	AuthFailures       map[string]uint64
	AuthCacheHits      uint64
	AuthCacheMisses    uint64
	TagsCreated        uint64
	IngredientsCreated uint64
	RecipesCreated     uint64
	RecipesUpdated     uint64
	RecipesDeleted     uint64
	ImagesUploaded     uint64

	ImageUploadDurationCount   uint64
	ImageUploadDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory.
// It backs the /metrics endpoint and is used in tests.
type InMemoryRecorder struct {
	usersCreated       uint64
	tokensIssued       uint64
	authCacheHits      uint64
	authCacheMisses    uint64
	tagsCreated        uint64
	ingredientsCreated uint64
	recipesCreated     uint64
	recipesUpdated     uint64
	recipesDeleted     uint64
	imagesUploaded     uint64

	imageUploadDurationCount   uint64
	imageUploadDurationTotalNs int64

	mu           sync.Mutex
	authFailures map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{authFailures: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	failures := make(map[string]uint64, len(m.authFailures))
	for k, v := range m.authFailures {
		failures[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		UsersCreated:               atomic.LoadUint64(&m.usersCreated),
		TokensIssued:               atomic.LoadUint64(&m.tokensIssued),
		AuthFailures:               failures,
		AuthCacheHits:              atomic.LoadUint64(&m.authCacheHits),
		AuthCacheMisses:            atomic.LoadUint64(&m.authCacheMisses),
		TagsCreated:                atomic.LoadUint64(&m.tagsCreated),
		IngredientsCreated:         atomic.LoadUint64(&m.ingredientsCreated),
		RecipesCreated:             atomic.LoadUint64(&m.recipesCreated),
		RecipesUpdated:             atomic.LoadUint64(&m.recipesUpdated),
		RecipesDeleted:             atomic.LoadUint64(&m.recipesDeleted),
		ImagesUploaded:             atomic.LoadUint64(&m.imagesUploaded),
		ImageUploadDurationCount:   atomic.LoadUint64(&m.imageUploadDurationCount),
		ImageUploadDurationTotalNs: atomic.LoadInt64(&m.imageUploadDurationTotalNs),
	}
}

// IncUserCreated increments the user created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncTokenIssued increments the token issued counter.
func (m *InMemoryRecorder) IncTokenIssued() {
	atomic.AddUint64(&m.tokensIssued, 1)
}

// IncAuthFailure increments the auth failure counter for reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.mu.Lock()
	m.authFailures[reason]++
	m.mu.Unlock()
}

// IncAuthCacheHit increments the auth cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() {
	atomic.AddUint64(&m.authCacheHits, 1)
}

// IncAuthCacheMiss increments the auth cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() {
	atomic.AddUint64(&m.authCacheMisses, 1)
}

// IncAttributeCreated increments the created counter for a tag or ingredient.
func (m *InMemoryRecorder) IncAttributeCreated(kind string) {
	switch kind {
	case "tag":
		atomic.AddUint64(&m.tagsCreated, 1)
	case "ingredient":
		atomic.AddUint64(&m.ingredientsCreated, 1)
	}
}

// IncRecipeCreated increments the recipe created counter.
func (m *InMemoryRecorder) IncRecipeCreated() {
	atomic.AddUint64(&m.recipesCreated, 1)
}

// IncRecipeUpdated increments the recipe updated counter.
func (m *InMemoryRecorder) IncRecipeUpdated() {
	atomic.AddUint64(&m.recipesUpdated, 1)
}

// IncRecipeDeleted increments the recipe deleted counter.
func (m *InMemoryRecorder) IncRecipeDeleted() {
	atomic.AddUint64(&m.recipesDeleted, 1)
}

// IncImageUploaded increments the image uploaded counter.
func (m *InMemoryRecorder) IncImageUploaded() {
	atomic.AddUint64(&m.imagesUploaded, 1)
}

// ObserveImageUploadDuration records how long an image upload took.
func (m *InMemoryRecorder) ObserveImageUploadDuration(duration time.Duration) {
	atomic.AddUint64(&m.imageUploadDurationCount, 1)
	atomic.AddInt64(&m.imageUploadDurationTotalNs, duration.Nanoseconds())
}
