// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Auth failure reasons.
const (
	AuthFailureMissing       = "missing"
	AuthFailureInvalidFormat = "invalid_format"
	AuthFailureUnknown       = "unknown"
	AuthFailureExpired       = "expired"
	AuthFailureInactive      = "inactive"
	AuthFailureCredentials   = "credentials"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncUserCreated()
	IncTokenIssued()
	IncAuthFailure(reason string)
	IncAuthCacheHit()
	IncAuthCacheMiss()

	// Collection metrics
	IncAttributeCreated(kind string) // kind: "tag" or "ingredient"
	IncRecipeCreated()
	IncRecipeUpdated()
	IncRecipeDeleted()
	IncImageUploaded()
	ObserveImageUploadDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
