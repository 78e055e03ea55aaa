package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/recipebox/recipebox/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "recipebox_users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "recipebox_tokens_issued_total %d\n", snap.TokensIssued)

	reasons := make([]string, 0, len(snap.AuthFailures))
	for reason := range snap.AuthFailures {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		writeMetric(w, "recipebox_auth_failures_total{reason=%q} %d\n", reason, snap.AuthFailures[reason])
	}

	writeMetric(w, "recipebox_auth_cache_hits_total %d\n", snap.AuthCacheHits)
	writeMetric(w, "recipebox_auth_cache_misses_total %d\n", snap.AuthCacheMisses)

	writeMetric(w, "recipebox_attributes_created_total{kind=\"tag\"} %d\n", snap.TagsCreated)
	writeMetric(w, "recipebox_attributes_created_total{kind=\"ingredient\"} %d\n", snap.IngredientsCreated)

	writeMetric(w, "recipebox_recipes_created_total %d\n", snap.RecipesCreated)
	writeMetric(w, "recipebox_recipes_updated_total %d\n", snap.RecipesUpdated)
	writeMetric(w, "recipebox_recipes_deleted_total %d\n", snap.RecipesDeleted)

	writeMetric(w, "recipebox_images_uploaded_total %d\n", snap.ImagesUploaded)
	writeMetric(w, "recipebox_image_upload_duration_seconds_count %d\n", snap.ImageUploadDurationCount)
	writeMetric(w, "recipebox_image_upload_duration_seconds_sum %.6f\n", float64(snap.ImageUploadDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
