package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/handler/dto"
	"github.com/recipebox/recipebox/internal/service"
)

// AttributeHandler serves one attribute kind (tags or ingredients).
type AttributeHandler struct {
	svc    *service.AttributeService
	logger *slog.Logger
}

// NewAttributeHandler creates a new AttributeHandler.
func NewAttributeHandler(svc *service.AttributeService, logger *slog.Logger) *AttributeHandler {
	return &AttributeHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/recipe/tags and /api/recipe/ingredients.
func (h *AttributeHandler) List(w http.ResponseWriter, r *http.Request) {
	assignedOnly, err := parseFlag(r.URL.Query().Get("assigned_only"))
	if err != nil {
		writeServiceError(w, r, h.logger, service.NewValidationError("assigned_only", "Must be 0 or 1."))
		return
	}

	attrs, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()), assignedOnly)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAttributeListResponse(attrs))
}

// Create handles POST /api/recipe/tags and /api/recipe/ingredients.
func (h *AttributeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.AttributeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	attr, err := h.svc.Create(r.Context(), auth.UserIDFromContext(r.Context()),
		service.CreateAttributeInput{Name: req.Name})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("attribute_created",
		"kind", string(h.svc.Kind()),
		"attribute_id", attr.ID,
	)

	writeJSON(w, http.StatusCreated, dto.ToAttributeResponse(attr))
}

// parseFlag reads an optional integer or boolean query flag.
// Any non-zero integer is true.
func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n != 0, nil
	}
	return strconv.ParseBool(v)
}
