package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/handler/dto"
	"github.com/recipebox/recipebox/internal/service"
)

// RecipeHandler handles HTTP requests for recipe operations.
type RecipeHandler struct {
	svc          *service.RecipeService
	maxImageSize int64
	logger       *slog.Logger
}

// NewRecipeHandler creates a new RecipeHandler. maxImageSize bounds how much
// of an uploaded file is read before the service rejects it.
func NewRecipeHandler(svc *service.RecipeService, maxImageSize int64, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{
		svc:          svc,
		maxImageSize: maxImageSize,
		logger:       logger,
	}
}

// List handles GET /api/recipe/recipes.
// Optional tags and ingredients params hold comma-separated ids.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	recipes, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()),
		splitIDs(query.Get("tags")), splitIDs(query.Get("ingredients")))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response := make([]*dto.RecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		response = append(response, dto.ToRecipeResponse(recipe, h.svc.ImageURL(recipe)))
	}
	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/recipe/recipes.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.RecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	recipe, err := h.svc.Create(r.Context(), auth.UserIDFromContext(r.Context()), toRecipeInput(req))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("recipe_created",
		"recipe_id", recipe.ID,
		"tag_count", len(recipe.TagIDs),
		"ingredient_count", len(recipe.IngredientIDs),
	)

	writeJSON(w, http.StatusCreated, dto.ToRecipeResponse(recipe, h.svc.ImageURL(recipe)))
}

// Get handles GET /api/recipe/recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetDetail(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecipeDetailResponse(
		detail.Recipe, detail.Tags, detail.Ingredients, h.svc.ImageURL(detail.Recipe)))
}

// Update handles PUT and PATCH /api/recipe/recipes/{id}.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.RecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	partial := r.Method == http.MethodPatch
	recipe, err := h.svc.Update(r.Context(), auth.UserIDFromContext(r.Context()),
		chi.URLParam(r, "id"), toRecipeInput(req), partial)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("recipe_updated",
		"recipe_id", recipe.ID,
		"partial", partial,
	)

	writeJSON(w, http.StatusOK, dto.ToRecipeResponse(recipe, h.svc.ImageURL(recipe)))
}

// Delete handles DELETE /api/recipe/recipes/{id}.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), auth.UserIDFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("recipe_deleted", "recipe_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /api/recipe/recipes/{id}/upload-image.
// The file is read from the multipart field "image".
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	data, err := h.readImage(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	recipe, err := h.svc.UploadImage(r.Context(), auth.UserIDFromContext(r.Context()),
		chi.URLParam(r, "id"), data)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("recipe_image_uploaded",
		"recipe_id", recipe.ID,
		"size_bytes", len(data),
	)

	writeJSON(w, http.StatusOK, dto.RecipeImageResponse{
		ID:    recipe.ID,
		Image: h.svc.ImageURL(recipe),
	})
}

// readImage returns the uploaded file, or nil when the request carries no
// "image" part. At most maxImageSize+1 bytes are read.
func (h *RecipeHandler) readImage(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, err
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, nil
		default:
			return nil, service.NewValidationError("image",
				"The submitted data was not a file. Check the encoding type on the form.")
		}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageSize+1))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func toRecipeInput(req dto.RecipeRequest) service.RecipeInput {
	return service.RecipeInput{
		Title:       req.Title,
		TimeMinutes: req.TimeMinutes,
		Price:       req.Price.Ptr(),
		Link:        req.Link,
		Tags:        req.Tags,
		Ingredients: req.Ingredients,
	}
}

// splitIDs parses a comma-separated id list, dropping blanks.
func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
