package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/handler/dto"
	"github.com/recipebox/recipebox/internal/service"
)

// AdminHandler handles staff-only account management.
type AdminHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users *service.UserService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		logger: logger,
	}
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAdminUserListResponse(users))
}

// UpdateUser handles PATCH /api/admin/users/{id}.
// Deactivating an account revokes its tokens.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if req.IsActive == nil {
		writeServiceError(w, r, h.logger, service.NewValidationError("is_active", "This field is required."))
		return
	}

	user, err := h.users.SetActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_status_changed",
		"user_id", user.ID,
		"is_active", user.IsActive,
		"changed_by", auth.UserIDFromContext(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.ToAdminUserResponse(user))
}
