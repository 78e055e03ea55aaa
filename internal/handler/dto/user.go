package dto

import (
	"time"

	"github.com/recipebox/recipebox/internal/model"
)

// UserRequest is the body of POST /api/user/create and PUT/PATCH /api/user/me.
// Nil fields were absent from the request.
type UserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
}

// TokenRequest is the body of POST /api/user/token.
type TokenRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// TokenResponse carries an issued token.
type TokenResponse struct {
	Token string `json:"token"`
}

// UserResponse is the public view of an account. The password is write-only.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AdminUserResponse is the staff view of an account.
type AdminUserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	IsActive    bool      `json:"is_active"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpdateUserStatusRequest is the body of PATCH /api/admin/users/{id}.
type UpdateUserStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
}

// ToAdminUserResponse converts a User model to AdminUserResponse DTO.
func ToAdminUserResponse(u *model.User) *AdminUserResponse {
	return &AdminUserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
	}
}

// ToAdminUserListResponse converts users for the staff listing.
func ToAdminUserListResponse(users []*model.User) []*AdminUserResponse {
	out := make([]*AdminUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToAdminUserResponse(u))
	}
	return out
}
