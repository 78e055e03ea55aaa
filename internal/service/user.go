package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
)

const msgEmailExists = "user with this email already exists."

// UserService handles account business logic.
type UserService struct {
	users   UserStore
	tokens  *TokenService
	metrics metrics.Recorder
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, tokens *TokenService, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		users:   users,
		tokens:  tokens,
		metrics: recorder,
	}
}

// CreateUserInput defines input for registering a user.
// Nil fields were absent from the request.
type CreateUserInput struct {
	Email    *string `json:"email" validate:"required,notblank,max=255,email"`
	Password *string `json:"password" validate:"required,notblank,min=5,max=128"`
	Name     *string `json:"name" validate:"required,notblank,max=255"`
}

// CreateUser registers an active, non-staff user.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	if verr := validateStruct(input); verr.OrNil() != nil {
		return nil, verr
	}
	return s.create(ctx, *input.Email, *input.Password, *input.Name, false)
}

// CreateSuperuser creates an active staff superuser. Used by provisioning
// tooling rather than the public API, so name is optional.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password, name string) (*model.User, error) {
	verr := &ValidationError{}
	if NormalizeEmail(email) == "" {
		verr.Add("email", "Users must have an email address.")
	}
	if len(password) < 5 {
		verr.Add("password", "Ensure this field has at least 5 characters.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return s.create(ctx, email, password, name, true)
}

func (s *UserService) create(ctx context.Context, email, password, name string, superuser bool) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, NewValidationError("email", "Users must have an email address.")
	}
	verr := &ValidationError{}
	checkEmailLength(verr, email)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	ts := now()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
		IsStaff:      superuser,
		IsSuperuser:  superuser,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, NewValidationError("email", msgEmailExists)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncUserCreated()

	return user, nil
}

// LoginInput defines the token endpoint credentials.
type LoginInput struct {
	Email    *string `json:"email" validate:"required,notblank"`
	Password *string `json:"password" validate:"required,notblank"`
}

// Authenticate verifies credentials and returns the active user.
// Unknown email, wrong password and inactive account all yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, input LoginInput) (*model.User, error) {
	if verr := validateStruct(input); verr.OrNil() != nil {
		return nil, verr
	}

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(*input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.DummyVerify(*input.Password)
			s.metrics.IncAuthFailure(metrics.AuthFailureCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	match, err := auth.VerifyPassword(*input.Password, user.PasswordHash)
	if err != nil || !match || !user.IsActive {
		s.metrics.IncAuthFailure(metrics.AuthFailureCredentials)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Login authenticates and returns the user's token.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*model.AuthToken, error) {
	user, err := s.Authenticate(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.tokens.Issue(ctx, user)
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns every account. Staff only.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateProfileInput defines a profile update. Nil fields were absent.
type UpdateProfileInput struct {
	Email    *string `json:"email" validate:"omitnil,notblank,max=255,email"`
	Password *string `json:"password" validate:"omitnil,notblank,min=5,max=128"`
	Name     *string `json:"name" validate:"omitnil,notblank,max=255"`
}

// UpdateProfile applies a full (PUT) or partial (PATCH) profile update.
// A password change re-hashes the password and revokes the user's tokens.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput, partial bool) (*model.User, error) {
	verr := validateStruct(input)
	if !partial {
		requireFields(verr, map[string]bool{
			"email":    input.Email != nil,
			"password": input.Password != nil,
			"name":     input.Name != nil,
		})
	}
	if input.Email != nil {
		checkEmailLength(verr, NormalizeEmail(*input.Email))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		user.Email = NormalizeEmail(*input.Email)
	}
	if input.Name != nil {
		user.Name = *input.Name
	}

	passwordChanged := false
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		passwordChanged = true
	}

	user.UpdatedAt = now()

	if err := s.users.UpdateUser(ctx, user, passwordChanged); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, NewValidationError("email", msgEmailExists)
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	// Cached principals carry the email and flags, so drop them on any change.
	s.tokens.InvalidateCache(ctx, user.ID)

	return user, nil
}

// SetActive activates or deactivates an account. Deactivation revokes tokens.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool) (*model.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.IsActive = active
	user.UpdatedAt = now()

	if err := s.users.UpdateUser(ctx, user, !active); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.tokens.InvalidateCache(ctx, user.ID)

	return user, nil
}

// requireFields adds a "required" message for each absent field that has no
// message yet.
func requireFields(verr *ValidationError, present map[string]bool) {
	for field, ok := range present {
		if !ok && !verr.Has(field) {
			verr.Add(field, "This field is required.")
		}
	}
}
