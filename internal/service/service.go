// Package service provides business logic for the application.
//
// Services depend on the narrow store interfaces below rather than on the
// PostgreSQL repository, so tests can run against an in-memory store.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/recipebox/recipebox/internal/model"
)

// Service errors.
var (
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	ErrUnauthenticated    = errors.New("invalid or missing token")
	ErrUserNotFound       = errors.New("user not found")
	ErrRecipeNotFound     = errors.New("recipe not found")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateUser saves the user; with revokeTokens it also deletes the
	// user's tokens in the same transaction.
	UpdateUser(ctx context.Context, user *model.User, revokeTokens bool) error
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// TokenStore persists auth tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, token *model.AuthToken) error
	GetTokenByKey(ctx context.Context, key string) (*model.AuthToken, error)
	GetTokenByUserID(ctx context.Context, userID string) (*model.AuthToken, error)
	DeleteTokensByUserID(ctx context.Context, userID string) error
}

// AttributeStore persists tags and ingredients.
type AttributeStore interface {
	CreateAttribute(ctx context.Context, kind model.AttributeKind, attr *model.Attribute) error
	ListAttributes(ctx context.Context, kind model.AttributeKind, filter model.AttributeFilter) ([]*model.Attribute, error)
}

// RecipeStore persists recipes and their tag and ingredient links.
type RecipeStore interface {
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	GetRecipe(ctx context.Context, userID, id string) (*model.Recipe, error)
	ListRecipes(ctx context.Context, filter model.RecipeFilter) ([]*model.Recipe, error)
	UpdateRecipe(ctx context.Context, recipe *model.Recipe, replaceTags, replaceIngredients bool) error
	SetRecipeImage(ctx context.Context, userID, id, imageKey string, updatedAt time.Time) error
	DeleteRecipe(ctx context.Context, userID, id string) error
}

// ValidationError reports per-field input problems.
// Non-field problems are stored under NonFieldErrors.
type ValidationError struct {
	Fields map[string][]string
}

// NonFieldErrors is the field key for errors not tied to one input field.
const NonFieldErrors = "non_field_errors"

// NewValidationError returns an error with a single field message.
func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add records a message for field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field already has a message.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// OrNil returns e when it holds messages and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// validate is shared by all services. Field names come from json tags.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateStruct runs struct tag validation and converts failures into a
// ValidationError with user-facing messages.
func validateStruct(s any) *ValidationError {
	verr := &ValidationError{}

	err := validate.Struct(s)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add(NonFieldErrors, err.Error())
		return verr
	}

	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "notblank":
		return "This field may not be blank."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	default:
		return "Invalid value."
	}
}

// NormalizeEmail trims, applies Unicode NFKC and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(email)))
}

// maxEmailLength matches the users.email column.
const maxEmailLength = 255

// checkEmailLength rejects an address that outgrew the column during
// normalization. NFKC can expand characters such as U+FB00 into two.
func checkEmailLength(verr *ValidationError, normalized string) {
	if utf8.RuneCountInString(normalized) > maxEmailLength && !verr.Has("email") {
		verr.Add("email", fmt.Sprintf("Ensure this field has no more than %d characters.", maxEmailLength))
	}
}

// newID generates a ULID for a new entity.
func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// now returns the current time truncated to the database precision.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
