// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/recipebox/recipebox/internal/handler/dto"
	"github.com/recipebox/recipebox/internal/service"
)

// Handler serves the router fallbacks.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.", nil)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		"Method \""+r.Method+"\" not allowed.", nil)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the standard JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message string, fields map[string][]string) {
	writeJSON(w, status, dto.ErrorResponse{Error: dto.ErrorDetail{
		Code:    code,
		Message: message,
		Fields:  fields,
	}})
}

// writeServiceError maps service and decoding errors onto the error envelope.
// Unexpected errors are logged and reported as 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid input.", verr.Fields)
	case errors.Is(err, service.ErrInvalidCredentials):
		msg := "Unable to authenticate with provided credentials."
		writeError(w, http.StatusBadRequest, "INVALID_CREDENTIALS", msg,
			map[string][]string{service.NonFieldErrors: {msg}})
	case errors.Is(err, service.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Token")
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided.", nil)
	case errors.Is(err, service.ErrRecipeNotFound), errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.", nil)
	case errors.As(err, &maxErr), errors.Is(err, multipart.ErrMessageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
	default:
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred.", nil)
	}
}

// decodeJSON decodes the request body into dst. An empty body decodes as an
// empty object. Malformed JSON and type mismatches become validation errors.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.As(err, &maxErr):
		return err
	case errors.As(err, &typeErr) && typeErr.Field != "":
		field, _, _ := strings.Cut(typeErr.Field, ".")
		return service.NewValidationError(field, typeMessage(typeErr))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return service.NewValidationError(service.NonFieldErrors, "JSON parse error - "+err.Error())
	default:
		return service.NewValidationError(service.NonFieldErrors, "Invalid request body.")
	}
}

func typeMessage(e *json.UnmarshalTypeError) string {
	switch e.Type.Kind() {
	case reflect.Int, reflect.Int64:
		return "A valid integer is required."
	case reflect.String:
		return "Not a valid string."
	case reflect.Bool:
		return "Must be a valid boolean."
	case reflect.Slice:
		return "Expected a list of items but got type \"" + e.Value + "\"."
	default:
		return "Invalid value."
	}
}
