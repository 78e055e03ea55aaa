// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// ErrorResponse is the envelope for every API error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error. Fields maps input names to messages
// and is only set for validation failures.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}
