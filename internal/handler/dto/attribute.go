package dto

import "github.com/recipebox/recipebox/internal/model"

// AttributeRequest is the body for creating a tag or ingredient.
type AttributeRequest struct {
	Name *string `json:"name"`
}

// AttributeResponse represents a tag or ingredient.
type AttributeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ToAttributeResponse converts an Attribute model to AttributeResponse DTO.
func ToAttributeResponse(a *model.Attribute) *AttributeResponse {
	return &AttributeResponse{ID: a.ID, Name: a.Name}
}

// ToAttributeListResponse converts a slice of attributes, never returning nil.
func ToAttributeListResponse(attrs []*model.Attribute) []*AttributeResponse {
	out := make([]*AttributeResponse, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, ToAttributeResponse(a))
	}
	return out
}
