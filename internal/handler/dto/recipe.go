package dto

import (
	"bytes"
	"encoding/json"

	"github.com/recipebox/recipebox/internal/model"
)

// Decimal captures a JSON number or string as decimal text.
// Set is true whenever the key was present, including an explicit null.
type Decimal struct {
	Set  bool
	Text string
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	d.Set = true
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		d.Text = ""
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &d.Text)
	default:
		d.Text = string(b)
	}
	return nil
}

// Ptr returns the text, or nil when the key was absent.
func (d Decimal) Ptr() *string {
	if !d.Set {
		return nil
	}
	s := d.Text
	return &s
}

// RecipeRequest is the body for creating or updating a recipe.
// Nil fields were absent from the request.
type RecipeRequest struct {
	Title       *string   `json:"title"`
	TimeMinutes *int      `json:"time_minutes"`
	Price       Decimal   `json:"price"`
	Link        *string   `json:"link"`
	Tags        *[]string `json:"tags"`
	Ingredients *[]string `json:"ingredients"`
}

// RecipeResponse represents a recipe with tag and ingredient ids.
type RecipeResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	TimeMinutes int      `json:"time_minutes"`
	Price       string   `json:"price"`
	Link        string   `json:"link"`
	Ingredients []string `json:"ingredients"`
	Tags        []string `json:"tags"`
	Image       *string  `json:"image"`
}

// RecipeDetailResponse represents a recipe with nested tags and ingredients.
type RecipeDetailResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	TimeMinutes int                  `json:"time_minutes"`
	Price       string               `json:"price"`
	Link        string               `json:"link"`
	Ingredients []*AttributeResponse `json:"ingredients"`
	Tags        []*AttributeResponse `json:"tags"`
	Image       *string              `json:"image"`
}

// RecipeImageResponse is returned by the upload-image action.
type RecipeImageResponse struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

// ToRecipeResponse converts a Recipe model to RecipeResponse DTO.
// imageURL is empty when the recipe has no image.
func ToRecipeResponse(r *model.Recipe, imageURL string) *RecipeResponse {
	return &RecipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.String(),
		Link:        r.Link,
		Ingredients: nonNil(r.IngredientIDs),
		Tags:        nonNil(r.TagIDs),
		Image:       optional(imageURL),
	}
}

// ToRecipeDetailResponse converts a recipe and its resolved attributes.
func ToRecipeDetailResponse(r *model.Recipe, tags, ingredients []*model.Attribute, imageURL string) *RecipeDetailResponse {
	return &RecipeDetailResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.String(),
		Link:        r.Link,
		Ingredients: ToAttributeListResponse(ingredients),
		Tags:        ToAttributeListResponse(tags),
		Image:       optional(imageURL),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
