package model

import "time"

// AttributeKind distinguishes the two user-scoped label types.
type AttributeKind string

const (
	KindTag        AttributeKind = "tag"
	KindIngredient AttributeKind = "ingredient"
)

// IsValid checks if the kind is known.
func (k AttributeKind) IsValid() bool {
	return k == KindTag || k == KindIngredient
}

// Attribute is a named label owned by a user: a tag or an ingredient.
type Attribute struct {
	ID        string        `json:"id"`
	Kind      AttributeKind `json:"-"`
	Name      string        `json:"name"`
	UserID    string        `json:"-"`
	CreatedAt time.Time     `json:"-"`
}

// String returns the attribute name.
func (a *Attribute) String() string {
	return a.Name
}

// AttributeFilter narrows an attribute listing.
type AttributeFilter struct {
	// UserID scopes the listing to one owner. Empty means any owner and is
	// only used for id lookups.
	UserID string
	// AssignedOnly keeps attributes referenced by at least one of the
	// owner's recipes.
	AssignedOnly bool
	// IDs restricts the listing to the given ids when non-nil.
	IDs []string
}
