package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
)

// AttributeService handles tags and ingredients. One instance serves one kind.
type AttributeService struct {
	kind    model.AttributeKind
	store   AttributeStore
	metrics metrics.Recorder
}

// NewAttributeService creates a new AttributeService for kind.
func NewAttributeService(kind model.AttributeKind, store AttributeStore, recorder metrics.Recorder) *AttributeService {
	if !kind.IsValid() {
		panic(fmt.Sprintf("service: unknown attribute kind %q", kind))
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AttributeService{
		kind:    kind,
		store:   store,
		metrics: recorder,
	}
}

// Kind returns the attribute kind served.
func (s *AttributeService) Kind() model.AttributeKind {
	return s.kind
}

// CreateAttributeInput defines input for creating a tag or ingredient.
type CreateAttributeInput struct {
	Name *string `json:"name" validate:"required,notblank,max=255"`
}

// Create adds an attribute owned by userID.
func (s *AttributeService) Create(ctx context.Context, userID string, input CreateAttributeInput) (*model.Attribute, error) {
	if verr := validateStruct(input); verr.OrNil() != nil {
		return nil, verr
	}

	attr := &model.Attribute{
		ID:        newID(),
		Kind:      s.kind,
		Name:      strings.TrimSpace(*input.Name),
		UserID:    userID,
		CreatedAt: now(),
	}

	if err := s.store.CreateAttribute(ctx, s.kind, attr); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.kind, err)
	}

	s.metrics.IncAttributeCreated(string(s.kind))

	return attr, nil
}

// List returns the user's attributes ordered by name descending.
// With assignedOnly, only attributes used by at least one of the user's
// recipes are returned, each once.
func (s *AttributeService) List(ctx context.Context, userID string, assignedOnly bool) ([]*model.Attribute, error) {
	attrs, err := s.store.ListAttributes(ctx, s.kind, model.AttributeFilter{
		UserID:       userID,
		AssignedOnly: assignedOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.kind, err)
	}
	return attrs, nil
}

// Lookup returns the attributes with the given ids regardless of owner, in
// the order of ids. Missing ids are returned separately.
func (s *AttributeService) Lookup(ctx context.Context, ids []string) ([]*model.Attribute, []string, error) {
	if len(ids) == 0 {
		return []*model.Attribute{}, nil, nil
	}

	found, err := s.store.ListAttributes(ctx, s.kind, model.AttributeFilter{IDs: ids})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up %s: %w", s.kind, err)
	}

	byID := make(map[string]*model.Attribute, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	attrs := make([]*model.Attribute, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			attrs = append(attrs, a)
		} else {
			missing = append(missing, id)
		}
	}

	return attrs, missing, nil
}
