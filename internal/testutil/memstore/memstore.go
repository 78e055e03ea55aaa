// Package memstore provides an in-memory implementation of the service store
// interfaces for tests. It mirrors the PostgreSQL repository's ordering,
// scoping and error semantics.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
)

// Store is a goroutine-safe in-memory store.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*model.User
	tokens      map[string]*model.AuthToken // by key
	attributes  map[model.AttributeKind]map[string]*model.Attribute
	recipes     map[string]*model.Recipe
	recipeOrder []string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:  make(map[string]*model.User),
		tokens: make(map[string]*model.AuthToken),
		attributes: map[model.AttributeKind]map[string]*model.Attribute{
			model.KindTag:        {},
			model.KindIngredient: {},
		},
		recipes: make(map[string]*model.Recipe),
	}
}

// ============================================================================
// Users
// ============================================================================

// CreateUser inserts a user; emails are unique.
func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUserByID retrieves a user by id.
func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail retrieves a user by normalized email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// UpdateUser replaces a user, optionally deleting the user's tokens.
func (s *Store) UpdateUser(_ context.Context, user *model.User, revokeTokens bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	for _, u := range s.users {
		if u.ID != user.ID && u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	if revokeTokens {
		s.deleteTokensLocked(user.ID)
	}
	return nil
}

// ListUsers returns all users ordered by email.
func (s *Store) ListUsers(_ context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// ============================================================================
// Tokens
// ============================================================================

// CreateToken stores a token; each user holds at most one.
func (s *Store) CreateToken(_ context.Context, token *model.AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[token.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	if _, ok := s.tokens[token.Key]; ok {
		return repository.ErrTokenExists
	}
	for _, t := range s.tokens {
		if t.UserID == token.UserID {
			return repository.ErrTokenExists
		}
	}
	cp := *token
	s.tokens[token.Key] = &cp
	return nil
}

// GetTokenByKey retrieves a token by key.
func (s *Store) GetTokenByKey(_ context.Context, key string) (*model.AuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[key]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

// GetTokenByUserID retrieves the token held by a user.
func (s *Store) GetTokenByUserID(_ context.Context, userID string) (*model.AuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.UserID == userID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrTokenNotFound
}

// DeleteTokensByUserID removes every token held by a user.
func (s *Store) DeleteTokensByUserID(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteTokensLocked(userID)
	return nil
}

// SetTokenCreatedAt backdates a token. Used to exercise expiry.
func (s *Store) SetTokenCreatedAt(key string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[key]; ok {
		t.CreatedAt = createdAt
	}
}

func (s *Store) deleteTokensLocked(userID string) {
	for key, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, key)
		}
	}
}

// ============================================================================
// Attributes
// ============================================================================

// CreateAttribute inserts a tag or ingredient owned by an existing user.
func (s *Store) CreateAttribute(_ context.Context, kind model.AttributeKind, attr *model.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.attributes[kind]
	if !ok {
		return repository.ErrUnknownKind
	}
	if _, ok := s.users[attr.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	attr.Kind = kind
	cp := *attr
	table[attr.ID] = &cp
	return nil
}

// ListAttributes returns attributes of one kind ordered by name descending.
func (s *Store) ListAttributes(_ context.Context, kind model.AttributeKind, filter model.AttributeFilter) ([]*model.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.attributes[kind]
	if !ok {
		return nil, repository.ErrUnknownKind
	}

	attrs := make([]*model.Attribute, 0)
	for _, a := range table {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.IDs != nil && !slices.Contains(filter.IDs, a.ID) {
			continue
		}
		if filter.AssignedOnly && !s.assignedLocked(kind, a) {
			continue
		}
		cp := *a
		attrs = append(attrs, &cp)
	}

	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Name != attrs[j].Name {
			return attrs[i].Name > attrs[j].Name
		}
		return attrs[i].ID > attrs[j].ID
	})
	return attrs, nil
}

// assignedLocked reports whether one of the owner's recipes links a.
func (s *Store) assignedLocked(kind model.AttributeKind, a *model.Attribute) bool {
	for _, r := range s.recipes {
		if r.UserID != a.UserID {
			continue
		}
		if slices.Contains(linkIDs(kind, r), a.ID) {
			return true
		}
	}
	return false
}

// ============================================================================
// Recipes
// ============================================================================

// CreateRecipe inserts a recipe and its links atomically.
func (s *Store) CreateRecipe(_ context.Context, recipe *model.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[recipe.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	if err := s.checkLinksLocked(recipe.TagIDs, recipe.IngredientIDs); err != nil {
		return err
	}

	s.recipes[recipe.ID] = copyRecipe(recipe)
	s.recipeOrder = append(s.recipeOrder, recipe.ID)
	return nil
}

// GetRecipe retrieves a recipe owned by userID.
func (s *Store) GetRecipe(_ context.Context, userID, id string) (*model.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok || r.UserID != userID {
		return nil, repository.ErrRecipeNotFound
	}
	return copyRecipe(r), nil
}

// ListRecipes returns the user's recipes newest first.
func (s *Store) ListRecipes(_ context.Context, filter model.RecipeFilter) ([]*model.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipes := make([]*model.Recipe, 0)
	for _, id := range s.recipeOrder {
		r, ok := s.recipes[id]
		if !ok || r.UserID != filter.UserID {
			continue
		}
		if len(filter.TagIDs) > 0 && !containsAny(r.TagIDs, filter.TagIDs) {
			continue
		}
		if len(filter.IngredientIDs) > 0 && !containsAny(r.IngredientIDs, filter.IngredientIDs) {
			continue
		}
		recipes = append(recipes, copyRecipe(r))
	}

	sort.SliceStable(recipes, func(i, j int) bool {
		if !recipes[i].CreatedAt.Equal(recipes[j].CreatedAt) {
			return recipes[i].CreatedAt.After(recipes[j].CreatedAt)
		}
		return recipes[i].ID > recipes[j].ID
	})
	return recipes, nil
}

// UpdateRecipe replaces scalar fields and, when flagged, link sets.
func (s *Store) UpdateRecipe(_ context.Context, recipe *model.Recipe, replaceTags, replaceIngredients bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.recipes[recipe.ID]
	if !ok || cur.UserID != recipe.UserID {
		return repository.ErrRecipeNotFound
	}

	var tags, ingredients []string
	if replaceTags {
		tags = recipe.TagIDs
	}
	if replaceIngredients {
		ingredients = recipe.IngredientIDs
	}
	if err := s.checkLinksLocked(tags, ingredients); err != nil {
		return err
	}

	next := copyRecipe(cur)
	next.Title = recipe.Title
	next.TimeMinutes = recipe.TimeMinutes
	next.Price = recipe.Price
	next.Link = recipe.Link
	next.UpdatedAt = recipe.UpdatedAt
	if replaceTags {
		next.TagIDs = uniqueSorted(recipe.TagIDs)
	}
	if replaceIngredients {
		next.IngredientIDs = uniqueSorted(recipe.IngredientIDs)
	}
	s.recipes[recipe.ID] = next
	return nil
}

// SetRecipeImage stores the image key of a recipe owned by userID.
func (s *Store) SetRecipeImage(_ context.Context, userID, id, imageKey string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.UserID != userID {
		return repository.ErrRecipeNotFound
	}
	r.Image = imageKey
	r.UpdatedAt = updatedAt
	return nil
}

// DeleteRecipe removes a recipe owned by userID.
func (s *Store) DeleteRecipe(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.UserID != userID {
		return repository.ErrRecipeNotFound
	}
	delete(s.recipes, id)
	s.recipeOrder = slices.DeleteFunc(s.recipeOrder, func(v string) bool { return v == id })
	return nil
}

func (s *Store) checkLinksLocked(tagIDs, ingredientIDs []string) error {
	for _, id := range tagIDs {
		if _, ok := s.attributes[model.KindTag][id]; !ok {
			return repository.ErrAttributeNotFound
		}
	}
	for _, id := range ingredientIDs {
		if _, ok := s.attributes[model.KindIngredient][id]; !ok {
			return repository.ErrAttributeNotFound
		}
	}
	return nil
}

func linkIDs(kind model.AttributeKind, r *model.Recipe) []string {
	if kind == model.KindTag {
		return r.TagIDs
	}
	return r.IngredientIDs
}

func copyRecipe(r *model.Recipe) *model.Recipe {
	cp := *r
	cp.TagIDs = uniqueSorted(r.TagIDs)
	cp.IngredientIDs = uniqueSorted(r.IngredientIDs)
	return &cp
}

func uniqueSorted(ids []string) []string {
	out := slices.Clone(ids)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func containsAny(have, want []string) bool {
	for _, id := range want {
		if slices.Contains(have, id) {
			return true
		}
	}
	return false
}
