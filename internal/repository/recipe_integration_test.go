//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/testutil"
)

// ============================================================================
// Attribute and Recipe Repository Integration Tests
// ============================================================================

func createTestAttribute(t *testing.T, ctx context.Context, repo *Repository, kind model.AttributeKind, userID, name string) *model.Attribute {
	t.Helper()
	attr := testutil.NewTestAttribute(t, kind, userID, name)
	if err := repo.CreateAttribute(ctx, kind, attr); err != nil {
		t.Fatalf("CreateAttribute failed: %v", err)
	}
	return attr
}

func attributeNames(attrs []*model.Attribute) []string {
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Name)
	}
	return names
}

func TestIntegrationAttributeRepository_ListScopedAndOrdered(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createTestUser(t, ctx, repo, "attr")
	other := createTestUser(t, ctx, repo, "attr-other")

	createTestAttribute(t, ctx, repo, model.KindTag, user.ID, "Dessert")
	createTestAttribute(t, ctx, repo, model.KindTag, user.ID, "Vegan")
	createTestAttribute(t, ctx, repo, model.KindTag, other.ID, "Fruity")
	createTestAttribute(t, ctx, repo, model.KindIngredient, user.ID, "Salt")

	tags, err := repo.ListAttributes(ctx, model.KindTag, model.AttributeFilter{UserID: user.ID})
	if err != nil {
		t.Fatalf("ListAttributes failed: %v", err)
	}

	got := attributeNames(tags)
	if len(got) != 2 || got[0] != "Vegan" || got[1] != "Dessert" {
		t.Errorf("expected [Vegan Dessert], got %v", got)
	}
}

func TestIntegrationAttributeRepository_AssignedOnlyDistinct(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createTestUser(t, ctx, repo, "assigned")

	eggs := createTestAttribute(t, ctx, repo, model.KindIngredient, user.ID, "Eggs")
	createTestAttribute(t, ctx, repo, model.KindIngredient, user.ID, "Lentils")

	for _, title := range []string{"Eggs Benedict", "Herb Eggs"} {
		recipe := testutil.NewTestRecipe(t, user.ID, title)
		recipe.IngredientIDs = []string{eggs.ID}
		if err := repo.CreateRecipe(ctx, recipe); err != nil {
			t.Fatalf("CreateRecipe failed: %v", err)
		}
	}

	assigned, err := repo.ListAttributes(ctx, model.KindIngredient, model.AttributeFilter{UserID: user.ID, AssignedOnly: true})
	if err != nil {
		t.Fatalf("ListAttributes failed: %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != eggs.ID {
		t.Errorf("expected only Eggs once, got %v", attributeNames(assigned))
	}
}

func TestIntegrationAttributeRepository_ByIDsAnyOwner(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createTestUser(t, ctx, repo, "ids")
	other := createTestUser(t, ctx, repo, "ids-other")

	mine := createTestAttribute(t, ctx, repo, model.KindTag, user.ID, "Mine")
	theirs := createTestAttribute(t, ctx, repo, model.KindTag, other.ID, "Theirs")

	found, err := repo.ListAttributes(ctx, model.KindTag, model.AttributeFilter{
		IDs: []string{mine.ID, theirs.ID, testutil.UniqueID()},
	})
	if err != nil {
		t.Fatalf("ListAttributes failed: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 attributes, got %v", attributeNames(found))
	}
}

func TestIntegrationRecipeRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createTestUser(t, ctx, repo, "recipe")
	tag := createTestAttribute(t, ctx, repo, model.KindTag, user.ID, "Breakfast")
	ing := createTestAttribute(t, ctx, repo, model.KindIngredient, user.ID, "Eggs")

	recipe := testutil.NewTestRecipe(t, user.ID, "Omelette")
	recipe.Price = 999
	recipe.Link = "https://example.com/omelette"
	recipe.TagIDs = []string{tag.ID}
	recipe.IngredientIDs = []string{ing.ID}

	if err := repo.CreateRecipe(ctx, recipe); err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}

	got, err := repo.GetRecipe(ctx, user.ID, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe failed: %v", err)
	}

	if got.Price.String() != "9.99" {
		t.Errorf("Price mismatch: got %s", got.Price)
	}
	if got.Link != recipe.Link {
		t.Errorf("Link mismatch: got %q", got.Link)
	}
	if len(got.TagIDs) != 1 || got.TagIDs[0] != tag.ID {
		t.Errorf("TagIDs mismatch: got %v", got.TagIDs)
	}
	if len(got.IngredientIDs) != 1 || got.IngredientIDs[0] != ing.ID {
		t.Errorf("IngredientIDs mismatch: got %v", got.IngredientIDs)
	}
}

func TestIntegrationRecipeRepository_CreateRollsBackOnMissingLink(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createTestUser(t, ctx, repo, "rollback")

	recipe := testutil.NewTestRecipe(t, user.ID, "Ghost")
	recipe.TagIDs = []string{testutil.UniqueID()}

	if err := repo.CreateRecipe(ctx, recipe); !errors.Is(err, ErrAttributeNotFound) {
		t.Fatalf("Expected ErrAttributeNotFound, got: %v", err)
	}

	if _, err := repo.GetRecipe(ctx, user.ID, recipe.ID); !errors.Is(err, ErrRecipeNotFound) {
		t.Errorf("recipe should not exist after rollback, got: %v", err)
	}
}

func TestIntegrationRecipeRepository_OwnerScoping(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	owner := createTestUser(t, ctx, repo, "owner")
	intruder := createTestUser(t, ctx, repo, "intruder")

	recipe := testutil.NewTestRecipe(t, owner.ID, "Private")
	if err := repo.CreateRecipe(ctx, recipe); err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}

	if _, err := repo.GetRecipe(ctx, intruder.ID, recipe.ID); !errors.Is(err, ErrRecipeNotFound) {
		t.Errorf("GetRecipe: expected ErrRecipeNotFound, got %v", err)
	}

	hijack := *recipe
	hijack.UserID = intruder.ID
	if err := repo.UpdateRecipe(ctx, &hijack, false, false); !errors.Is(err, ErrRecipeNotFound) {
		t.Errorf("UpdateRecipe: expected ErrRecipeNotFound, got %v", err)
	}
	if err := repo.DeleteRecipe(ctx, intruder.ID, recipe.ID); !errors.Is(err, ErrRecipeNotFound) {
		t.Errorf("DeleteRecipe: expected ErrRecipeNotFound, got %v", err)
	}
	if err := repo.SetRecipeImage(ctx, intruder.ID, recipe.ID, "x.png", time.Now()); !errors.Is(err, ErrRecipeNotFound) {
		t.Errorf("SetRecipeImage: expected ErrRecipeNotFound, got %v", err)
	}

	list, err := repo.ListRecipes(ctx, model.RecipeFilter{UserID: intruder.ID})
	if err != nil {
		t.Fatalf("ListRecipes failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("intruder should see no recipes, got %d", len(list))
	}
}

func TestIntegrationRecipeRepository_UpdateReplacesLinks(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createTestUser(t, ctx, repo, "update")
	breakfast := createTestAttribute(t, ctx, repo, model.KindTag, user.ID, "Breakfast")
	lunch := createTestAttribute(t, ctx, repo, model.KindTag, user.ID, "Lunch")
	salt := createTestAttribute(t, ctx, repo, model.KindIngredient, user.ID, "Salt")

	recipe := testutil.NewTestRecipe(t, user.ID, "Toast")
	recipe.TagIDs = []string{breakfast.ID}
	recipe.IngredientIDs = []string{salt.ID}
	if err := repo.CreateRecipe(ctx, recipe); err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}

	recipe.Title = "Cheese Toast"
	recipe.TagIDs = []string{lunch.ID}
	recipe.IngredientIDs = nil
	if err := repo.UpdateRecipe(ctx, recipe, true, false); err != nil {
		t.Fatalf("UpdateRecipe failed: %v", err)
	}

	got, err := repo.GetRecipe(ctx, user.ID, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe failed: %v", err)
	}
	if got.Title != "Cheese Toast" {
		t.Errorf("Title mismatch: got %q", got.Title)
	}
	if len(got.TagIDs) != 1 || got.TagIDs[0] != lunch.ID {
		t.Errorf("tags should be replaced, got %v", got.TagIDs)
	}
	if len(got.IngredientIDs) != 1 || got.IngredientIDs[0] != salt.ID {
		t.Errorf("ingredients should be untouched, got %v", got.IngredientIDs)
	}
}

func TestIntegrationRecipeRepository_ListFilterAndOrder(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createTestUser(t, ctx, repo, "filter")
	vegan := createTestAttribute(t, ctx, repo, model.KindTag, user.ID, "Vegan")
	tofu := createTestAttribute(t, ctx, repo, model.KindIngredient, user.ID, "Tofu")

	base := time.Now().UTC().Truncate(time.Microsecond)

	curry := testutil.NewTestRecipe(t, user.ID, "Curry")
	curry.CreatedAt = base
	curry.TagIDs = []string{vegan.ID}

	stir := testutil.NewTestRecipe(t, user.ID, "Stir fry")
	stir.CreatedAt = base.Add(time.Second)
	stir.IngredientIDs = []string{tofu.ID}

	plain := testutil.NewTestRecipe(t, user.ID, "Plain")
	plain.CreatedAt = base.Add(2 * time.Second)

	for _, r := range []*model.Recipe{curry, stir, plain} {
		if err := repo.CreateRecipe(ctx, r); err != nil {
			t.Fatalf("CreateRecipe failed: %v", err)
		}
	}

	all, err := repo.ListRecipes(ctx, model.RecipeFilter{UserID: user.ID})
	if err != nil {
		t.Fatalf("ListRecipes failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != plain.ID || all[2].ID != curry.ID {
		t.Errorf("expected newest first")
	}

	byTag, err := repo.ListRecipes(ctx, model.RecipeFilter{UserID: user.ID, TagIDs: []string{vegan.ID}})
	if err != nil {
		t.Fatalf("ListRecipes by tag failed: %v", err)
	}
	if len(byTag) != 1 || byTag[0].ID != curry.ID {
		t.Errorf("tag filter should return only Curry")
	}

	byIngredient, err := repo.ListRecipes(ctx, model.RecipeFilter{UserID: user.ID, IngredientIDs: []string{tofu.ID}})
	if err != nil {
		t.Fatalf("ListRecipes by ingredient failed: %v", err)
	}
	if len(byIngredient) != 1 || byIngredient[0].ID != stir.ID {
		t.Errorf("ingredient filter should return only Stir fry")
	}
}

func TestIntegrationRecipeRepository_DeleteCascadesLinks(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := createTestUser(t, ctx, repo, "delete")
	tag := createTestAttribute(t, ctx, repo, model.KindTag, user.ID, "Soup")

	recipe := testutil.NewTestRecipe(t, user.ID, "Broth")
	recipe.TagIDs = []string{tag.ID}
	if err := repo.CreateRecipe(ctx, recipe); err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}

	if err := repo.DeleteRecipe(ctx, user.ID, recipe.ID); err != nil {
		t.Fatalf("DeleteRecipe failed: %v", err)
	}

	assigned, err := repo.ListAttributes(ctx, model.KindTag, model.AttributeFilter{UserID: user.ID, AssignedOnly: true})
	if err != nil {
		t.Fatalf("ListAttributes failed: %v", err)
	}
	if len(assigned) != 0 {
		t.Errorf("no tag should remain assigned, got %v", attributeNames(assigned))
	}

	// The tag itself survives the recipe.
	tags, err := repo.ListAttributes(ctx, model.KindTag, model.AttributeFilter{UserID: user.ID})
	if err != nil {
		t.Fatalf("ListAttributes failed: %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("tag should survive recipe deletion, got %d", len(tags))
	}
}

func TestIntegrationRepository_WithTxRollsBack(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, testutil.UniqueEmail("tx"))
	sentinel := errors.New("abort")

	err := repo.WithTx(ctx, func(tx *Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if _, err := repo.GetUserByID(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("user should not exist after rollback, got: %v", err)
	}
}
