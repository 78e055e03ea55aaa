package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/recipebox/recipebox/internal/model"
)

// ErrRecipeNotFound is returned when a recipe does not exist or is owned by another user.
var ErrRecipeNotFound = errors.New("recipe not found")

const recipeSelect = `
	SELECT r.id, r.user_id, r.title, r.time_minutes, r.price::text, r.link, r.image,
	       r.created_at, r.updated_at,
	       COALESCE((SELECT array_agg(rt.tag_id ORDER BY rt.tag_id)
	                 FROM recipe_tags rt WHERE rt.recipe_id = r.id), '{}') AS tag_ids,
	       COALESCE((SELECT array_agg(ri.ingredient_id ORDER BY ri.ingredient_id)
	                 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id), '{}') AS ingredient_ids
	FROM recipes r
`

// CreateRecipe inserts a recipe and its tag and ingredient links in one transaction.
func (r *Repository) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		query := `
			INSERT INTO recipes (id, user_id, title, time_minutes, price, link, image, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
		`

		_, err := tx.db.Exec(ctx, query,
			recipe.ID,
			recipe.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.String(),
			recipe.Link,
			recipe.Image,
			recipe.CreatedAt,
			recipe.UpdatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		if err := tx.insertLinks(ctx, model.KindTag, recipe.ID, recipe.TagIDs); err != nil {
			return err
		}
		return tx.insertLinks(ctx, model.KindIngredient, recipe.ID, recipe.IngredientIDs)
	})
}

// GetRecipe retrieves a recipe owned by userID.
func (r *Repository) GetRecipe(ctx context.Context, userID, id string) (*model.Recipe, error) {
	query := recipeSelect + ` WHERE r.id = $1 AND r.user_id = $2`

	recipe, err := scanRecipe(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	return recipe, nil
}

// ListRecipes returns the user's recipes, newest first.
// Tag and ingredient filters each match recipes linked to any of the given ids.
func (r *Repository) ListRecipes(ctx context.Context, filter model.RecipeFilter) ([]*model.Recipe, error) {
	args := []any{filter.UserID}
	query := recipeSelect + ` WHERE r.user_id = $1`

	if len(filter.TagIDs) > 0 {
		args = append(args, pq.Array(filter.TagIDs))
		query += ` AND EXISTS (SELECT 1 FROM recipe_tags ft
			WHERE ft.recipe_id = r.id AND ft.tag_id = ANY($` + strconv.Itoa(len(args)) + `::varchar[]))`
	}
	if len(filter.IngredientIDs) > 0 {
		args = append(args, pq.Array(filter.IngredientIDs))
		query += ` AND EXISTS (SELECT 1 FROM recipe_ingredients fi
			WHERE fi.recipe_id = r.id AND fi.ingredient_id = ANY($` + strconv.Itoa(len(args)) + `::varchar[]))`
	}

	query += ` ORDER BY r.created_at DESC, r.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]*model.Recipe, 0)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipes: %w", err)
	}

	return recipes, nil
}

// UpdateRecipe persists the scalar fields of a recipe owned by recipe.UserID.
// Link sets are replaced only when the matching replace flag is set.
func (r *Repository) UpdateRecipe(ctx context.Context, recipe *model.Recipe, replaceTags, replaceIngredients bool) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		query := `
			UPDATE recipes
			SET title = $3, time_minutes = $4, price = $5::numeric, link = $6, updated_at = $7
			WHERE id = $1 AND user_id = $2
		`

		tag, err := tx.db.Exec(ctx, query,
			recipe.ID,
			recipe.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.String(),
			recipe.Link,
			recipe.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRecipeNotFound
		}

		if replaceTags {
			if err := tx.replaceLinks(ctx, model.KindTag, recipe.ID, recipe.TagIDs); err != nil {
				return err
			}
		}
		if replaceIngredients {
			if err := tx.replaceLinks(ctx, model.KindIngredient, recipe.ID, recipe.IngredientIDs); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetRecipeImage stores the image key of a recipe owned by userID.
func (r *Repository) SetRecipeImage(ctx context.Context, userID, id, imageKey string, updatedAt time.Time) error {
	query := `UPDATE recipes SET image = $3, updated_at = $4 WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, userID, imageKey, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to set recipe image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecipeNotFound
	}
	return nil
}

// DeleteRecipe removes a recipe owned by userID. Links cascade.
func (r *Repository) DeleteRecipe(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recipes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecipeNotFound
	}
	return nil
}

func (r *Repository) replaceLinks(ctx context.Context, kind model.AttributeKind, recipeID string, ids []string) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM `+t.linkTable+` WHERE recipe_id = $1`, recipeID); err != nil {
		return fmt.Errorf("failed to clear %s links: %w", kind, err)
	}
	return r.insertLinks(ctx, kind, recipeID, ids)
}

func (r *Repository) insertLinks(ctx context.Context, kind model.AttributeKind, recipeID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ` + t.linkTable + ` (recipe_id, ` + t.linkCol + `)
		SELECT $1, unnest($2::varchar[])
		ON CONFLICT DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, recipeID, pq.Array(ids)); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s (%s)", ErrAttributeNotFound, kind, constraintName(err))
		}
		return fmt.Errorf("failed to link %s: %w", kind, err)
	}
	return nil
}

func scanRecipe(row pgx.Row) (*model.Recipe, error) {
	var (
		recipe model.Recipe
		price  string
	)

	err := row.Scan(
		&recipe.ID,
		&recipe.UserID,
		&recipe.Title,
		&recipe.TimeMinutes,
		&price,
		&recipe.Link,
		&recipe.Image,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
		pq.Array(&recipe.TagIDs),
		pq.Array(&recipe.IngredientIDs),
	)
	if err != nil {
		return nil, err
	}

	recipe.Price, err = model.ParsePrice(price)
	if err != nil {
		return nil, fmt.Errorf("stored price %q: %w", price, err)
	}

	if recipe.TagIDs == nil {
		recipe.TagIDs = []string{}
	}
	if recipe.IngredientIDs == nil {
		recipe.IngredientIDs = []string{}
	}

	return &recipe, nil
}
