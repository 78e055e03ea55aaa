package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/recipebox/recipebox/internal/model"
)

// Common errors for attribute repository operations.
var (
	ErrUnknownKind       = errors.New("unknown attribute kind")
	ErrAttributeNotFound = errors.New("attribute not found")
)

// attributeTables names the storage of one attribute kind.
type attributeTables struct {
	table     string // tags | ingredients
	linkTable string // recipe_tags | recipe_ingredients
	linkCol   string // tag_id | ingredient_id
}

var kindTables = map[model.AttributeKind]attributeTables{
	model.KindTag:        {table: "tags", linkTable: "recipe_tags", linkCol: "tag_id"},
	model.KindIngredient: {table: "ingredients", linkTable: "recipe_ingredients", linkCol: "ingredient_id"},
}

func tablesFor(kind model.AttributeKind) (attributeTables, error) {
	t, ok := kindTables[kind]
	if !ok {
		return attributeTables{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return t, nil
}

// CreateAttribute inserts a tag or ingredient.
func (r *Repository) CreateAttribute(ctx context.Context, kind model.AttributeKind, attr *model.Attribute) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	query := `INSERT INTO ` + t.table + ` (id, name, user_id, created_at) VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Exec(ctx, query, attr.ID, attr.Name, attr.UserID, attr.CreatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create %s: %w", kind, err)
	}

	attr.Kind = kind
	return nil
}

// ListAttributes returns attributes of one kind ordered by name descending.
func (r *Repository) ListAttributes(ctx context.Context, kind model.AttributeKind, filter model.AttributeFilter) ([]*model.Attribute, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.UserID != "" {
		conds = append(conds, "a.user_id = "+arg(filter.UserID))
	}
	if filter.IDs != nil {
		conds = append(conds, "a.id = ANY("+arg(pq.Array(filter.IDs))+"::varchar[])")
	}
	if filter.AssignedOnly {
		// Each attribute appears once however many recipes reference it.
		conds = append(conds, `EXISTS (
			SELECT 1 FROM `+t.linkTable+` l
			JOIN recipes rc ON rc.id = l.recipe_id
			WHERE l.`+t.linkCol+` = a.id AND rc.user_id = a.user_id
		)`)
	}

	query := `SELECT a.id, a.name, a.user_id, a.created_at FROM ` + t.table + ` a`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY a.name DESC, a.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	defer rows.Close()

	attrs := make([]*model.Attribute, 0)
	for rows.Next() {
		a := &model.Attribute{Kind: kind}
		if err := rows.Scan(&a.ID, &a.Name, &a.UserID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		attrs = append(attrs, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", t.table, err)
	}

	return attrs, nil
}
