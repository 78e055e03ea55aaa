package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/recipebox/recipebox/internal/model"
)

// Common errors for token repository operations.
var (
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExists means the user already holds a token.
	ErrTokenExists = errors.New("token already exists")
)

// CreateToken stores a new token. Each user holds at most one token.
func (r *Repository) CreateToken(ctx context.Context, token *model.AuthToken) error {
	query := `
		INSERT INTO auth_tokens (key, user_id, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Exec(ctx, query, token.Key, token.UserID, token.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTokenExists
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create token: %w", err)
	}

	return nil
}

// GetTokenByKey retrieves a token by its key.
func (r *Repository) GetTokenByKey(ctx context.Context, key string) (*model.AuthToken, error) {
	query := `SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1`

	var token model.AuthToken
	err := r.db.QueryRow(ctx, query, key).Scan(&token.Key, &token.UserID, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &token, nil
}

// GetTokenByUserID retrieves the token held by a user.
func (r *Repository) GetTokenByUserID(ctx context.Context, userID string) (*model.AuthToken, error) {
	query := `SELECT key, user_id, created_at FROM auth_tokens WHERE user_id = $1`

	var token model.AuthToken
	err := r.db.QueryRow(ctx, query, userID).Scan(&token.Key, &token.UserID, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token by user: %w", err)
	}

	return &token, nil
}

// DeleteTokensByUserID removes every token held by a user.
// Deleting when no token exists is not an error.
func (r *Repository) DeleteTokensByUserID(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}
