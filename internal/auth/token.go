package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TokenLen is the length of a token key: 20 random bytes, hex encoded.
const TokenLen = 40

// Authorization header schemes accepted for token auth.
const (
	SchemeToken  = "Token"
	SchemeBearer = "Bearer"
)

var (
	// ErrInvalidTokenFormat indicates the token format is invalid.
	ErrInvalidTokenFormat = errors.New("invalid token format")
	// tokenFormatRegex validates the token format.
	tokenFormatRegex = regexp.MustCompile(`^[a-f0-9]{40}$`)
)

// GenerateToken creates a new opaque token key.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidateTokenFormat checks if the key matches the expected format.
func ValidateTokenFormat(key string) bool {
	return tokenFormatRegex.MatchString(key)
}

// ParseAuthorization extracts the token key from an Authorization header
// value. Both "Token <key>" and "Bearer <key>" are accepted; the scheme is
// case-insensitive.
func ParseAuthorization(header string) (string, error) {
	scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return "", ErrInvalidTokenFormat
	}
	if !strings.EqualFold(scheme, SchemeToken) && !strings.EqualFold(scheme, SchemeBearer) {
		return "", ErrInvalidTokenFormat
	}

	key = strings.TrimSpace(key)
	if !ValidateTokenFormat(key) {
		return "", ErrInvalidTokenFormat
	}
	return key, nil
}
