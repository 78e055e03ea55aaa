package cache

import (
	"testing"
)

func TestKeyBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"token key", tokenKey("abc123"), "auth:token:abc123"},
		{"user index", userIndexKey("01HZX"), "auth:user:01HZX"},
		{"rate limit", rateLimitKey("01HZX"), "ratelimit:user:01HZX"},
		{"empty token", tokenKey(""), "auth:token:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestKeyBuilders_NoCollision(t *testing.T) {
	t.Parallel()

	// A user ID must never produce the same key as a token hash.
	if tokenKey("x") == userIndexKey("x") {
		t.Error("token and user index keys collide")
	}
	if tokenKey("x")+negSuffix == tokenKey("x") {
		t.Error("negative suffix must change the key")
	}
}
