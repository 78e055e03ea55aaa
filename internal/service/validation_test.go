package service

import (
	"errors"
	"testing"

	"github.com/recipebox/recipebox/internal/model"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"test1@EXAMPLE.com", "test1@example.com"},
		{"Test2@Example.com", "test2@example.com"},
		{"TEST3@EXAMPLE.COM", "test3@example.com"},
		{"  test4@example.COM ", "test4@example.com"},
		{"ｕｓｅｒ@example.com", "user@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePriceField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    model.Price
		wantMsg string
	}{
		{"5", 500, ""},
		{"5.5", 550, ""},
		{"999.99", 99999, ""},
		{"0.00", 0, ""},
		{"-2", 0, msgPriceNegative},
		{"-x", 0, msgPriceInvalid},
		{"1.234", 0, msgPriceRange},
		{"1000", 0, msgPriceRange},
		{"five", 0, msgPriceInvalid},
		{"", 0, msgPriceInvalid},
	}

	for _, tt := range tests {
		got, msg := parsePriceField(tt.in)
		if msg != tt.wantMsg {
			t.Errorf("parsePriceField(%q) msg = %q, want %q", tt.in, msg, tt.wantMsg)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePriceField(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	got := dedupe([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("dedupe = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupe = %v, want %v", got, want)
		}
	}

	if out := dedupe(nil); out == nil || len(out) != 0 {
		t.Errorf("dedupe(nil) = %#v, want empty non-nil slice", out)
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	var empty ValidationError
	if empty.OrNil() != nil {
		t.Error("empty ValidationError should be nil")
	}

	verr := NewValidationError("title", "This field is required.")
	verr.Add("price", "A valid number is required.")
	if !verr.Has("title") || verr.Has("link") {
		t.Errorf("Has mismatch: %v", verr.Fields)
	}

	want := "validation failed: price: A valid number is required.; title: This field is required."
	if verr.Error() != want {
		t.Errorf("Error() = %q, want %q", verr.Error(), want)
	}

	var target *ValidationError
	if !errors.As(verr.OrNil(), &target) {
		t.Error("OrNil should return the ValidationError")
	}
}

func TestAuthErrorMatchesUnauthenticated(t *testing.T) {
	t.Parallel()

	err := authFailure("expired")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Error("AuthError should match ErrUnauthenticated")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("AuthError should not match ErrInvalidCredentials")
	}
}
