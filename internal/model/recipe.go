package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Price bounds mirror the NUMERIC(5,2) column.
const (
	PriceMaxDigits     = 5
	PriceDecimalPlaces = 2
	maxPriceCents      = 99999
)

var (
	// ErrInvalidPrice indicates the price is not a valid decimal.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrPriceOutOfRange indicates the price does not fit NUMERIC(5,2).
	ErrPriceOutOfRange = errors.New("price out of range")
)

// Price is a non-negative amount with two decimal places, held in cents.
type Price int64

// ParsePrice parses a decimal string such as "5", "5.5" or "5.00".
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidPrice
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !isDigits(whole) {
		return 0, ErrInvalidPrice
	}
	if hasFrac && (frac == "" || !isDigits(frac)) {
		return 0, ErrInvalidPrice
	}
	if len(frac) > PriceDecimalPlaces {
		return 0, ErrPriceOutOfRange
	}

	whole = strings.TrimLeft(whole, "0")
	if len(whole) > PriceMaxDigits-PriceDecimalPlaces {
		return 0, ErrPriceOutOfRange
	}

	for len(frac) < PriceDecimalPlaces {
		frac += "0"
	}

	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	if cents > maxPriceCents {
		return 0, ErrPriceOutOfRange
	}

	return Price(cents), nil
}

// String formats the price with exactly two decimals.
func (p Price) String() string {
	return fmt.Sprintf("%d.%02d", int64(p)/100, int64(p)%100)
}

// MarshalJSON encodes the price as a decimal string.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Recipe is a user-owned recipe referencing tags and ingredients by id.
type Recipe struct {
	ID            string    `json:"id"`
	UserID        string    `json:"-"`
	Title         string    `json:"title"`
	TimeMinutes   int       `json:"time_minutes"`
	Price         Price     `json:"price"`
	Link          string    `json:"link"`
	Image         string    `json:"-"` // Storage key, empty when absent
	TagIDs        []string  `json:"tags"`
	IngredientIDs []string  `json:"ingredients"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasImage returns true if an image is attached.
func (r *Recipe) HasImage() bool {
	return r.Image != ""
}

// RecipeFilter narrows a recipe listing. UserID is always required.
type RecipeFilter struct {
	UserID        string
	TagIDs        []string
	IngredientIDs []string
}
