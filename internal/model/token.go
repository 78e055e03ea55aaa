package model

import "time"

// AuthToken is an opaque bearer credential bound to exactly one user.
type AuthToken struct {
	Key       string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token is older than ttl.
// A zero ttl means tokens never expire.
func (t *AuthToken) IsExpired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.After(t.CreatedAt.Add(ttl))
}

// Principal holds the authenticated caller.
// This is injected into the request context by auth middleware.
type Principal struct {
	UserID      string
	Email       string
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool
}
