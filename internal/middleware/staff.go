package middleware

import (
	"net/http"

	"github.com/recipebox/recipebox/internal/auth"
)

// RequireStaff returns middleware that admits only staff principals.
// Must be applied after Auth middleware.
func RequireStaff() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !p.IsStaff && !p.IsSuperuser {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
