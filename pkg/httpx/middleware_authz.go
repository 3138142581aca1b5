package httpx

import (
	"net/http"
	"slices"
)

// RequireRole lets the request through only when the session role is one of
// allowed. It must run after AuthnMiddleware.
func RequireRole(allowed ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !slices.Contains(allowed, claims.Role) {
				WriteJSON(w, http.StatusForbidden, ErrorBody{
					Error:            "forbidden",
					ErrorDescription: "insufficient role for this operation",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
