// Package middleware provides reusable HTTP middleware for the API server.
package middleware

import (
	"net/http"

	"github.com/galeri/service/internal/auth"
	"github.com/galeri/service/internal/response"
)

// RequireAuth returns middleware that validates the signed access_token
// cookie and injects the caller's Identity into the request context.
//
// A missing cookie is "not authenticated" (401); a cookie that fails
// signature or expiry checks is "token is not valid" (403).
func RequireAuth(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.CookieName)
			if err != nil || cookie.Value == "" {
				response.Unauthorized(w, "you need to log in")
				return
			}

			id, err := auth.ParseToken(jwtSecret, cookie.Value)
			if err != nil {
				response.Forbidden(w, "token is not valid")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
