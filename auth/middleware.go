package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

type principalKey struct{}

// Optional returns middleware that resolves the caller's identity from the
// Authorization Bearer header (preferred) or the access cookie. Resolution
// happens exactly once per request; invalid or missing tokens are silently
// ignored. Use Require on routes that must reject anonymous callers.
func Optional(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string

			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tokenStr = h[7:]
			}
			if tokenStr == "" {
				if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
					tokenStr = c.Value
				}
			}
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ValidateToken(secret, tokenStr)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			p := &Principal{ID: claims.UserID, Email: claims.Email, Name: claims.Name}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}

// FromContext returns the authenticated principal, or nil for anonymous
// requests.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// Require rejects requests whose context carries no principal. It composes
// with Optional: the token was already resolved, Require only checks the
// outcome.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
