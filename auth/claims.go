// Package auth provides JWT-based identity for the API: token issuing and
// validation, optional identity resolution middleware, and the local user
// account store.
package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT claims structure shared by access and refresh tokens.
// It embeds jwt.RegisteredClaims for the standard fields (exp, iat).
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Principal is the authenticated identity carried in request context.
type Principal struct {
	ID    string
	Email string
	Name  string
}
