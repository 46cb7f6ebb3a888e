package auth

import "net/http"

const (
	// AccessCookie holds the short-lived access token.
	AccessCookie = "cb_access"

	// RefreshCookie holds the long-lived refresh token.
	RefreshCookie = "cb_refresh"
)

// SetTokenCookie writes a JWT as an HttpOnly cookie.
func SetTokenCookie(w http.ResponseWriter, name, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	})
}

// ClearTokenCookie removes a JWT cookie.
func ClearTokenCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
