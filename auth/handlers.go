package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinbrief/clinbrief/idgen"
)

const bcryptCost = 12

// Config holds the secrets and cookie policy for the auth handlers.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	SecureCookies bool
}

// Handler serves the /auth routes: signup, login, logout, refresh and the
// current-identity endpoint.
type Handler struct {
	users  *UserStore
	cfg    Config
	logger *slog.Logger
	newID  idgen.Generator
}

func NewHandler(users *UserStore, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		users:  users,
		cfg:    cfg,
		logger: logger,
		newID:  idgen.Prefixed("usr_", idgen.Default),
	}
}

// Mount registers the auth routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/", h.info)
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/refresh", h.refresh)
	r.With(Require).Get("/me", h.me)
}

func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoints": []string{"POST /signup", "POST /login", "POST /logout", "POST /refresh", "GET /me"},
	})
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || len(req.Password) < 8 {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}

	existing, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.serverError(w, "signup lookup", err)
		return
	}
	if existing != nil {
		writeMessage(w, http.StatusConflict, "Email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		h.serverError(w, "hash password", err)
		return
	}

	u := &User{
		ID:           h.newID(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.CreateUser(r.Context(), u); err != nil {
		h.serverError(w, "create user", err)
		return
	}

	h.logger.Info("user signed up", "user_id", u.ID)
	h.issueTokens(w, http.StatusCreated, u)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.serverError(w, "login lookup", err)
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.logger.Info("user logged in", "user_id", u.ID)
	h.issueTokens(w, http.StatusOK, u)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ClearTokenCookie(w, AccessCookie)
	ClearTokenCookie(w, RefreshCookie)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p := FromContext(r.Context())
	u, err := h.users.GetByID(r.Context(), p.ID)
	if err != nil {
		h.serverError(w, "me lookup", err)
		return
	}
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// refresh exchanges a valid refresh token (cookie or bearer) for a fresh
// token pair.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var tokenStr string
	if hdr := r.Header.Get("Authorization"); len(hdr) > 7 && hdr[:7] == "Bearer " {
		tokenStr = hdr[7:]
	}
	if tokenStr == "" {
		if c, err := r.Cookie(RefreshCookie); err == nil {
			tokenStr = c.Value
		}
	}
	if tokenStr == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	claims, err := ValidateToken(h.cfg.RefreshSecret, tokenStr)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	u, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		h.serverError(w, "refresh lookup", err)
		return
	}
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	h.issueTokens(w, http.StatusOK, u)
}

// issueTokens signs an access and refresh token pair, sets both cookies and
// returns the tokens in the body for header-based clients.
func (h *Handler) issueTokens(w http.ResponseWriter, status int, u *User) {
	p := Principal{ID: u.ID, Email: u.Email, Name: u.Name}

	access, err := GenerateToken(h.cfg.AccessSecret, p, AccessTTL)
	if err != nil {
		h.serverError(w, "sign access token", err)
		return
	}
	refresh, err := GenerateToken(h.cfg.RefreshSecret, p, RefreshTTL)
	if err != nil {
		h.serverError(w, "sign refresh token", err)
		return
	}

	SetTokenCookie(w, AccessCookie, access, int(AccessTTL.Seconds()), h.cfg.SecureCookies)
	SetTokenCookie(w, RefreshCookie, refresh, int(RefreshTTL.Seconds()), h.cfg.SecureCookies)
	writeJSON(w, status, map[string]any{
		"user":         u,
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("auth handler failed", "op", op, "error", err)
	writeMessage(w, http.StatusInternalServerError, "Server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
