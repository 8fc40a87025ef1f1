package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.crudcast.dev/internal/api"
	"go.crudcast.dev/internal/crud"
)

// UserLookup resolves a user entity by username. It returns nil with no
// error when the user does not exist.
type UserLookup func(ctx context.Context, username string) (crud.Entity, error)

// Handler serves the local login endpoint for the demo account service.
type Handler struct {
	users     UserLookup
	passwords *PasswordService
	tokens    *TokenService
}

func NewHandler(users UserLookup, passwords *PasswordService, tokens *TokenService) *Handler {
	return &Handler{users: users, passwords: passwords, tokens: tokens}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string   `json:"token"`
	Roles []string `json:"roles"`
}

// Login authenticates a username/password pair and returns a bearer token
// carrying the user's roles.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		api.WriteBadRequest(w, "username and password are required")
		return
	}

	user, err := h.users(r.Context(), req.Username)
	if err != nil {
		slog.Error("User lookup failed", "username", req.Username, "error", err)
		api.WriteInternalError(w, "Internal server error")
		return
	}
	if user == nil {
		api.WriteUnauthorized(w, "invalid credentials")
		return
	}

	hash, _ := user["password"].(string)
	if err := h.passwords.VerifyPassword(req.Password, hash); err != nil {
		api.WriteUnauthorized(w, "invalid credentials")
		return
	}

	roles := entityRoles(user)
	token, err := h.tokens.Issue(req.Username, roles)
	if err != nil {
		slog.Error("Token issuance failed", "username", req.Username, "error", err)
		api.WriteInternalError(w, "Internal server error")
		return
	}

	api.WriteJSON(w, http.StatusOK, loginResponse{Token: token, Roles: roles})
}

func entityRoles(user crud.Entity) []string {
	raw, ok := user["roles"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	}
	return nil
}
