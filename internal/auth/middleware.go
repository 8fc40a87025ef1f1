package auth

import (
	"net/http"
	"strings"

	"go.crudcast.dev/internal/api"
	"go.crudcast.dev/internal/crud"
)

// Middleware validates the Authorization bearer token and places the
// principal's roles into the request context for the routers downstream.
// Requests without a valid token are rejected before any handler runs.
func Middleware(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				api.WriteUnauthorized(w, "missing bearer token")
				return
			}
			claims, err := tokens.Validate(token)
			if err != nil {
				api.WriteUnauthorized(w, "invalid bearer token")
				return
			}
			ctx := crud.WithRoles(r.Context(), claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional validates the bearer token when present but lets anonymous
// requests through with no roles attached. Useful for routes whose security
// schema already denies anonymous access per operation.
func Optional(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if claims, err := tokens.Validate(token); err == nil {
					r = r.WithContext(crud.WithRoles(r.Context(), claims.Roles))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
