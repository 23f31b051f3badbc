// Package middleware provides HTTP middleware for authentication,
// operation scoping, and rate limiting.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ledgerline/backoffice/pkg/auth"
	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/contextkeys"
	"github.com/ledgerline/backoffice/pkg/httputil"
)

// AuthMiddleware authenticates requests via bearer API tokens and attaches
// the caller's identity to the request context
type AuthMiddleware struct {
	tokenManager *auth.TokenManager
	userStore    *auth.UserStore
	optional     bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenManager *auth.TokenManager, userStore *auth.UserStore, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokenManager: tokenManager,
		userStore:    userStore,
		optional:     optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		apiToken, err := m.tokenManager.ValidateToken(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		user, err := m.userStore.GetUser(r.Context(), apiToken.UserID)
		if err != nil || !user.IsActive {
			httputil.WriteUnauthorized(w, "account is not active")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), user.Identity())
		ctx = contextkeys.WithUserID(ctx, fmt.Sprintf("%d", user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity extracts the authenticated identity from the request
func GetIdentity(r *http.Request) (authz.Identity, bool) {
	identity, ok := r.Context().Value(contextkeys.IdentityKey).(authz.Identity)
	return identity, ok
}
