package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/auth"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/middleware"
	"github.com/ledgerline/backoffice/pkg/operations"
)

// AuthHandlers serves the authenticated-user surface: identity echo,
// the user's operations, and API token management.
type AuthHandlers struct {
	operations *operations.Service
	tokens     *auth.TokenManager
}

// NewAuthHandlers creates AuthHandlers.
func NewAuthHandlers(ops *operations.Service) *AuthHandlers {
	return &AuthHandlers{operations: ops}
}

// WithTokenManager attaches token management endpoints.
func (h *AuthHandlers) WithTokenManager(tokens *auth.TokenManager) *AuthHandlers {
	h.tokens = tokens
	return h
}

// RegisterRoutes registers user-scoped routes.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.Me).Methods("GET")
	router.HandleFunc("/me/operations", h.MyOperations).Methods("GET")
	if h.tokens != nil {
		router.HandleFunc("/me/tokens", h.CreateToken).Methods("POST")
		router.HandleFunc("/me/tokens", h.ListTokens).Methods("GET")
		router.HandleFunc("/me/tokens/{id}", h.RevokeToken).Methods("DELETE")
	}
}

// Me returns the caller's identity.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, identity)
}

// MyOperations lists operations the caller belongs to.
func (h *AuthHandlers) MyOperations(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	ops, err := h.operations.ListOperationsForUser(r.Context(), identity.UserID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, ops)
}

type createTokenRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type createTokenResponse struct {
	Token    *auth.APIToken `json:"token"`
	Plaintext string        `json:"plaintext"`
}

// CreateToken issues a new API token. The plaintext is returned once
// and never stored.
func (h *AuthHandlers) CreateToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req createTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteValidationError(w, "name is required")
		return
	}

	token, plaintext, err := h.tokens.CreateToken(r.Context(), identity.UserID, req.Name, req.Description, req.ExpiresAt)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, createTokenResponse{Token: token, Plaintext: plaintext})
}

// ListTokens lists the caller's tokens.
func (h *AuthHandlers) ListTokens(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	tokens, err := h.tokens.ListUserTokens(r.Context(), identity.UserID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// RevokeToken revokes one of the caller's tokens.
func (h *AuthHandlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	tokenID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.tokens.RevokeToken(r.Context(), tokenID, identity.UserID, "revoked via api"); err != nil {
		if err == auth.ErrTokenNotFound {
			httputil.WriteNotFoundError(w, "token not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
