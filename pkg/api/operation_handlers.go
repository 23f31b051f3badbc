package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/audit"
	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/middleware"
	"github.com/ledgerline/backoffice/pkg/operations"
)

// OperationHandlers serves operation CRUD and the team surface. Team
// routes are gated on role alone: permission overrides never unlock
// membership management.
type OperationHandlers struct {
	service  *operations.Service
	guard    *authz.Middleware
	recorder *audit.Recorder
}

// NewOperationHandlers creates OperationHandlers.
func NewOperationHandlers(service *operations.Service, guard *authz.Middleware, recorder *audit.Recorder) *OperationHandlers {
	return &OperationHandlers{service: service, guard: guard, recorder: recorder}
}

// RegisterRoutes registers unscoped operation routes.
func (h *OperationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/operations", h.CreateOperation).Methods("POST")
	router.HandleFunc("/invitations/{token}/accept", h.AcceptInvitation).Methods("POST")
}

// RegisterScopedRoutes registers routes under /operations/{operation_id}.
func (h *OperationHandlers) RegisterScopedRoutes(router *mux.Router) {
	view := h.guard.RequireAccess(authz.ModuleSettings, authz.ActionView)
	edit := h.guard.RequireAccess(authz.ModuleSettings, authz.ActionEdit)
	team := h.guard.RequireTeamManagement()

	router.Handle("", view(http.HandlerFunc(h.GetOperation))).Methods("GET")
	router.Handle("", edit(http.HandlerFunc(h.UpdateOperation))).Methods("PUT")
	router.Handle("", team(http.HandlerFunc(h.DeleteOperation))).Methods("DELETE")

	router.Handle("/team/members", team(http.HandlerFunc(h.ListMembers))).Methods("GET")
	router.Handle("/team/members", team(http.HandlerFunc(h.AddMember))).Methods("POST")
	router.Handle("/team/members/{user_id}", team(http.HandlerFunc(h.UpdateMember))).Methods("PUT")
	router.Handle("/team/members/{user_id}", team(http.HandlerFunc(h.RemoveMember))).Methods("DELETE")

	router.Handle("/team/invitations", team(http.HandlerFunc(h.CreateInvitation))).Methods("POST")
	router.Handle("/team/invitations", team(http.HandlerFunc(h.ListInvitations))).Methods("GET")
	router.Handle("/team/invitations/{invitation_id}", team(http.HandlerFunc(h.RevokeInvitation))).Methods("DELETE")
}

// CreateOperation creates an operation owned by the caller.
func (h *OperationHandlers) CreateOperation(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req operations.CreateOperationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteValidationError(w, "name is required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Name
	}

	op := &operations.Operation{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		OwnerID:     &identity.UserID,
	}
	if err := h.service.CreateOperation(r.Context(), op); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recorder.RecordTeamChange(r.Context(), audit.EventTypeAdminOperationCreate, identity.UserID, op.ID, nil)
	httputil.WriteCreated(w, op)
}

// GetOperation returns the scoped operation.
func (h *OperationHandlers) GetOperation(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	op, err := h.service.GetOperation(r.Context(), operationID)
	if err != nil {
		if err == operations.ErrOperationNotFound {
			httputil.WriteNotFoundError(w, "operation not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, op)
}

// UpdateOperation applies a partial update to the scoped operation.
func (h *OperationHandlers) UpdateOperation(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	var req operations.UpdateOperationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.UpdateOperation(r.Context(), operationID, &req); err != nil {
		if err == operations.ErrOperationNotFound {
			httputil.WriteNotFoundError(w, "operation not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// DeleteOperation soft deletes the scoped operation.
func (h *OperationHandlers) DeleteOperation(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	identity, _ := middleware.GetIdentity(r)

	if err := h.service.DeleteOperation(r.Context(), operationID); err != nil {
		if err == operations.ErrOperationNotFound {
			httputil.WriteNotFoundError(w, "operation not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.recorder.RecordTeamChange(r.Context(), audit.EventTypeAdminOperationDelete, identity.UserID, operationID, nil)
	httputil.WriteNoContent(w)
}

// ListMembers lists the operation's members.
func (h *OperationHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	members, err := h.service.ListMembers(r.Context(), operationID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// AddMember adds a user directly to the operation.
func (h *OperationHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	identity, _ := middleware.GetIdentity(r)

	var req operations.AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "invalid role")
		return
	}

	if err := h.service.AddMember(r.Context(), operationID, req.UserID, req.Role, &identity.UserID); err != nil {
		if err == operations.ErrMemberExists {
			httputil.WriteConflict(w, "user is already a member")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.recorder.RecordTeamChange(r.Context(), audit.EventTypeTeamMemberAdd, identity.UserID, operationID,
		map[string]any{"member_id": req.UserID, "role": string(req.Role)})
	httputil.WriteCreated(w, map[string]interface{}{"operation_id": operationID, "user_id": req.UserID, "role": req.Role})
}

// UpdateMember changes a member's role or permission override.
func (h *OperationHandlers) UpdateMember(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	identity, _ := middleware.GetIdentity(r)

	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req operations.UpdateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role != nil && !req.Role.Valid() {
		httputil.WriteValidationError(w, "invalid role")
		return
	}

	if err := h.service.UpdateMember(r.Context(), operationID, userID, &req); err != nil {
		if err == operations.ErrMemberNotFound {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	metadata := map[string]any{"member_id": userID}
	if req.Role != nil {
		metadata["role"] = string(*req.Role)
	}
	h.recorder.RecordTeamChange(r.Context(), audit.EventTypeAuthzRoleChange, identity.UserID, operationID, metadata)
	httputil.WriteNoContent(w)
}

// RemoveMember revokes a user's membership.
func (h *OperationHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	identity, _ := middleware.GetIdentity(r)

	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), operationID, userID); err != nil {
		if err == operations.ErrMemberNotFound {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.recorder.RecordTeamChange(r.Context(), audit.EventTypeTeamMemberRemove, identity.UserID, operationID,
		map[string]any{"member_id": userID})
	httputil.WriteNoContent(w)
}

// CreateInvitation invites a user by email.
func (h *OperationHandlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	identity, _ := middleware.GetIdentity(r)

	var req operations.InviteMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteValidationError(w, "email is required")
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "invalid role")
		return
	}

	invitation := &operations.Invitation{
		OperationID: operationID,
		Email:       req.Email,
		Role:        req.Role,
		InvitedBy:   identity.UserID,
	}
	if err := h.service.CreateInvitation(r.Context(), invitation); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recorder.RecordTeamChange(r.Context(), audit.EventTypeTeamInviteCreate, identity.UserID, operationID,
		map[string]any{"email": req.Email, "role": string(req.Role)})
	httputil.WriteCreated(w, invitation)
}

// ListInvitations lists the operation's pending invitations.
func (h *OperationHandlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	invitations, err := h.service.ListInvitations(r.Context(), operationID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, invitations)
}

// RevokeInvitation deletes a pending invitation.
func (h *OperationHandlers) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	identity, _ := middleware.GetIdentity(r)

	invitationID, ok := httputil.ParsePathInt64OrError(w, r, "invitation_id")
	if !ok {
		return
	}

	if err := h.service.RevokeInvitation(r.Context(), invitationID); err != nil {
		if err == operations.ErrInvitationNotFound {
			httputil.WriteNotFoundError(w, "invitation not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.recorder.RecordTeamChange(r.Context(), audit.EventTypeTeamInviteRevoke, identity.UserID, operationID,
		map[string]any{"invitation_id": invitationID})
	httputil.WriteNoContent(w)
}

// AcceptInvitation redeems an invitation token for the caller.
func (h *OperationHandlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	err := h.service.AcceptInvitation(r.Context(), token, identity.UserID)
	switch err {
	case nil:
	case operations.ErrInvitationNotFound:
		httputil.WriteNotFoundError(w, "invitation not found")
		return
	case operations.ErrInvitationAccepted:
		httputil.WriteConflict(w, "invitation already accepted")
		return
	case operations.ErrInvitationExpired:
		httputil.WriteErrorMessage(w, http.StatusGone, "invitation expired")
		return
	default:
		httputil.WriteInternalError(w, err)
		return
	}

	invitation, lookupErr := h.service.GetInvitation(r.Context(), token)
	if lookupErr == nil {
		h.recorder.RecordTeamChange(r.Context(), audit.EventTypeTeamInviteAccept, identity.UserID,
			invitation.OperationID, map[string]any{"email": invitation.Email})
	}
	httputil.WriteNoContent(w)
}
