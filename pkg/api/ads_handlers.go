package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/ads"
	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/middleware"
)

// AdsHandlers serves ad campaign routes.
type AdsHandlers struct {
	service *ads.Service
	guard   *authz.Middleware
}

// NewAdsHandlers creates AdsHandlers.
func NewAdsHandlers(service *ads.Service, guard *authz.Middleware) *AdsHandlers {
	return &AdsHandlers{service: service, guard: guard}
}

// RegisterRoutes registers campaign routes on an operation-scoped router.
func (h *AdsHandlers) RegisterRoutes(router *mux.Router) {
	view := h.guard.RequireAccess(authz.ModuleAds, authz.ActionView)
	create := h.guard.RequireAccess(authz.ModuleAds, authz.ActionCreate)
	edit := h.guard.RequireAccess(authz.ModuleAds, authz.ActionEdit)
	del := h.guard.RequireAccess(authz.ModuleAds, authz.ActionDelete)

	router.Handle("/campaigns", view(http.HandlerFunc(h.ListCampaigns))).Methods("GET")
	router.Handle("/campaigns", create(http.HandlerFunc(h.CreateCampaign))).Methods("POST")
	router.Handle("/campaigns/{campaign_id}", view(http.HandlerFunc(h.GetCampaign))).Methods("GET")
	router.Handle("/campaigns/{campaign_id}", edit(http.HandlerFunc(h.UpdateCampaign))).Methods("PUT")
	router.Handle("/campaigns/{campaign_id}", del(http.HandlerFunc(h.DeleteCampaign))).Methods("DELETE")
	router.Handle("/campaigns/{campaign_id}/spend", edit(http.HandlerFunc(h.RecordSpend))).Methods("POST")
}

// ListCampaigns lists the operation's campaigns, optionally filtered by
// status.
func (h *AdsHandlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	var status ads.CampaignStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = ads.CampaignStatus(raw)
		if !status.Valid() {
			httputil.WriteValidationError(w, "invalid status filter")
			return
		}
	}

	results, err := h.service.ListCampaigns(r.Context(), operationID, status)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, results)
}

// CreateCampaign records a new campaign in draft state.
func (h *AdsHandlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	var req ads.CreateCampaignRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteValidationError(w, "name is required")
		return
	}
	if req.BudgetCents < 0 {
		httputil.WriteValidationError(w, "budget_cents must not be negative")
		return
	}

	campaign := &ads.Campaign{
		OperationID: operationID,
		Name:        req.Name,
		Channel:     req.Channel,
		Status:      ads.CampaignStatusDraft,
		BudgetCents: req.BudgetCents,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}
	if err := h.service.CreateCampaign(r.Context(), campaign); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, campaign)
}

// GetCampaign returns a single campaign.
func (h *AdsHandlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	campaignID, ok := httputil.ParsePathInt64OrError(w, r, "campaign_id")
	if !ok {
		return
	}

	campaign, err := h.service.GetCampaign(r.Context(), operationID, campaignID)
	if err != nil {
		if err == ads.ErrCampaignNotFound {
			httputil.WriteNotFoundError(w, "campaign not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, campaign)
}

// UpdateCampaign applies a partial update to a campaign.
func (h *AdsHandlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	campaignID, ok := httputil.ParsePathInt64OrError(w, r, "campaign_id")
	if !ok {
		return
	}

	var req ads.UpdateCampaignRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.service.UpdateCampaign(r.Context(), operationID, campaignID, &req)
	switch err {
	case nil:
		httputil.WriteNoContent(w)
	case ads.ErrCampaignNotFound:
		httputil.WriteNotFoundError(w, "campaign not found")
	case ads.ErrInvalidStatus:
		httputil.WriteValidationError(w, "invalid status")
	default:
		httputil.WriteInternalError(w, err)
	}
}

// RecordSpend adds to a campaign's spent total.
func (h *AdsHandlers) RecordSpend(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	campaignID, ok := httputil.ParsePathInt64OrError(w, r, "campaign_id")
	if !ok {
		return
	}

	var req struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.AmountCents <= 0 {
		httputil.WriteValidationError(w, "amount_cents must be positive")
		return
	}

	if err := h.service.RecordSpend(r.Context(), operationID, campaignID, req.AmountCents); err != nil {
		if err == ads.ErrCampaignNotFound {
			httputil.WriteNotFoundError(w, "campaign not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// DeleteCampaign removes a campaign.
func (h *AdsHandlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	campaignID, ok := httputil.ParsePathInt64OrError(w, r, "campaign_id")
	if !ok {
		return
	}

	if err := h.service.DeleteCampaign(r.Context(), operationID, campaignID); err != nil {
		if err == ads.ErrCampaignNotFound {
			httputil.WriteNotFoundError(w, "campaign not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
