package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/backoffice/pkg/ads"
)

func createCampaignViaAPI(t *testing.T, env *testEnv, actor int64, opID int64, name string) *ads.Campaign {
	rec := env.do(t, identityFor(actor), "POST", scopedPath(opID, "/campaigns"),
		map[string]interface{}{
			"name":         name,
			"channel":      "search",
			"budget_cents": 50000,
		})
	require.Equal(t, http.StatusCreated, rec.Code)

	var campaign ads.Campaign
	decodeBody(t, rec, &campaign)
	return &campaign
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, "alice")
	opID := env.createOperation(t, "EU Ads", alice)
	campaign := createCampaignViaAPI(t, env, alice, opID, "Spring Sale")
	assert.Equal(t, ads.CampaignStatusDraft, campaign.Status)

	path := scopedPath(opID, "/campaigns/") + intToStr(campaign.ID)

	rec := env.do(t, identityFor(alice), "PUT", path, map[string]string{"status": "active"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, identityFor(alice), "POST", path+"/spend",
		map[string]interface{}{"amount_cents": 1200})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, identityFor(alice), "GET", path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched ads.Campaign
	decodeBody(t, rec, &fetched)
	assert.Equal(t, ads.CampaignStatusActive, fetched.Status)
	assert.Equal(t, int64(1200), fetched.SpentCents)
}

func TestRecordSpendValidation(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, "alice")
	opID := env.createOperation(t, "EU Ads", alice)
	campaign := createCampaignViaAPI(t, env, alice, opID, "Spring Sale")

	rec := env.do(t, identityFor(alice), "POST",
		scopedPath(opID, "/campaigns/")+intToStr(campaign.ID)+"/spend",
		map[string]interface{}{"amount_cents": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCampaignsByStatus(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, "alice")
	opID := env.createOperation(t, "EU Ads", alice)
	createCampaignViaAPI(t, env, alice, opID, "Spring Sale")
	active := createCampaignViaAPI(t, env, alice, opID, "Always On")

	rec := env.do(t, identityFor(alice), "PUT",
		scopedPath(opID, "/campaigns/")+intToStr(active.ID), map[string]string{"status": "active"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, identityFor(alice), "GET", scopedPath(opID, "/campaigns?status=active"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []*ads.Campaign
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "Always On", listed[0].Name)

	rec = env.do(t, identityFor(alice), "GET", scopedPath(opID, "/campaigns?status=bogus"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteCampaign(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, "alice")
	opID := env.createOperation(t, "EU Ads", alice)
	campaign := createCampaignViaAPI(t, env, alice, opID, "Spring Sale")

	path := scopedPath(opID, "/campaigns/") + intToStr(campaign.ID)
	rec := env.do(t, identityFor(alice), "DELETE", path, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, identityFor(alice), "GET", path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
