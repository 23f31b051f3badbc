package ads

import "time"

// CampaignStatus represents the lifecycle state of an ad campaign.
type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusPaused CampaignStatus = "paused"
	CampaignStatusEnded  CampaignStatus = "ended"
)

// Valid reports whether the status is one of the enumerated states.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusEnded:
		return true
	}
	return false
}

// Campaign is an advertising campaign scoped to an operation.
type Campaign struct {
	ID          int64          `json:"id"`
	OperationID int64          `json:"operation_id"`
	Name        string         `json:"name"`
	Channel     string         `json:"channel"`
	Status      CampaignStatus `json:"status"`
	BudgetCents int64          `json:"budget_cents"`
	SpentCents  int64          `json:"spent_cents"`
	StartsAt    *time.Time     `json:"starts_at,omitempty"`
	EndsAt      *time.Time     `json:"ends_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateCampaignRequest is the payload for creating a campaign.
type CreateCampaignRequest struct {
	Name        string     `json:"name"`
	Channel     string     `json:"channel"`
	BudgetCents int64      `json:"budget_cents"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// UpdateCampaignRequest is the payload for updating a campaign. Nil
// fields are left unchanged.
type UpdateCampaignRequest struct {
	Name        *string         `json:"name,omitempty"`
	Status      *CampaignStatus `json:"status,omitempty"`
	BudgetCents *int64          `json:"budget_cents,omitempty"`
	EndsAt      *time.Time      `json:"ends_at,omitempty"`
}
