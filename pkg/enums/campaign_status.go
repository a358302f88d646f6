package enums

import "fmt"

// CampaignStatus tracks bulk send progress. "sending" is a transient lock state
// held only while a batch run owns the campaign.
type CampaignStatus string

const (
	CampaignStatusInProgress CampaignStatus = "in_progress"
	CampaignStatusSending    CampaignStatus = "sending"
	CampaignStatusCompleted  CampaignStatus = "completed"
)

var validCampaignStatuses = []CampaignStatus{
	CampaignStatusInProgress,
	CampaignStatusSending,
	CampaignStatusCompleted,
}

// IsValid reports whether the value matches the canonical campaign status enum.
func (c CampaignStatus) IsValid() bool {
	for _, candidate := range validCampaignStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCampaignStatus converts the raw string to CampaignStatus.
func ParseCampaignStatus(value string) (CampaignStatus, error) {
	for _, candidate := range validCampaignStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid campaign status %q", value)
}
