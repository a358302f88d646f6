package enums

import "fmt"

// RecipientStatus is the per-recipient send marker inside a campaign.
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
)

var validRecipientStatuses = []RecipientStatus{
	RecipientStatusPending,
	RecipientStatusSent,
	RecipientStatusFailed,
}

// IsValid reports whether the value matches the canonical recipient status enum.
func (r RecipientStatus) IsValid() bool {
	for _, candidate := range validRecipientStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRecipientStatus converts the raw string to RecipientStatus.
func ParseRecipientStatus(value string) (RecipientStatus, error) {
	for _, candidate := range validRecipientStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recipient status %q", value)
}
