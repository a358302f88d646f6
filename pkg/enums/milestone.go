package enums

import "fmt"

// Milestone identifies one of the two scheduled partial payments.
type Milestone string

const (
	MilestoneDeposit Milestone = "deposit"
	MilestoneFinal   Milestone = "final"
)

var validMilestones = []Milestone{
	MilestoneDeposit,
	MilestoneFinal,
}

// IsValid reports whether the value matches the canonical milestone enum.
func (m Milestone) IsValid() bool {
	for _, candidate := range validMilestones {
		if candidate == m {
			return true
		}
	}
	return false
}

// InvoiceType returns the invoice document issued when this milestone is paid.
func (m Milestone) InvoiceType() InvoiceType {
	if m == MilestoneFinal {
		return InvoiceTypeFinal
	}
	return InvoiceTypeInitial
}

// ParseMilestone converts the raw string to Milestone.
func ParseMilestone(value string) (Milestone, error) {
	for _, candidate := range validMilestones {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid milestone %q", value)
}
