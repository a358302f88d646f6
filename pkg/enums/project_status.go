package enums

import "fmt"

// ProjectStatus describes the operator-controlled lifecycle of an engagement.
// It is tracked independently of the milestone paid flags.
type ProjectStatus string

const (
	ProjectStatusPending         ProjectStatus = "pending"
	ProjectStatusInProgress      ProjectStatus = "in_progress"
	ProjectStatusReadyForPayment ProjectStatus = "ready_for_payment"
	ProjectStatusCompleted       ProjectStatus = "completed"
)

var validProjectStatuses = []ProjectStatus{
	ProjectStatusPending,
	ProjectStatusInProgress,
	ProjectStatusReadyForPayment,
	ProjectStatusCompleted,
}

// IsValid reports whether the value matches the canonical project status enum.
func (p ProjectStatus) IsValid() bool {
	for _, candidate := range validProjectStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// CanAdvanceTo reports whether an operator may move the status forward to next.
// The walk is strictly forward, one step at a time.
func (p ProjectStatus) CanAdvanceTo(next ProjectStatus) bool {
	switch p {
	case ProjectStatusPending:
		return next == ProjectStatusInProgress
	case ProjectStatusInProgress:
		return next == ProjectStatusReadyForPayment
	case ProjectStatusReadyForPayment:
		return next == ProjectStatusCompleted
	default:
		return false
	}
}

// ParseProjectStatus converts the raw string to ProjectStatus.
func ParseProjectStatus(value string) (ProjectStatus, error) {
	for _, candidate := range validProjectStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid project status %q", value)
}
