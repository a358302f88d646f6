package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mhartwell/studioline-backend/pkg/enums"
)

// Payment represents one client engagement split into two milestones.
// Rows are append-only: milestone flags and the operator status advance,
// nothing is ever hard-deleted.
type Payment struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectCode string    `gorm:"column:project_code;not null;unique"`
	ClientName  string    `gorm:"column:client_name;not null"`
	ClientEmail string    `gorm:"column:client_email;not null"`

	TotalCents   int64 `gorm:"column:total_cents;not null"`
	DepositCents int64 `gorm:"column:deposit_cents;not null"`
	FinalCents   int64 `gorm:"column:final_cents;not null"`

	DepositPaid   bool       `gorm:"column:deposit_paid;not null;default:false"`
	DepositPaidAt *time.Time `gorm:"column:deposit_paid_at"`
	FinalPaid     bool       `gorm:"column:final_paid;not null;default:false"`
	FinalPaidAt   *time.Time `gorm:"column:final_paid_at"`

	// Checkout-session ids from the payment processor, one per milestone.
	// They double as idempotency keys and stay NULL until the milestone starts.
	DepositSessionID *string `gorm:"column:deposit_session_id;uniqueIndex"`
	FinalSessionID   *string `gorm:"column:final_session_id;uniqueIndex"`

	Status enums.ProjectStatus `gorm:"column:status;type:project_status;not null;default:'pending'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// MilestonePaid returns the paid flag for the given milestone.
func (p *Payment) MilestonePaid(milestone enums.Milestone) bool {
	if milestone == enums.MilestoneFinal {
		return p.FinalPaid
	}
	return p.DepositPaid
}

// MilestoneSessionID returns the recorded correlation id for the milestone.
func (p *Payment) MilestoneSessionID(milestone enums.Milestone) *string {
	if milestone == enums.MilestoneFinal {
		return p.FinalSessionID
	}
	return p.DepositSessionID
}

// MilestoneCents returns the amount owed for the milestone.
func (p *Payment) MilestoneCents(milestone enums.Milestone) int64 {
	if milestone == enums.MilestoneFinal {
		return p.FinalCents
	}
	return p.DepositCents
}
