package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mhartwell/studioline-backend/pkg/enums"
)

// CampaignRecipient is the per-recipient send marker. Recipients are
// snapshotted when a campaign starts so later subscription changes do not
// shift the stable processing order.
type CampaignRecipient struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CampaignID uuid.UUID `gorm:"column:campaign_id;type:uuid;not null;uniqueIndex:idx_campaign_recipients_campaign_contact"`
	ContactID  uuid.UUID `gorm:"column:contact_id;type:uuid;not null;uniqueIndex:idx_campaign_recipients_campaign_contact"`
	Email      string    `gorm:"column:email;not null"`

	Status enums.RecipientStatus `gorm:"column:status;type:recipient_status;not null;default:'pending'"`
	SentAt *time.Time            `gorm:"column:sent_at"`

	// Position preserves the contact ordering at snapshot time.
	Position  int       `gorm:"column:position;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
