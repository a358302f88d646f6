package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mhartwell/studioline-backend/pkg/enums"
)

// Campaign is one bulk send job. SentCount is bookkeeping derived from the
// per-recipient markers; the markers are the source of truth on resume.
type Campaign struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Subject  string    `gorm:"column:subject;not null"`
	BodyHTML string    `gorm:"column:body_html;not null"`

	TotalRecipients int                  `gorm:"column:total_recipients;not null"`
	SentCount       int                  `gorm:"column:sent_count;not null;default:0"`
	Status          enums.CampaignStatus `gorm:"column:status;type:campaign_status;not null;default:'in_progress'"`
	LastBatchSentAt *time.Time           `gorm:"column:last_batch_sent_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
