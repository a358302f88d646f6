package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a newsletter subscriber eligible for campaigns.
type Contact struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email      string    `gorm:"column:email;not null;unique"`
	Name       string    `gorm:"column:name"`
	Subscribed bool      `gorm:"column:subscribed;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
