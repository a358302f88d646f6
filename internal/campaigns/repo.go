package campaigns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
)

// Repository handles campaign persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateCampaign(ctx context.Context, campaign *models.Campaign) error
	FindCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListSubscribedContacts(ctx context.Context) ([]models.Contact, error)
	CreateRecipients(ctx context.Context, recipients []models.CampaignRecipient) error
	ListPendingRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.CampaignRecipient, error)
	MarkRecipient(ctx context.Context, recipientID uuid.UUID, status enums.RecipientStatus, sentAt *time.Time) error
	CountSent(ctx context.Context, campaignID uuid.UUID) (int, error)
	TransitionStatus(ctx context.Context, campaignID uuid.UUID, from, to enums.CampaignStatus) (bool, error)
	UpdateProgress(ctx context.Context, campaignID uuid.UUID, sentCount int, status enums.CampaignStatus, lastBatchSentAt *time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a campaign repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *repository) FindCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// ListSubscribedContacts returns the snapshot source in stable order.
func (r *repository) ListSubscribedContacts(ctx context.Context) ([]models.Contact, error) {
	var contacts []models.Contact
	if err := r.db.WithContext(ctx).
		Where("subscribed = ?", true).
		Order("created_at ASC, id ASC").
		Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *repository) CreateRecipients(ctx context.Context, recipients []models.CampaignRecipient) error {
	if len(recipients) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(recipients, 200).Error
}

func (r *repository) ListPendingRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.CampaignRecipient, error) {
	var recipients []models.CampaignRecipient
	query := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, enums.RecipientStatusPending).
		Order("position ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&recipients).Error; err != nil {
		return nil, err
	}
	return recipients, nil
}

func (r *repository) MarkRecipient(ctx context.Context, recipientID uuid.UUID, status enums.RecipientStatus, sentAt *time.Time) error {
	updates := map[string]any{"status": status}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}
	return r.db.WithContext(ctx).
		Model(&models.CampaignRecipient{}).
		Where("id = ?", recipientID).
		Updates(updates).Error
}

func (r *repository) CountSent(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CampaignRecipient{}).
		Where("campaign_id = ? AND status = ?", campaignID, enums.RecipientStatusSent).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// TransitionStatus is the single-writer lock: only the caller that flips
// in_progress to sending owns the batch run.
func (r *repository) TransitionStatus(ctx context.Context, campaignID uuid.UUID, from, to enums.CampaignStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateProgress(ctx context.Context, campaignID uuid.UUID, sentCount int, status enums.CampaignStatus, lastBatchSentAt *time.Time) error {
	updates := map[string]any{
		"sent_count": sentCount,
		"status":     status,
	}
	if lastBatchSentAt != nil {
		updates["last_batch_sent_at"] = *lastBatchSentAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(updates).Error
}
