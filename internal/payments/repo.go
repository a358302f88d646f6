package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
)

// Repository handles payment persistence.
type Repository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByProjectCode(ctx context.Context, code string) (*models.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	List(ctx context.Context) ([]models.Payment, error)
	RecordSessionID(ctx context.Context, paymentID uuid.UUID, milestone enums.Milestone, sessionID string) error
	MarkMilestonePaid(ctx context.Context, paymentID uuid.UUID, milestone enums.Milestone, sessionID string, paidAt time.Time) (bool, error)
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, from, to enums.ProjectStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByProjectCode(ctx context.Context, code string) (*models.Payment, error) {
	if code == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("project_code = ?", code).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	if sessionID == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("deposit_session_id = ? OR final_session_id = ?", sessionID, sessionID).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) List(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) RecordSessionID(ctx context.Context, paymentID uuid.UUID, milestone enums.Milestone, sessionID string) error {
	column := "deposit_session_id"
	if milestone == enums.MilestoneFinal {
		column = "final_session_id"
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update(column, sessionID).Error
}

// MarkMilestonePaid flips the paid flag with a conditional update. The
// WHERE <flag> = false guard is what closes the webhook/fallback race:
// whichever trigger loses sees RowsAffected == 0.
func (r *repository) MarkMilestonePaid(ctx context.Context, paymentID uuid.UUID, milestone enums.Milestone, sessionID string, paidAt time.Time) (bool, error) {
	updates := map[string]any{}
	var flagColumn string
	if milestone == enums.MilestoneFinal {
		flagColumn = "final_paid"
		updates["final_paid"] = true
		updates["final_paid_at"] = paidAt
		updates["final_session_id"] = sessionID
	} else {
		flagColumn = "deposit_paid"
		updates["deposit_paid"] = true
		updates["deposit_paid_at"] = paidAt
		updates["deposit_session_id"] = sessionID
	}

	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND "+flagColumn+" = ?", paymentID, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, paymentID uuid.UUID, from, to enums.ProjectStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
