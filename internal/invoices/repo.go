package invoices

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
)

// Repository handles invoice persistence.
type Repository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByPaymentAndType(ctx context.Context, paymentID uuid.UUID, invoiceType enums.InvoiceType) (*models.Invoice, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Invoice, error)
	MaxNumberForYear(ctx context.Context, prefix string, year int) (string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByPaymentAndType(ctx context.Context, paymentID uuid.UUID, invoiceType enums.InvoiceType) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("payment_id = ? AND type = ?", paymentID, invoiceType).
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("issued_at ASC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// MaxNumberForYear returns the highest allocated number within the year's
// series, or "" when the series is empty. Length-first ordering keeps the
// comparison numeric once sequences outgrow the zero padding.
func (r *repository) MaxNumberForYear(ctx context.Context, prefix string, year int) (string, error) {
	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)
	var number string
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("number LIKE ?", pattern).
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &number).Error
	if err != nil {
		return "", err
	}
	return number, nil
}
