package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mhartwell/studioline-backend/pkg/enums"
)

// Invoice is an immutable record of one issuance event. The unique
// (payment_id, type) pair is the storage-level guard against duplicate
// issuance; the unique number backs the compare-and-retry allocator.
type Invoice struct {
	ID        uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Number    string            `gorm:"column:number;not null;unique"`
	PaymentID uuid.UUID         `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:idx_invoices_payment_type"`
	Type      enums.InvoiceType `gorm:"column:type;type:invoice_type;not null;uniqueIndex:idx_invoices_payment_type"`

	SubtotalCents int64           `gorm:"column:subtotal_cents;not null"`
	TaxRate       decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	TaxCents      int64           `gorm:"column:tax_cents;not null"`
	TotalCents    int64           `gorm:"column:total_cents;not null"`

	DocumentURL string     `gorm:"column:document_url;not null"`
	IssuedAt    time.Time  `gorm:"column:issued_at;not null"`
	PaidAt      *time.Time `gorm:"column:paid_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
