package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
	"github.com/mhartwell/studioline-backend/pkg/metrics"
)

// paymentSource is the read surface the issuer needs from the payment store.
type paymentSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByProjectCode(ctx context.Context, code string) (*models.Payment, error)
}

// Uploader stores the rendered document and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Service defines the invoice issuance surface.
type Service interface {
	Issue(ctx context.Context, paymentID uuid.UUID, invoiceType enums.InvoiceType) (*models.Invoice, bool, error)
	BackfillForPayment(ctx context.Context, projectCode string) ([]models.Invoice, error)
	ListForPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Invoice, error)
}

// ServiceParams groups dependencies for the invoice service.
type ServiceParams struct {
	Repo               Repository
	Payments           paymentSource
	Renderer           Renderer
	Uploader           Uploader
	Allocator          *Allocator
	TaxRatePercent     decimal.Decimal
	AllocationAttempts int
	UploadAttempts     int
	Logger             *logger.Logger
	Metrics            *metrics.Metrics
}

type service struct {
	repo               Repository
	payments           paymentSource
	renderer           Renderer
	uploader           Uploader
	allocator          *Allocator
	taxRate            decimal.Decimal
	allocationAttempts int
	uploadAttempts     int
	logg               *logger.Logger
	metrics            *metrics.Metrics
}

// NewService builds an invoice service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("invoice repo required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment source required")
	}
	if params.Renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	if params.Uploader == nil {
		return nil, fmt.Errorf("uploader required")
	}
	if params.Allocator == nil {
		return nil, fmt.Errorf("allocator required")
	}
	if params.AllocationAttempts <= 0 {
		params.AllocationAttempts = 5
	}
	if params.UploadAttempts <= 0 {
		params.UploadAttempts = 3
	}
	return &service{
		repo:               params.Repo,
		payments:           params.Payments,
		renderer:           params.Renderer,
		uploader:           params.Uploader,
		allocator:          params.Allocator,
		taxRate:            params.TaxRatePercent,
		allocationAttempts: params.AllocationAttempts,
		uploadAttempts:     params.UploadAttempts,
		logg:               params.Logger,
		metrics:            params.Metrics,
	}, nil
}

// Issue creates the invoice of the given type for a payment, exactly once.
// The returned bool reports whether this call created the row; an existing
// row is returned as an idempotent noop.
func (s *service) Issue(ctx context.Context, paymentID uuid.UUID, invoiceType enums.InvoiceType) (*models.Invoice, bool, error) {
	if !invoiceType.IsValid() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice type")
	}
	if paymentID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}

	if err := checkPrecondition(payment, invoiceType); err != nil {
		return nil, false, err
	}

	if existing, err := s.repo.FindByPaymentAndType(ctx, paymentID, invoiceType); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing invoice")
	} else if existing != nil {
		return existing, false, nil
	}

	subtotal := subtotalFor(payment, invoiceType)
	tax := taxFor(subtotal, s.taxRate)
	issuedAt := time.Now().UTC()
	year := issuedAt.Year()

	for attempt := 0; attempt < s.allocationAttempts; attempt++ {
		number, err := s.allocator.Next(ctx, year)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate invoice number")
		}

		invoice := &models.Invoice{
			ID:            uuid.New(),
			Number:        number,
			PaymentID:     paymentID,
			Type:          invoiceType,
			SubtotalCents: subtotal,
			TaxRate:       s.taxRate,
			TaxCents:      tax,
			TotalCents:    subtotal + tax,
			IssuedAt:      issuedAt,
		}

		// Render and store the document before any row exists; a failed
		// upload leaves no trace to clean up.
		data, contentType, err := s.renderer.Render(invoice, payment)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice document")
		}
		url, err := s.uploadWithRetries(ctx, documentKey(number), data, contentType)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeIssuanceFailed, err, "store invoice document")
		}
		invoice.DocumentURL = url

		if err := s.repo.Create(ctx, invoice); err != nil {
			if pkgerrors.IsUniqueViolation(err) {
				// Either a (payment_id, type) race we lost, or a number
				// collision with a concurrent allocator.
				winner, findErr := s.repo.FindByPaymentAndType(ctx, paymentID, invoiceType)
				if findErr != nil {
					return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "resolve issuance race")
				}
				if winner != nil {
					return winner, false, nil
				}
				if s.metrics != nil {
					s.metrics.IncAllocationRetry()
				}
				continue
			}
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert invoice")
		}

		return invoice, true, nil
	}

	return nil, false, pkgerrors.New(pkgerrors.CodeAllocationExhausted,
		fmt.Sprintf("invoice number allocation failed after %d attempts", s.allocationAttempts))
}

// BackfillForPayment issues every invoice owed under the current paid flags.
// Issue's idempotency makes the operation safe to repeat.
func (s *service) BackfillForPayment(ctx context.Context, projectCode string) ([]models.Invoice, error) {
	payment, err := s.payments.FindByProjectCode(ctx, projectCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}

	var owed []enums.InvoiceType
	if payment.DepositPaid {
		owed = append(owed, enums.InvoiceTypeInitial)
	}
	if payment.FinalPaid {
		owed = append(owed, enums.InvoiceTypeFinal, enums.InvoiceTypeSummary)
	}

	var invoices []models.Invoice
	var issueErrs error
	for _, invoiceType := range owed {
		invoice, issued, err := s.Issue(ctx, payment.ID, invoiceType)
		if err != nil {
			issueErrs = multierr.Append(issueErrs, fmt.Errorf("%s: %w", invoiceType, err))
			continue
		}
		if issued && s.metrics != nil {
			s.metrics.IncInvoiceIssued(string(invoiceType))
		}
		invoices = append(invoices, *invoice)
	}

	if issueErrs != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "invoice backfill incomplete", issueErrs)
		}
		return invoices, pkgerrors.Wrap(pkgerrors.CodeIssuanceFailed, issueErrs, "backfill invoices")
	}
	return invoices, nil
}

func (s *service) ListForPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Invoice, error) {
	invoices, err := s.repo.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return invoices, nil
}

func (s *service) uploadWithRetries(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.uploadAttempts; attempt++ {
		url, err := s.uploader.Upload(ctx, key, data, contentType)
		if err == nil {
			return url, nil
		}
		lastErr = err
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("invoice document upload attempt %d failed: %v", attempt+1, err))
		}
	}
	return "", lastErr
}

func checkPrecondition(payment *models.Payment, invoiceType enums.InvoiceType) error {
	switch invoiceType {
	case enums.InvoiceTypeInitial:
		if !payment.DepositPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "deposit milestone is not paid")
		}
	case enums.InvoiceTypeFinal:
		if !payment.FinalPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "final milestone is not paid")
		}
	case enums.InvoiceTypeSummary:
		if !payment.DepositPaid || !payment.FinalPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "summary requires both milestones paid")
		}
	}
	return nil
}

func subtotalFor(payment *models.Payment, invoiceType enums.InvoiceType) int64 {
	switch invoiceType {
	case enums.InvoiceTypeFinal:
		return payment.FinalCents
	case enums.InvoiceTypeSummary:
		return payment.TotalCents
	default:
		return payment.DepositCents
	}
}

// taxFor computes round-half-up tax on a tax-exclusive subtotal. Every
// invoice type, the summary included, uses the same computation.
func taxFor(subtotalCents int64, ratePercent decimal.Decimal) int64 {
	tax := decimal.NewFromInt(subtotalCents).
		Mul(ratePercent).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return tax.IntPart()
}

func documentKey(number string) string {
	return fmt.Sprintf("invoices/%s.html", number)
}
