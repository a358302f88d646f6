package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
	"github.com/mhartwell/studioline-backend/pkg/metrics"
)

// Checkout-session metadata keys shared with the webhook consumer.
const (
	MetadataProjectCode = "project_code"
	MetadataMilestone   = "milestone"
)

const defaultCurrency = "usd"

// InvoiceIssuer is the downstream invoice surface used after a milestone flips.
type InvoiceIssuer interface {
	Issue(ctx context.Context, paymentID uuid.UUID, invoiceType enums.InvoiceType) (*models.Invoice, bool, error)
}

// Notifier receives milestone-paid side effects. Failures are logged and never
// block the transition.
type Notifier interface {
	MilestonePaid(ctx context.Context, payment *models.Payment, milestone enums.Milestone) error
}

// ApplyInput identifies one milestone transition. Lookup is by project code
// when present, otherwise by the checkout-session correlation id.
type ApplyInput struct {
	ProjectCode string
	SessionID   string
	Milestone   enums.Milestone
}

// Outcome reports whether the transition was applied or was an idempotent noop.
type Outcome struct {
	Applied bool
	Payment *models.Payment
}

// CheckoutSession is the client-facing handle for a started milestone checkout.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// ConfirmOutcome reports the fallback poll result.
type ConfirmOutcome struct {
	SessionPaid bool
	Applied     bool
	Payment     *models.Payment
}

// CreatePaymentInput captures the data required to open an engagement.
type CreatePaymentInput struct {
	ProjectCode  string
	ClientName   string
	ClientEmail  string
	TotalCents   int64
	DepositCents int64
	FinalCents   int64
}

// Service defines the payment lifecycle surface.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*models.Payment, error)
	ListProjects(ctx context.Context) ([]models.Payment, error)
	GetProject(ctx context.Context, projectCode string) (*models.Payment, error)
	UpdateProjectStatus(ctx context.Context, projectCode string, next enums.ProjectStatus) (*models.Payment, error)
	CreateCheckout(ctx context.Context, projectCode string, milestone enums.Milestone) (*CheckoutSession, error)
	ConfirmCheckout(ctx context.Context, projectCode string, milestone enums.Milestone) (*ConfirmOutcome, error)
	ApplyMilestonePaid(ctx context.Context, input ApplyInput) (*Outcome, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Repo       Repository
	Stripe     StripeCheckoutClient
	Issuer     InvoiceIssuer
	Notifier   Notifier
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
	SuccessURL string
	CancelURL  string
}

type service struct {
	repo       Repository
	stripe     StripeCheckoutClient
	issuer     InvoiceIssuer
	notifier   Notifier
	logg       *logger.Logger
	metrics    *metrics.Metrics
	successURL string
	cancelURL  string
}

// NewService builds a payment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repo required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Issuer == nil {
		return nil, fmt.Errorf("invoice issuer required")
	}
	return &service{
		repo:       params.Repo,
		stripe:     params.Stripe,
		issuer:     params.Issuer,
		notifier:   params.Notifier,
		logg:       params.Logger,
		metrics:    params.Metrics,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
	}, nil
}

func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	code := strings.TrimSpace(input.ProjectCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project_code is required")
	}
	if strings.TrimSpace(input.ClientName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client_name is required")
	}
	if strings.TrimSpace(input.ClientEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client_email is required")
	}
	if input.TotalCents < 0 || input.DepositCents < 0 || input.FinalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amounts must not be negative")
	}
	if input.DepositCents+input.FinalCents != input.TotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit and final amounts must sum to the total").
			WithDetails(map[string]int64{
				"total_cents":   input.TotalCents,
				"deposit_cents": input.DepositCents,
				"final_cents":   input.FinalCents,
			})
	}

	payment := &models.Payment{
		ID:           uuid.New(),
		ProjectCode:  code,
		ClientName:   strings.TrimSpace(input.ClientName),
		ClientEmail:  strings.TrimSpace(input.ClientEmail),
		TotalCents:   input.TotalCents,
		DepositCents: input.DepositCents,
		FinalCents:   input.FinalCents,
		Status:       enums.ProjectStatusPending,
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "project code already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return payment, nil
}

func (s *service) ListProjects(ctx context.Context) ([]models.Payment, error) {
	payments, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

func (s *service) GetProject(ctx context.Context, projectCode string) (*models.Payment, error) {
	payment, err := s.loadByProjectCode(ctx, projectCode)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) UpdateProjectStatus(ctx context.Context, projectCode string, next enums.ProjectStatus) (*models.Payment, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid project status")
	}
	payment, err := s.loadByProjectCode(ctx, projectCode)
	if err != nil {
		return nil, err
	}

	if !payment.Status.CanAdvanceTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition disallowed").
			WithDetails(map[string]string{
				"from": string(payment.Status),
				"to":   string(next),
			})
	}
	if next == enums.ProjectStatusCompleted && !payment.FinalPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "final milestone must be paid before completion")
	}

	ok, err := s.repo.UpdateStatus(ctx, payment.ID, payment.Status, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update project status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "project status changed concurrently")
	}

	payment.Status = next
	return payment, nil
}

func (s *service) CreateCheckout(ctx context.Context, projectCode string, milestone enums.Milestone) (*CheckoutSession, error) {
	if !milestone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid milestone")
	}
	payment, err := s.loadByProjectCode(ctx, projectCode)
	if err != nil {
		return nil, err
	}
	if payment.MilestonePaid(milestone) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "milestone already paid")
	}
	if milestone == enums.MilestoneFinal && !payment.DepositPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "deposit must be paid before the final milestone")
	}

	amount := payment.MilestoneCents(milestone)
	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(defaultCurrency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s %s milestone", payment.ProjectCode, milestone)),
					},
				},
			},
		},
	}
	params.AddMetadata(MetadataProjectCode, payment.ProjectCode)
	params.AddMetadata(MetadataMilestone, string(milestone))

	sess, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	// Correlation id birth: the milestone is traceable from here on.
	if err := s.repo.RecordSessionID(ctx, payment.ID, milestone, sess.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record checkout session id")
	}

	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *service) ConfirmCheckout(ctx context.Context, projectCode string, milestone enums.Milestone) (*ConfirmOutcome, error) {
	if !milestone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid milestone")
	}
	payment, err := s.loadByProjectCode(ctx, projectCode)
	if err != nil {
		return nil, err
	}
	if payment.MilestonePaid(milestone) {
		return &ConfirmOutcome{SessionPaid: true, Applied: false, Payment: payment}, nil
	}

	recorded := payment.MilestoneSessionID(milestone)
	if recorded == nil || *recorded == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout has not been started for this milestone")
	}

	sess, err := s.stripe.GetSession(ctx, *recorded)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return &ConfirmOutcome{SessionPaid: false, Payment: payment}, nil
	}

	outcome, err := s.ApplyMilestonePaid(ctx, ApplyInput{
		ProjectCode: payment.ProjectCode,
		SessionID:   sess.ID,
		Milestone:   milestone,
	})
	if err != nil {
		return nil, err
	}
	return &ConfirmOutcome{SessionPaid: true, Applied: outcome.Applied, Payment: outcome.Payment}, nil
}

// ApplyMilestonePaid is the single transition function for both triggers
// (webhook and fallback poll). Arrival order between them is immaterial.
func (s *service) ApplyMilestonePaid(ctx context.Context, input ApplyInput) (*Outcome, error) {
	if !input.Milestone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid milestone")
	}
	if input.ProjectCode == "" && input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project_code or session_id is required")
	}

	var payment *models.Payment
	var err error
	if input.ProjectCode != "" {
		payment, err = s.repo.FindByProjectCode(ctx, input.ProjectCode)
	} else {
		payment, err = s.repo.FindBySessionID(ctx, input.SessionID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}

	if s.logg != nil {
		ctx = s.logg.WithProjectCode(ctx, payment.ProjectCode)
	}

	if payment.MilestonePaid(input.Milestone) {
		return s.resolveAlreadyPaid(ctx, payment, input)
	}
	if input.Milestone == enums.MilestoneFinal && !payment.DepositPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "deposit must be paid before the final milestone")
	}

	applied, err := s.repo.MarkMilestonePaid(ctx, payment.ID, input.Milestone, input.SessionID, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark milestone paid")
	}

	fresh, err := s.repo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	if fresh == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}

	if !applied {
		// Lost the race against the other trigger; resolve against the
		// now-recorded session id.
		return s.resolveAlreadyPaid(ctx, fresh, input)
	}

	s.afterMilestonePaid(ctx, fresh, input.Milestone)
	return &Outcome{Applied: true, Payment: fresh}, nil
}

func (s *service) resolveAlreadyPaid(ctx context.Context, payment *models.Payment, input ApplyInput) (*Outcome, error) {
	recorded := payment.MilestoneSessionID(input.Milestone)
	sameSession := input.SessionID == "" || (recorded != nil && *recorded == input.SessionID)
	if !sameSession {
		details := map[string]string{"milestone": string(input.Milestone), "session_id": input.SessionID}
		if recorded != nil {
			details["recorded_session_id"] = *recorded
		}
		return nil, pkgerrors.New(pkgerrors.CodeInconsistency, "milestone already paid under a different session").
			WithDetails(details)
	}

	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("duplicate %s milestone notification ignored", input.Milestone))
	}
	return &Outcome{Applied: false, Payment: payment}, nil
}

// afterMilestonePaid runs the post-transition side effects. None of them can
// roll back the paid flag; invoice issuance stays retryable through backfill.
func (s *service) afterMilestonePaid(ctx context.Context, payment *models.Payment, milestone enums.Milestone) {
	if _, issued, err := s.issuer.Issue(ctx, payment.ID, milestone.InvoiceType()); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, fmt.Sprintf("issuing %s invoice", milestone.InvoiceType()), err)
		}
	} else if issued && s.metrics != nil {
		s.metrics.IncInvoiceIssued(string(milestone.InvoiceType()))
	}

	if milestone == enums.MilestoneFinal {
		if _, issued, err := s.issuer.Issue(ctx, payment.ID, enums.InvoiceTypeSummary); err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "issuing summary invoice", err)
			}
		} else if issued && s.metrics != nil {
			s.metrics.IncInvoiceIssued(string(enums.InvoiceTypeSummary))
		}

		if payment.Status == enums.ProjectStatusReadyForPayment {
			ok, err := s.repo.UpdateStatus(ctx, payment.ID, enums.ProjectStatusReadyForPayment, enums.ProjectStatusCompleted)
			if err != nil {
				if s.logg != nil {
					s.logg.Error(ctx, "auto-completing project", err)
				}
			} else if ok {
				payment.Status = enums.ProjectStatusCompleted
			}
		}
	}

	if s.notifier != nil {
		if err := s.notifier.MilestonePaid(ctx, payment, milestone); err != nil && s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("milestone notification failed: %v", err))
		}
	}
}

func (s *service) loadByProjectCode(ctx context.Context, projectCode string) (*models.Payment, error) {
	code := strings.TrimSpace(projectCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project_code is required")
	}
	payment, err := s.repo.FindByProjectCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}
