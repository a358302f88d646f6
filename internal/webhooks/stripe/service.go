package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/mhartwell/studioline-backend/internal/payments"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
	"github.com/mhartwell/studioline-backend/pkg/metrics"
)

// Disposition reports how an event was handled.
type Disposition string

const (
	DispositionProcessed        Disposition = "processed"
	DispositionAlreadyProcessed Disposition = "already_processed"
	DispositionIgnored          Disposition = "ignored"
)

type paymentApplier interface {
	ApplyMilestonePaid(ctx context.Context, input payments.ApplyInput) (*payments.Outcome, error)
}

type ServiceParams struct {
	Payments paymentApplier
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
}

type Service struct {
	payments paymentApplier
	logg     *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	return &Service{
		payments: params.Payments,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// HandleEvent applies a verified Stripe event. Unknown event types are acked
// and ignored so Stripe stops redelivering them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Disposition, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	default:
		if s.metrics != nil {
			s.metrics.IncWebhookEvent(string(event.Type), string(DispositionIgnored))
		}
		return DispositionIgnored, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) (Disposition, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}

	projectCode := sess.Metadata[payments.MetadataProjectCode]
	milestoneRaw := sess.Metadata[payments.MetadataMilestone]
	if projectCode == "" || milestoneRaw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "checkout session metadata incomplete").
			WithDetails(map[string]string{"event_id": event.ID})
	}
	milestone, err := enums.ParseMilestone(milestoneRaw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse milestone metadata")
	}

	outcome, err := s.payments.ApplyMilestonePaid(ctx, payments.ApplyInput{
		ProjectCode: projectCode,
		SessionID:   sess.ID,
		Milestone:   milestone,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncWebhookEvent(string(event.Type), "error")
		}
		return "", err
	}

	disposition := DispositionAlreadyProcessed
	if outcome.Applied {
		disposition = DispositionProcessed
	}
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(string(event.Type), string(disposition))
	}
	return disposition, nil
}
