package campaigns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
	"github.com/mhartwell/studioline-backend/pkg/mail"
	"github.com/mhartwell/studioline-backend/pkg/metrics"
)

// staleSendLease bounds how long a sending lock may sit without progress
// before another Continue call may take it over. A healthy batch run updates
// the campaign row well within this window.
const staleSendLease = 15 * time.Minute

// Service defines the campaign batching surface.
type Service interface {
	Start(ctx context.Context, subject, bodyHTML string) (*models.Campaign, error)
	Continue(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
}

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the campaign service.
type ServiceParams struct {
	Repo      Repository
	Tx        TxRunner
	Mailer    mail.Sender
	BatchSize int
	Cooldown  time.Duration
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

type service struct {
	repo      Repository
	tx        TxRunner
	mailer    mail.Sender
	batchSize int
	cooldown  time.Duration
	logg      *logger.Logger
	metrics   *metrics.Metrics
}

// NewService builds a campaign service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("campaign repo required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if params.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		mailer:    params.Mailer,
		batchSize: params.BatchSize,
		cooldown:  params.Cooldown,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Start snapshots the subscribed contacts into per-recipient markers and runs
// the first batch. Contacts unsubscribing later do not shrink the snapshot.
func (s *service) Start(ctx context.Context, subject, bodyHTML string) (*models.Campaign, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}
	if strings.TrimSpace(bodyHTML) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "body_html is required")
	}

	contacts, err := s.repo.ListSubscribedContacts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscribed contacts")
	}

	campaign := &models.Campaign{
		ID:              uuid.New(),
		Subject:         subject,
		BodyHTML:        bodyHTML,
		TotalRecipients: len(contacts),
		Status:          enums.CampaignStatusInProgress,
	}
	if len(contacts) == 0 {
		campaign.Status = enums.CampaignStatusCompleted
	}

	recipients := make([]models.CampaignRecipient, 0, len(contacts))
	for i, contact := range contacts {
		recipients = append(recipients, models.CampaignRecipient{
			ID:         uuid.New(),
			CampaignID: campaign.ID,
			ContactID:  contact.ID,
			Email:      contact.Email,
			Status:     enums.RecipientStatusPending,
			Position:   i,
		})
	}

	// The campaign row and its recipient snapshot commit together; a partial
	// write would leave a campaign that can never complete.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateCampaign(ctx, campaign); err != nil {
			return fmt.Errorf("create campaign: %w", err)
		}
		if err := txRepo.CreateRecipients(ctx, recipients); err != nil {
			return fmt.Errorf("snapshot recipients: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create campaign")
	}

	if s.logg != nil {
		ctx = s.logg.WithCampaignID(ctx, campaign.ID.String())
	}

	if len(contacts) == 0 {
		return campaign, nil
	}

	return s.runBatch(ctx, campaign)
}

// Continue runs the next batch once the cooldown window has elapsed.
func (s *service) Continue(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithCampaignID(ctx, campaign.ID.String())
	}

	if campaign.Status == enums.CampaignStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "campaign already completed")
	}

	if campaign.Status == enums.CampaignStatusSending {
		campaign, err = s.reclaimStaleLock(ctx, campaign)
		if err != nil {
			return nil, err
		}
	}

	if campaign.LastBatchSentAt != nil {
		elapsed := time.Since(*campaign.LastBatchSentAt)
		if elapsed < s.cooldown {
			return nil, pkgerrors.New(pkgerrors.CodeCooldownActive, "send quota cooldown active").
				WithDetails(map[string]string{
					"retry_after": campaign.LastBatchSentAt.Add(s.cooldown).UTC().Format(time.RFC3339),
				})
		}
	}

	return s.runBatch(ctx, campaign)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.load(ctx, id)
}

// runBatch sends to at most batchSize pending recipients. Per-recipient
// failures mark the recipient failed and the batch keeps going; the campaign
// lock is always released.
func (s *service) runBatch(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	locked, err := s.repo.TransitionStatus(ctx, campaign.ID, enums.CampaignStatusInProgress, enums.CampaignStatusSending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire campaign lock")
	}
	if !locked {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "campaign batch already running")
	}

	pending, err := s.repo.ListPendingRecipients(ctx, campaign.ID, s.batchSize)
	if err != nil {
		s.release(ctx, campaign.ID, campaign.SentCount, enums.CampaignStatusInProgress, nil)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending recipients")
	}

	var sendErrs error
	attempted := len(pending)
	for _, recipient := range pending {
		sendErr := s.mailer.Send(ctx, mail.Message{
			To:       recipient.Email,
			Subject:  campaign.Subject,
			HTMLBody: campaign.BodyHTML,
		})
		if sendErr != nil {
			sendErrs = multierr.Append(sendErrs, fmt.Errorf("recipient %s: %w", recipient.Email, sendErr))
			if s.metrics != nil {
				s.metrics.IncCampaignSend("failed")
			}
			if markErr := s.repo.MarkRecipient(ctx, recipient.ID, enums.RecipientStatusFailed, nil); markErr != nil {
				sendErrs = multierr.Append(sendErrs, fmt.Errorf("marking %s failed: %w", recipient.Email, markErr))
			}
			continue
		}

		now := time.Now().UTC()
		if s.metrics != nil {
			s.metrics.IncCampaignSend("sent")
		}
		if markErr := s.repo.MarkRecipient(ctx, recipient.ID, enums.RecipientStatusSent, &now); markErr != nil {
			sendErrs = multierr.Append(sendErrs, fmt.Errorf("marking %s sent: %w", recipient.Email, markErr))
		}
	}

	if sendErrs != nil && s.logg != nil {
		s.logg.Error(ctx, "campaign batch had send failures", sendErrs)
	}

	// The markers are the source of truth; SentCount is recomputed, never
	// incremented blindly.
	sentCount, err := s.repo.CountSent(ctx, campaign.ID)
	if err != nil {
		s.release(ctx, campaign.ID, campaign.SentCount, enums.CampaignStatusInProgress, nil)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count sent recipients")
	}

	status := enums.CampaignStatusInProgress
	if sentCount == campaign.TotalRecipients {
		status = enums.CampaignStatusCompleted
	}

	var lastBatch *time.Time
	if attempted > 0 {
		now := time.Now().UTC()
		lastBatch = &now
	}
	if err := s.repo.UpdateProgress(ctx, campaign.ID, sentCount, status, lastBatch); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release campaign lock")
	}

	return s.load(ctx, campaign.ID)
}

// reclaimStaleLock frees a send lock left behind by a crashed batch run. The
// conditional transition keeps two reclaimers from both winning.
func (s *service) reclaimStaleLock(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	if time.Since(campaign.UpdatedAt) < staleSendLease {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "campaign batch already running")
	}
	reclaimed, err := s.repo.TransitionStatus(ctx, campaign.ID, enums.CampaignStatusSending, enums.CampaignStatusInProgress)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reclaim campaign lock")
	}
	if !reclaimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "campaign batch already running")
	}
	if s.logg != nil {
		s.logg.Warn(ctx, "reclaimed stale campaign send lock")
	}
	return s.load(ctx, campaign.ID)
}

func (s *service) release(ctx context.Context, id uuid.UUID, sentCount int, status enums.CampaignStatus, lastBatch *time.Time) {
	if err := s.repo.UpdateProgress(ctx, id, sentCount, status, lastBatch); err != nil && s.logg != nil {
		s.logg.Error(ctx, "releasing campaign lock", err)
	}
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	campaign, err := s.repo.FindCampaign(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign")
	}
	if campaign == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
	}
	return campaign, nil
}
