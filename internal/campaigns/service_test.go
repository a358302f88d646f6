package campaigns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/mail"
)

type stubMailer struct {
	sent     []string
	failFor  map[string]bool
	failWith error
}

func (m *stubMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.failFor[msg.To] {
		if m.failWith != nil {
			return m.failWith
		}
		return errors.New("smtp rejected")
	}
	m.sent = append(m.sent, msg.To)
	return nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newCampaignService(t *testing.T, db *gorm.DB, mailer *stubMailer, batchSize int) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(db),
		Tx:        gormTxRunner{db: db},
		Mailer:    mailer,
		BatchSize: batchSize,
		Cooldown:  24 * time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func rewindLastBatch(t *testing.T, db *gorm.DB, id uuid.UUID, d time.Duration) {
	t.Helper()
	past := time.Now().UTC().Add(-d)
	require.NoError(t, db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("last_batch_sent_at", past).Error)
}

func TestStartSendsFirstBatchUpToQuota(t *testing.T) {
	db := setupCampaignsTestDB(t)
	seedContacts(t, db, 250, true)
	mailer := &stubMailer{}
	svc := newCampaignService(t, db, mailer, 100)

	campaign, err := svc.Start(context.Background(), "August update", "<p>news</p>")
	require.NoError(t, err)

	assert.Equal(t, 250, campaign.TotalRecipients)
	assert.Equal(t, 100, campaign.SentCount)
	assert.Equal(t, enums.CampaignStatusInProgress, campaign.Status)
	require.NotNil(t, campaign.LastBatchSentAt)
	require.Len(t, mailer.sent, 100)
	// Stable snapshot order: the first hundred contacts exactly.
	assert.Equal(t, "contact-000@example.com", mailer.sent[0])
	assert.Equal(t, "contact-099@example.com", mailer.sent[99])
}

func TestContinueHonorsCooldownThenResumes(t *testing.T) {
	db := setupCampaignsTestDB(t)
	seedContacts(t, db, 250, true)
	mailer := &stubMailer{}
	svc := newCampaignService(t, db, mailer, 100)
	ctx := context.Background()

	campaign, err := svc.Start(ctx, "August update", "<p>news</p>")
	require.NoError(t, err)

	_, err = svc.Continue(ctx, campaign.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeCooldownActive, pkgerrors.As(err).Code())

	rewindLastBatch(t, db, campaign.ID, 25*time.Hour)
	campaign, err = svc.Continue(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, campaign.SentCount)
	assert.Equal(t, enums.CampaignStatusInProgress, campaign.Status)

	rewindLastBatch(t, db, campaign.ID, 25*time.Hour)
	campaign, err = svc.Continue(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 250, campaign.SentCount)
	assert.Equal(t, enums.CampaignStatusCompleted, campaign.Status)
	assert.Len(t, mailer.sent, 250)
	assert.Equal(t, "contact-249@example.com", mailer.sent[249])
}

func TestContinueOnCompletedCampaignFails(t *testing.T) {
	db := setupCampaignsTestDB(t)
	seedContacts(t, db, 3, true)
	mailer := &stubMailer{}
	svc := newCampaignService(t, db, mailer, 100)
	ctx := context.Background()

	campaign, err := svc.Start(ctx, "August update", "<p>news</p>")
	require.NoError(t, err)
	require.Equal(t, enums.CampaignStatusCompleted, campaign.Status)

	_, err = svc.Continue(ctx, campaign.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestBatchContinuesPastRecipientFailures(t *testing.T) {
	db := setupCampaignsTestDB(t)
	seedContacts(t, db, 5, true)
	mailer := &stubMailer{failFor: map[string]bool{"contact-002@example.com": true}}
	svc := newCampaignService(t, db, mailer, 100)

	campaign, err := svc.Start(context.Background(), "August update", "<p>news</p>")
	require.NoError(t, err)

	assert.Equal(t, 4, campaign.SentCount)
	// A failed recipient keeps the campaign from completing.
	assert.Equal(t, enums.CampaignStatusInProgress, campaign.Status)
	assert.Len(t, mailer.sent, 4)

	var failed int64
	require.NoError(t, db.Model(&models.CampaignRecipient{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, enums.RecipientStatusFailed).
		Count(&failed).Error)
	assert.Equal(t, int64(1), failed)
}

func TestConcurrentBatchIsRejectedByLock(t *testing.T) {
	db := setupCampaignsTestDB(t)
	seedContacts(t, db, 5, true)
	mailer := &stubMailer{}
	svc := newCampaignService(t, db, mailer, 2)
	ctx := context.Background()

	campaign, err := svc.Start(ctx, "August update", "<p>news</p>")
	require.NoError(t, err)

	// Another worker holds the lock.
	require.NoError(t, db.Model(&models.Campaign{}).
		Where("id = ?", campaign.ID).
		Update("status", enums.CampaignStatusSending).Error)
	rewindLastBatch(t, db, campaign.ID, 25*time.Hour)

	_, err = svc.Continue(ctx, campaign.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestStartWithoutSubscribersCompletesImmediately(t *testing.T) {
	db := setupCampaignsTestDB(t)
	seedContacts(t, db, 4, false)
	mailer := &stubMailer{}
	svc := newCampaignService(t, db, mailer, 100)

	campaign, err := svc.Start(context.Background(), "August update", "<p>news</p>")
	require.NoError(t, err)
	assert.Equal(t, 0, campaign.TotalRecipients)
	assert.Equal(t, enums.CampaignStatusCompleted, campaign.Status)
	assert.Empty(t, mailer.sent)
}

// snapshotFailRepo passes everything through except the recipient snapshot.
type snapshotFailRepo struct {
	Repository
}

func (r *snapshotFailRepo) WithTx(tx *gorm.DB) Repository {
	return &snapshotFailRepo{Repository: r.Repository.WithTx(tx)}
}

func (r *snapshotFailRepo) CreateRecipients(ctx context.Context, recipients []models.CampaignRecipient) error {
	return errors.New("recipient insert rejected")
}

func TestStartRollsBackCampaignWhenSnapshotFails(t *testing.T) {
	db := setupCampaignsTestDB(t)
	seedContacts(t, db, 3, true)
	svc, err := NewService(ServiceParams{
		Repo:      &snapshotFailRepo{Repository: NewRepository(db)},
		Tx:        gormTxRunner{db: db},
		Mailer:    &stubMailer{},
		BatchSize: 100,
		Cooldown:  24 * time.Hour,
	})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), "August update", "<p>news</p>")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())

	// The campaign row must roll back with the failed snapshot so no
	// campaign exists that can never complete.
	var campaigns int64
	require.NoError(t, db.Model(&models.Campaign{}).Count(&campaigns).Error)
	assert.Zero(t, campaigns)
}

func TestContinueReclaimsStaleSendLock(t *testing.T) {
	db := setupCampaignsTestDB(t)
	seedContacts(t, db, 4, true)
	mailer := &stubMailer{}
	svc := newCampaignService(t, db, mailer, 2)
	ctx := context.Background()

	campaign, err := svc.Start(ctx, "August update", "<p>news</p>")
	require.NoError(t, err)

	rewindLastBatch(t, db, campaign.ID, 25*time.Hour)
	// A crashed worker left the lock held long past the lease.
	stale := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Campaign{}).
		Where("id = ?", campaign.ID).
		UpdateColumns(map[string]any{
			"status":     enums.CampaignStatusSending,
			"updated_at": stale,
		}).Error)

	campaign, err = svc.Continue(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, campaign.SentCount)
	assert.Equal(t, enums.CampaignStatusCompleted, campaign.Status)
}

func TestStartValidatesInput(t *testing.T) {
	db := setupCampaignsTestDB(t)
	svc := newCampaignService(t, db, &stubMailer{}, 100)

	_, err := svc.Start(context.Background(), "", "<p>news</p>")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Start(context.Background(), "Subject", "  ")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
