package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
)

type stubCampaignService struct {
	campaign *models.Campaign
	err      error
	started  int
}

func (s *stubCampaignService) Start(ctx context.Context, subject, bodyHTML string) (*models.Campaign, error) {
	s.started++
	if s.err != nil {
		return nil, s.err
	}
	return s.campaign, nil
}

func (s *stubCampaignService) Continue(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.campaign, nil
}

func (s *stubCampaignService) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.campaign, nil
}

func TestAdminCampaignCreateReturnsSnapshot(t *testing.T) {
	svc := &stubCampaignService{
		campaign: &models.Campaign{
			ID:              uuid.New(),
			Subject:         "August update",
			TotalRecipients: 250,
			SentCount:       100,
			Status:          enums.CampaignStatusInProgress,
		},
	}
	rec := postJSON(t, AdminCampaignCreate(svc, nil), map[string]string{
		"subject":   "August update",
		"body_html": "<p>news</p>",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data campaignResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SentCount != 100 || envelope.Data.TotalRecipients != 250 {
		t.Fatalf("unexpected snapshot: %+v", envelope.Data)
	}
}

func TestAdminCampaignCreateValidatesBody(t *testing.T) {
	svc := &stubCampaignService{}
	rec := postJSON(t, AdminCampaignCreate(svc, nil), map[string]string{
		"subject": "August update",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.started != 0 {
		t.Fatalf("service should not start a campaign on invalid input")
	}
}

func TestAdminCampaignContinueCooldownStatus(t *testing.T) {
	svc := &stubCampaignService{
		err: pkgerrors.New(pkgerrors.CodeCooldownActive, "quota cooldown in effect"),
	}
	handler := AdminCampaignContinue(svc, nil)

	router := chi.NewRouter()
	router.Post("/campaigns/{campaignId}/continue", handler)

	req := httptest.NewRequest(http.MethodPost, "/campaigns/"+uuid.NewString()+"/continue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAdminCampaignContinueRejectsBadID(t *testing.T) {
	svc := &stubCampaignService{}
	router := chi.NewRouter()
	router.Post("/campaigns/{campaignId}/continue", AdminCampaignContinue(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/campaigns/not-a-uuid/continue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
