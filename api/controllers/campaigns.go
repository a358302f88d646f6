package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mhartwell/studioline-backend/api/responses"
	"github.com/mhartwell/studioline-backend/api/validators"
	"github.com/mhartwell/studioline-backend/internal/campaigns"
	"github.com/mhartwell/studioline-backend/pkg/db/models"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
)

type createCampaignRequest struct {
	Subject  string `json:"subject" validate:"required,max=200"`
	BodyHTML string `json:"body_html" validate:"required"`
}

type campaignResponse struct {
	ID              uuid.UUID  `json:"id"`
	Subject         string     `json:"subject"`
	TotalRecipients int        `json:"total_recipients"`
	SentCount       int        `json:"sent_count"`
	Status          string     `json:"status"`
	LastBatchSentAt *time.Time `json:"last_batch_sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newCampaignResponse(campaign *models.Campaign) campaignResponse {
	if campaign == nil {
		return campaignResponse{}
	}
	return campaignResponse{
		ID:              campaign.ID,
		Subject:         campaign.Subject,
		TotalRecipients: campaign.TotalRecipients,
		SentCount:       campaign.SentCount,
		Status:          string(campaign.Status),
		LastBatchSentAt: campaign.LastBatchSentAt,
		CreatedAt:       campaign.CreatedAt,
	}
}

func campaignIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "campaignId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid campaign id")
	}
	return id, nil
}

// AdminCampaignCreate snapshots the subscribed audience and sends the first batch.
func AdminCampaignCreate(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}

		var payload createCampaignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Start(r.Context(), payload.Subject, payload.BodyHTML)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCampaignResponse(campaign))
	}
}

// AdminCampaignContinue sends the next batch once the cooldown has elapsed.
func AdminCampaignContinue(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}

		id, err := campaignIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Continue(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCampaignResponse(campaign))
	}
}

func AdminCampaignDetail(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}

		id, err := campaignIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCampaignResponse(campaign))
	}
}
