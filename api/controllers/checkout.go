package controllers

import (
	"net/http"

	"github.com/mhartwell/studioline-backend/api/responses"
	"github.com/mhartwell/studioline-backend/api/validators"
	"github.com/mhartwell/studioline-backend/internal/payments"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
)

type checkoutRequest struct {
	ProjectCode string `json:"project_code" validate:"required"`
	Milestone   string `json:"milestone" validate:"required,oneof=deposit final"`
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type confirmResponse struct {
	SessionPaid bool             `json:"session_paid"`
	Applied     bool             `json:"applied"`
	Project     *projectResponse `json:"project,omitempty"`
}

// CheckoutStart opens a hosted checkout for one milestone of a project.
func CheckoutStart(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		milestone, err := enums.ParseMilestone(payload.Milestone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid milestone"))
			return
		}

		session, err := svc.CreateCheckout(r.Context(), payload.ProjectCode, milestone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			SessionID: session.SessionID,
			URL:       session.URL,
		})
	}
}

// CheckoutConfirm is the fallback poll for clients returning from checkout.
// It reconciles the milestone even when the webhook has not landed yet.
func CheckoutConfirm(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		milestone, err := enums.ParseMilestone(payload.Milestone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid milestone"))
			return
		}

		outcome, err := svc.ConfirmCheckout(r.Context(), payload.ProjectCode, milestone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := confirmResponse{
			SessionPaid: outcome.SessionPaid,
			Applied:     outcome.Applied,
		}
		if outcome.Payment != nil {
			project := newProjectResponse(outcome.Payment)
			resp.Project = &project
		}
		responses.WriteSuccess(w, resp)
	}
}
