package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mhartwell/studioline-backend/api/responses"
	"github.com/mhartwell/studioline-backend/api/validators"
	"github.com/mhartwell/studioline-backend/internal/invoices"
	"github.com/mhartwell/studioline-backend/internal/payments"
	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
)

type createProjectRequest struct {
	ProjectCode  string `json:"project_code" validate:"required,min=3,max=64"`
	ClientName   string `json:"client_name" validate:"required"`
	ClientEmail  string `json:"client_email" validate:"required,email"`
	TotalCents   int64  `json:"total_cents" validate:"required,gte=1"`
	DepositCents int64  `json:"deposit_cents" validate:"gte=0"`
	FinalCents   int64  `json:"final_cents" validate:"gte=0"`
}

type updateProjectStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type projectResponse struct {
	ID           uuid.UUID `json:"id"`
	ProjectCode  string    `json:"project_code"`
	ClientName   string    `json:"client_name"`
	ClientEmail  string    `json:"client_email"`
	TotalCents   int64     `json:"total_cents"`
	DepositCents int64     `json:"deposit_cents"`
	FinalCents   int64     `json:"final_cents"`

	DepositPaid   bool       `json:"deposit_paid"`
	DepositPaidAt *time.Time `json:"deposit_paid_at,omitempty"`
	FinalPaid     bool       `json:"final_paid"`
	FinalPaidAt   *time.Time `json:"final_paid_at,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type invoiceResponse struct {
	ID            uuid.UUID `json:"id"`
	Number        string    `json:"number"`
	Type          string    `json:"type"`
	SubtotalCents int64     `json:"subtotal_cents"`
	TaxRate       string    `json:"tax_rate"`
	TaxCents      int64     `json:"tax_cents"`
	TotalCents    int64     `json:"total_cents"`
	DocumentURL   string    `json:"document_url"`
	IssuedAt      time.Time `json:"issued_at"`
}

type projectDetailResponse struct {
	projectResponse
	Invoices []invoiceResponse `json:"invoices"`
}

func newProjectResponse(payment *models.Payment) projectResponse {
	if payment == nil {
		return projectResponse{}
	}
	return projectResponse{
		ID:            payment.ID,
		ProjectCode:   payment.ProjectCode,
		ClientName:    payment.ClientName,
		ClientEmail:   payment.ClientEmail,
		TotalCents:    payment.TotalCents,
		DepositCents:  payment.DepositCents,
		FinalCents:    payment.FinalCents,
		DepositPaid:   payment.DepositPaid,
		DepositPaidAt: payment.DepositPaidAt,
		FinalPaid:     payment.FinalPaid,
		FinalPaidAt:   payment.FinalPaidAt,
		Status:        string(payment.Status),
		CreatedAt:     payment.CreatedAt,
	}
}

func newInvoiceResponse(invoice models.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:            invoice.ID,
		Number:        invoice.Number,
		Type:          string(invoice.Type),
		SubtotalCents: invoice.SubtotalCents,
		TaxRate:       invoice.TaxRate.String(),
		TaxCents:      invoice.TaxCents,
		TotalCents:    invoice.TotalCents,
		DocumentURL:   invoice.DocumentURL,
		IssuedAt:      invoice.IssuedAt,
	}
}

// AdminProjectCreate opens a new engagement with its two-milestone split.
func AdminProjectCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload createProjectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.CreatePayment(r.Context(), payments.CreatePaymentInput{
			ProjectCode:  payload.ProjectCode,
			ClientName:   payload.ClientName,
			ClientEmail:  payload.ClientEmail,
			TotalCents:   payload.TotalCents,
			DepositCents: payload.DepositCents,
			FinalCents:   payload.FinalCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newProjectResponse(payment))
	}
}

func AdminProjectList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		projects, err := svc.ListProjects(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]projectResponse, 0, len(projects))
		for i := range projects {
			out = append(out, newProjectResponse(&projects[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminProjectDetail returns one project with its issued invoices.
func AdminProjectDetail(svc payments.Service, invoiceSvc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || invoiceSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "project services unavailable"))
			return
		}

		payment, err := svc.GetProject(r.Context(), chi.URLParam(r, "projectCode"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		issued, err := invoiceSvc.ListForPayment(r.Context(), payment.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail := projectDetailResponse{
			projectResponse: newProjectResponse(payment),
			Invoices:        make([]invoiceResponse, 0, len(issued)),
		}
		for _, invoice := range issued {
			detail.Invoices = append(detail.Invoices, newInvoiceResponse(invoice))
		}
		responses.WriteSuccess(w, detail)
	}
}

func AdminProjectStatusUpdate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload updateProjectStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseProjectStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project status"))
			return
		}

		payment, err := svc.UpdateProjectStatus(r.Context(), chi.URLParam(r, "projectCode"), next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProjectResponse(payment))
	}
}

// AdminProjectInvoiceBackfill re-issues any invoice owed under the current
// paid flags. Safe to repeat; existing invoices are returned untouched.
func AdminProjectInvoiceBackfill(invoiceSvc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if invoiceSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		issued, err := invoiceSvc.BackfillForPayment(r.Context(), chi.URLParam(r, "projectCode"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]invoiceResponse, 0, len(issued))
		for _, invoice := range issued {
			out = append(out, newInvoiceResponse(invoice))
		}
		responses.WriteSuccess(w, out)
	}
}
