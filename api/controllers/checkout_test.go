package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/mhartwell/studioline-backend/internal/payments"
	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
)

type stubPaymentService struct {
	checkout       *payments.CheckoutSession
	checkoutErr    error
	confirm        *payments.ConfirmOutcome
	confirmErr     error
	created        *models.Payment
	lastMilestone  enums.Milestone
	lastProject    string
	checkoutCalled int
}

func (s *stubPaymentService) CreatePayment(ctx context.Context, input payments.CreatePaymentInput) (*models.Payment, error) {
	if s.created != nil {
		return s.created, nil
	}
	return &models.Payment{
		ID:           uuid.New(),
		ProjectCode:  input.ProjectCode,
		ClientName:   input.ClientName,
		ClientEmail:  input.ClientEmail,
		TotalCents:   input.TotalCents,
		DepositCents: input.DepositCents,
		FinalCents:   input.FinalCents,
		Status:       enums.ProjectStatusPending,
	}, nil
}

func (s *stubPaymentService) ListProjects(ctx context.Context) ([]models.Payment, error) {
	return nil, nil
}

func (s *stubPaymentService) GetProject(ctx context.Context, projectCode string) (*models.Payment, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (s *stubPaymentService) UpdateProjectStatus(ctx context.Context, projectCode string, next enums.ProjectStatus) (*models.Payment, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (s *stubPaymentService) CreateCheckout(ctx context.Context, projectCode string, milestone enums.Milestone) (*payments.CheckoutSession, error) {
	s.checkoutCalled++
	s.lastProject = projectCode
	s.lastMilestone = milestone
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	return s.checkout, nil
}

func (s *stubPaymentService) ConfirmCheckout(ctx context.Context, projectCode string, milestone enums.Milestone) (*payments.ConfirmOutcome, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return s.confirm, nil
}

func (s *stubPaymentService) ApplyMilestonePaid(ctx context.Context, input payments.ApplyInput) (*payments.Outcome, error) {
	return nil, nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCheckoutStartReturnsSession(t *testing.T) {
	svc := &stubPaymentService{
		checkout: &payments.CheckoutSession{SessionID: "cs_test_1", URL: "https://checkout.stripe.com/pay/cs_test_1"},
	}
	rec := postJSON(t, CheckoutStart(svc, nil), map[string]string{
		"project_code": "PRJ-2026-014",
		"milestone":    "deposit",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastProject != "PRJ-2026-014" || svc.lastMilestone != enums.MilestoneDeposit {
		t.Fatalf("unexpected service args: %s %s", svc.lastProject, svc.lastMilestone)
	}

	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SessionID != "cs_test_1" {
		t.Fatalf("unexpected session id %q", envelope.Data.SessionID)
	}
}

func TestCheckoutStartRejectsUnknownMilestone(t *testing.T) {
	svc := &stubPaymentService{}
	rec := postJSON(t, CheckoutStart(svc, nil), map[string]string{
		"project_code": "PRJ-2026-014",
		"milestone":    "retainer",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.checkoutCalled != 0 {
		t.Fatalf("service should not be invoked on invalid milestone")
	}
}

func TestCheckoutConfirmReportsOutcome(t *testing.T) {
	svc := &stubPaymentService{
		confirm: &payments.ConfirmOutcome{
			SessionPaid: true,
			Applied:     true,
			Payment: &models.Payment{
				ID:          uuid.New(),
				ProjectCode: "PRJ-2026-014",
				DepositPaid: true,
				Status:      enums.ProjectStatusPending,
			},
		},
	}
	rec := postJSON(t, CheckoutConfirm(svc, nil), map[string]string{
		"project_code": "PRJ-2026-014",
		"milestone":    "deposit",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data confirmResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.SessionPaid || !envelope.Data.Applied {
		t.Fatalf("unexpected outcome: %+v", envelope.Data)
	}
	if envelope.Data.Project == nil || !envelope.Data.Project.DepositPaid {
		t.Fatalf("expected project snapshot with deposit paid")
	}
}

func TestCheckoutConfirmPropagatesConflict(t *testing.T) {
	svc := &stubPaymentService{
		confirmErr: pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout session recorded"),
	}
	rec := postJSON(t, CheckoutConfirm(svc, nil), map[string]string{
		"project_code": "PRJ-2026-014",
		"milestone":    "deposit",
	})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}
