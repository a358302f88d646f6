package notifications

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
	"github.com/mhartwell/studioline-backend/pkg/enums"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
	"github.com/mhartwell/studioline-backend/pkg/mail"
)

var milestonePaidTemplate = template.Must(template.New("milestone_paid").Parse(`
<p>Hi {{.ClientName}},</p>
<p>We received your {{.MilestoneLabel}} payment of {{.Amount}} for project {{.ProjectCode}}.</p>
{{if .FullyPaid}}<p>Your project is now fully paid. Thank you!</p>{{end}}
<p>The Studioline team</p>
`))

// MilestoneMailer sends payment confirmations to the project's client.
type MilestoneMailer struct {
	sender mail.Sender
	from   string
	logg   *logger.Logger
}

func NewMilestoneMailer(sender mail.Sender, from string, logg *logger.Logger) (*MilestoneMailer, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("from address required")
	}
	return &MilestoneMailer{sender: sender, from: from, logg: logg}, nil
}

func (m *MilestoneMailer) MilestonePaid(ctx context.Context, payment *models.Payment, milestone enums.Milestone) error {
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment is required")
	}

	label := "deposit"
	amount := payment.DepositCents
	if milestone == enums.MilestoneFinal {
		label = "final"
		amount = payment.FinalCents
	}

	var body strings.Builder
	err := milestonePaidTemplate.Execute(&body, map[string]any{
		"ClientName":     payment.ClientName,
		"MilestoneLabel": label,
		"Amount":         formatCents(amount),
		"ProjectCode":    payment.ProjectCode,
		"FullyPaid":      payment.DepositPaid && payment.FinalPaid,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render confirmation email")
	}

	msg := mail.Message{
		From:     m.from,
		To:       payment.ClientEmail,
		Subject:  fmt.Sprintf("Payment received for %s", payment.ProjectCode),
		HTMLBody: body.String(),
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send confirmation email")
	}
	if m.logg != nil {
		ctx = m.logg.WithProjectCode(ctx, payment.ProjectCode)
		m.logg.Info(ctx, fmt.Sprintf("%s payment confirmation sent", label))
	}
	return nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
