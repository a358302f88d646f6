package invoices

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/mhartwell/studioline-backend/pkg/db/models"
)

// Renderer turns an invoice into document bytes. Implementations must be
// pure: no I/O, same input same output.
type Renderer interface {
	Render(invoice *models.Invoice, payment *models.Payment) (data []byte, contentType string, err error)
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.Number}}</title></head>
<body>
<h1>Invoice {{.Number}}</h1>
<p>Project: {{.ProjectCode}} ({{.ClientName}})</p>
<p>Type: {{.Type}}</p>
<table>
<tr><td>Subtotal</td><td>{{.Subtotal}}</td></tr>
<tr><td>Tax ({{.TaxRate}}%)</td><td>{{.Tax}}</td></tr>
<tr><td>Total</td><td>{{.Total}}</td></tr>
</table>
<p>Issued {{.IssuedAt}}</p>
</body>
</html>
`))

type htmlRenderer struct{}

// NewHTMLRenderer returns the default HTML document renderer.
func NewHTMLRenderer() Renderer {
	return htmlRenderer{}
}

func (htmlRenderer) Render(invoice *models.Invoice, payment *models.Payment) ([]byte, string, error) {
	if invoice == nil || payment == nil {
		return nil, "", fmt.Errorf("invoice and payment are required")
	}

	data := struct {
		Number      string
		ProjectCode string
		ClientName  string
		Type        string
		Subtotal    string
		TaxRate     string
		Tax         string
		Total       string
		IssuedAt    string
	}{
		Number:      invoice.Number,
		ProjectCode: payment.ProjectCode,
		ClientName:  payment.ClientName,
		Type:        string(invoice.Type),
		Subtotal:    formatCents(invoice.SubtotalCents),
		TaxRate:     invoice.TaxRate.String(),
		Tax:         formatCents(invoice.TaxCents),
		Total:       formatCents(invoice.TotalCents),
		IssuedAt:    invoice.IssuedAt.Format("2006-01-02"),
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, data); err != nil {
		return nil, "", fmt.Errorf("rendering invoice document: %w", err)
	}
	return buf.Bytes(), "text/html", nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
