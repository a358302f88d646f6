package enums

import "fmt"

// InvoiceType names the document issued for a payment milestone.
type InvoiceType string

const (
	InvoiceTypeInitial InvoiceType = "initial"
	InvoiceTypeFinal   InvoiceType = "final"
	InvoiceTypeSummary InvoiceType = "summary"
)

var validInvoiceTypes = []InvoiceType{
	InvoiceTypeInitial,
	InvoiceTypeFinal,
	InvoiceTypeSummary,
}

// IsValid reports whether the value matches the canonical invoice type enum.
func (i InvoiceType) IsValid() bool {
	for _, candidate := range validInvoiceTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInvoiceType converts the raw string to InvoiceType.
func ParseInvoiceType(value string) (InvoiceType, error) {
	for _, candidate := range validInvoiceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice type %q", value)
}
