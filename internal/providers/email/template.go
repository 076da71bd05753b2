package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type InvoiceEmailItem struct {
	Description string
	Amount      string
}

// InvoiceEmail is the data rendered into templates/invoice.html. Amounts are
// preformatted.
type InvoiceEmail struct {
	CompanyName    string
	CustomerName   string
	InvoiceNumber  string
	Date           string
	Items          []InvoiceEmailItem
	Total          string
	PaymentLinkURL string
	Paid           bool
}

func (d InvoiceEmail) Subject() string {
	if d.CompanyName == "" {
		return fmt.Sprintf("Invoice %s", d.InvoiceNumber)
	}
	return fmt.Sprintf("Invoice %s from %s", d.InvoiceNumber, d.CompanyName)
}

func RenderInvoice(data InvoiceEmail) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, "invoice.html", data); err != nil {
		return "", fmt.Errorf("render invoice email: %w", err)
	}
	return body.String(), nil
}
