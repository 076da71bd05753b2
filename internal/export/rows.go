// Package export flattens invoices into one row per line item for
// spreadsheet consumers.
package export

import (
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/internal/invoice/format"
	"github.com/shopspring/decimal"
)

var Header = []string{
	"Invoice #",
	"Date",
	"Customer",
	"Email",
	"Status",
	"Item",
	"Item Amount",
	"Invoice Total",
}

// Rows returns the data rows without the header. Invoice level cells are only
// filled on the first row of each invoice.
func Rows(invoices []invoicedomain.Invoice) [][]any {
	out := make([][]any, 0, len(invoices))
	for _, inv := range invoices {
		customer, email := "", ""
		if inv.Customer != nil {
			customer = inv.Customer.Name
			email = inv.Customer.Email
		}
		status := "Unpaid"
		if inv.IsPaid {
			status = "Paid"
		}

		first := []any{
			format.DisplayNumber(inv.InvoiceNumber),
			inv.Date,
			customer,
			email,
			status,
		}

		if len(inv.Items) == 0 {
			out = append(out, append(first, "", "", amount(inv.Amount)))
			continue
		}
		for i, item := range inv.Items {
			if i == 0 {
				out = append(out, append(first, item.Description, amount(item.Amount), amount(inv.Amount)))
				continue
			}
			out = append(out, []any{"", "", "", "", "", item.Description, amount(item.Amount), ""})
		}
	}
	return out
}

func amount(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
